package envelope

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/juniperhq/valet/internal/fault"
)

func TestNormalizeSuccess(t *testing.T) {
	env := Normalize(&Result{Payload: map[string]any{"id": 1, "title": "会议"}}, nil)
	if env.Status != StatusOK {
		t.Fatalf("status = %q", env.Status)
	}
	if env.ErrorKind != "" || env.ErrorMessage != "" {
		t.Errorf("error fields must be empty on ok: %+v", env)
	}
	if len(env.Attachments) != 0 {
		t.Errorf("no attachments expected: %+v", env.Attachments)
	}
}

func TestNormalizeAttachments(t *testing.T) {
	env := Normalize(&Result{
		Payload:     map[string]any{"chart_type": "pie", "points": 3},
		Attachments: []Attachment{{Type: AttachmentImage, Reference: "/resource/charts/ab12cd.png"}},
	}, nil)
	if env.Status != StatusOK || len(env.Attachments) != 1 {
		t.Fatalf("envelope = %+v", env)
	}
	if env.Attachments[0].Type != AttachmentImage {
		t.Errorf("attachment type = %q", env.Attachments[0].Type)
	}
}

func TestNormalizeErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantKind string
	}{
		{"classified", fault.New(fault.KindNotFound, "task 9 not found"), "NotFoundError"},
		{"transient", fault.New(fault.KindTransient, "mcp timeout"), "TransientServiceError"},
		{"config", fault.New(fault.KindConfig, "missing AMAP_API_KEY"), "ConfigurationError"},
		{"protocol", fault.New(fault.KindProtocol, "bad json-rpc frame"), "ProtocolError"},
		{"uncategorized", errors.New("something odd"), "UnknownError"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := Normalize(&Result{Payload: "ignored"}, tt.err)
			if env.Status != StatusError {
				t.Fatalf("status = %q", env.Status)
			}
			if env.ErrorKind != tt.wantKind {
				t.Errorf("kind = %q, want %q", env.ErrorKind, tt.wantKind)
			}
			if env.ErrorMessage == "" {
				t.Error("error message must be populated")
			}
			if env.Payload != nil {
				t.Error("payload must be dropped on error")
			}
		})
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	env := Normalize(&Result{Payload: []int{1, 2, 3}}, nil)
	var back Envelope
	if err := json.Unmarshal([]byte(env.Marshal()), &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.Status != StatusOK {
		t.Errorf("round-trip status = %q", back.Status)
	}
}

func TestMarshalUnmarshalableFallsBack(t *testing.T) {
	env := Normalize(&Result{Payload: func() {}}, nil)
	out := env.Marshal()
	if !strings.Contains(out, "UnknownError") {
		t.Errorf("expected fallback error envelope, got %s", out)
	}
}
