package orchestrator

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/juniperhq/valet/internal/config"
	"github.com/juniperhq/valet/internal/fault"
	"github.com/juniperhq/valet/internal/tools"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.LLMConfig{
		BaseURL: srv.URL,
		Model:   "qwen-plus",
		APIKey:  "test-key",
	}, slog.New(slog.NewTextHandler(io.Discard, nil)), nil, nil)
}

func TestCompleteToolCallRoundTrip(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("authorization = %q", got)
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != "qwen-plus" {
			t.Errorf("model = %q", req.Model)
		}
		if len(req.Tools) != 1 || req.Tools[0].Function.Name != "create_task" {
			t.Errorf("tools = %+v, want create_task schema", req.Tools)
		}

		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{
				"message": map[string]any{
					"role": "assistant",
					"tool_calls": []map[string]any{{
						"id":   "call_1",
						"type": "function",
						"function": map[string]any{
							"name":      "create_task",
							"arguments": `{"title": "买牛奶"}`,
						},
					}},
				},
				"finish_reason": "tool_calls",
			}},
		})
	})

	defs := []tools.FunctionDef{{Name: "create_task", Description: "d", Parameters: map[string]any{"type": "object"}}}
	msg, err := client.Complete(context.Background(), []Message{UserMessage("提醒我买牛奶")}, defs)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if len(msg.ToolCalls) != 1 {
		t.Fatalf("tool calls = %d, want 1", len(msg.ToolCalls))
	}
	tc := msg.ToolCalls[0]
	if tc.ID != "call_1" || tc.Function.Name != "create_task" {
		t.Errorf("tool call = %+v", tc)
	}
}

func TestCompletePlainAnswer(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{
				"message":       map[string]any{"role": "assistant", "content": "好的，已经记下了。"},
				"finish_reason": "stop",
			}},
		})
	})

	msg, err := client.Complete(context.Background(), []Message{UserMessage("hi")}, nil)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if msg.Content != "好的，已经记下了。" || len(msg.ToolCalls) != 0 {
		t.Errorf("message = %+v", msg)
	}
}

func TestCompleteErrorClassification(t *testing.T) {
	cases := []struct {
		name   string
		status int
		want   fault.Kind
	}{
		{"unauthorized", http.StatusUnauthorized, fault.KindConfig},
		{"rate limited", http.StatusTooManyRequests, fault.KindTransient},
		{"server error", http.StatusBadGateway, fault.KindTransient},
		{"bad request", http.StatusBadRequest, fault.KindProtocol},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
			})
			_, err := client.Complete(context.Background(), []Message{UserMessage("hi")}, nil)
			if !fault.Is(err, tc.want) {
				t.Fatalf("got %v, want %s", err, tc.want)
			}
		})
	}
}

func TestCompleteMissingKey(t *testing.T) {
	client := NewClient(config.LLMConfig{BaseURL: "http://localhost:1", Model: "m"},
		slog.New(slog.NewTextHandler(io.Discard, nil)), nil, nil)
	_, err := client.Complete(context.Background(), nil, nil)
	if !fault.Is(err, fault.KindConfig) {
		t.Fatalf("got %v, want ConfigurationError", err)
	}
}

func TestCompleteMalformedBody(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json at all"))
	})
	_, err := client.Complete(context.Background(), []Message{UserMessage("hi")}, nil)
	if !fault.Is(err, fault.KindProtocol) {
		t.Fatalf("got %v, want ProtocolError", err)
	}
}
