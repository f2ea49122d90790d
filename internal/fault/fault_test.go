package fault

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"direct", New(KindNotFound, "task %d not found", 7), KindNotFound},
		{"wrapped once", fmt.Errorf("handler: %w", New(KindTransient, "timeout")), KindTransient},
		{"wrapped twice", fmt.Errorf("outer: %w", fmt.Errorf("inner: %w", New(KindConfig, "no token"))), KindConfig},
		{"plain error", errors.New("boom"), KindUnknown},
		{"wrap helper", Wrap(KindProtocol, errors.New("bad json"), "decode result"), KindProtocol},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRetryable(t *testing.T) {
	if !Retryable(New(KindTransient, "dial tcp: timeout")) {
		t.Error("transient errors must be retryable")
	}
	for _, kind := range []Kind{KindValidation, KindNotFound, KindSchema, KindConfig, KindProtocol, KindUnknown} {
		if Retryable(New(kind, "x")) {
			t.Errorf("kind %q must not be retryable", kind)
		}
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap(KindTransient, nil, "ignored") != nil {
		t.Error("Wrap(nil) must return nil")
	}
}

func TestErrorMessage(t *testing.T) {
	err := Wrap(KindNotFound, errors.New("sql: no rows"), "load task 3")
	want := "load task 3: sql: no rows"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if !errors.Is(err, err.Err) {
		t.Error("wrapped cause must be reachable via errors.Is")
	}
}
