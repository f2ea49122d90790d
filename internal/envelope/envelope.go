// Package envelope defines the one response shape every tool execution
// collapses into. Handlers return rows, maps, file paths or errors; the
// orchestrator boundary only ever sees an Envelope.
package envelope

import (
	"encoding/json"
	"fmt"

	"github.com/juniperhq/valet/internal/fault"
)

type Status string

const (
	StatusOK    Status = "ok"
	StatusError Status = "error"
)

// AttachmentType distinguishes binary artifacts referenced by path.
type AttachmentType string

const (
	AttachmentImage AttachmentType = "image"
	AttachmentFile  AttachmentType = "file"
)

// Attachment points at a binary artifact on disk. Raw bytes are never
// embedded in the envelope; the reference keeps conversation payloads
// small and lets the web gateway serve the file.
type Attachment struct {
	Type      AttachmentType `json:"type"`
	Reference string         `json:"reference"`
}

// Result is what a handler produces on success.
type Result struct {
	Payload     any
	Attachments []Attachment
}

// Envelope is the normalized response for one tool call.
type Envelope struct {
	Status       Status       `json:"status"`
	Payload      any          `json:"payload,omitempty"`
	ErrorKind    string       `json:"error_kind,omitempty"`
	ErrorMessage string       `json:"error_message,omitempty"`
	Attachments  []Attachment `json:"attachments,omitempty"`
}

// Normalize converts a handler outcome into an envelope. A non-nil err
// wins over res; its kind comes from the fault taxonomy, with anything
// unclassified reported as UnknownError. Normalize never panics and
// never lets an error object cross the boundary raw.
func Normalize(res *Result, err error) Envelope {
	if err != nil {
		return Envelope{
			Status:       StatusError,
			ErrorKind:    string(fault.KindOf(err)),
			ErrorMessage: err.Error(),
		}
	}
	env := Envelope{Status: StatusOK}
	if res != nil {
		env.Payload = res.Payload
		env.Attachments = res.Attachments
	}
	return env
}

// Marshal renders the envelope as the JSON string reinjected into the
// conversation as a tool-result message.
func (e Envelope) Marshal() string {
	b, err := json.Marshal(e)
	if err != nil {
		// Payload values come from our own handlers and are always
		// marshalable; a failure here is a bug worth surfacing loudly
		// but must still not break the turn.
		fallback := Envelope{
			Status:       StatusError,
			ErrorKind:    string(fault.KindUnknown),
			ErrorMessage: fmt.Sprintf("encode envelope: %v", err),
		}
		b, _ = json.Marshal(fallback)
	}
	return string(b)
}
