// Package fault defines the error taxonomy shared by the tool registry,
// the MCP gateway and the dispatch loop. Every error that reaches the
// result normalizer carries exactly one Kind so it can be mapped onto a
// response envelope without string matching.
package fault

import (
	"errors"
	"fmt"
)

// Kind classifies an error for retry and surfacing decisions.
type Kind string

const (
	// KindValidation is bad input shape or type. Local, never retried,
	// surfaced to the user as a correction request.
	KindValidation Kind = "ValidationError"

	// KindNotFound is a referenced entity id that does not exist.
	KindNotFound Kind = "NotFoundError"

	// KindDuplicateTool is a registry name collision. Programmer error,
	// fatal at startup.
	KindDuplicateTool Kind = "DuplicateToolError"

	// KindSchema is a per-call argument schema violation. Rejected
	// immediately, never executed.
	KindSchema Kind = "SchemaValidationError"

	// KindTransient is a remote timeout or network failure. Retryable up
	// to the dispatcher's bound.
	KindTransient Kind = "TransientServiceError"

	// KindConfig is missing or invalid credentials/config for a service.
	// Fatal for that tool, never retried.
	KindConfig Kind = "ConfigurationError"

	// KindProtocol is a malformed remote response. Never retried.
	KindProtocol Kind = "ProtocolError"

	// KindUnknown covers anything that escaped classification.
	KindUnknown Kind = "UnknownError"
)

// Error is a classified error. It wraps an optional cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		if e.Msg == "" {
			return e.Err.Error()
		}
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// New returns a classified error with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap classifies an existing error. A nil cause yields nil.
func Wrap(kind Kind, err error, msg string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf extracts the Kind from err, walking the wrap chain.
// Unclassified errors report KindUnknown.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Retryable reports whether the dispatcher may re-execute the call.
// Only transient service failures qualify; everything else either
// reflects caller input or configuration that a retry cannot fix.
func Retryable(err error) bool {
	return KindOf(err) == KindTransient
}
