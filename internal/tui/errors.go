package tui

import (
	"errors"
	"strings"
)

// humanError renders an error for the chat view: walk to the innermost
// cause and drop the wrapping prefixes, so "chat: model api: connection
// refused" shows as "Connection refused".
func humanError(err error) string {
	if err == nil {
		return ""
	}
	for {
		next := errors.Unwrap(err)
		if next == nil {
			break
		}
		err = next
	}
	msg := err.Error()
	if i := strings.LastIndex(msg, ": "); i >= 0 && i+2 < len(msg) {
		msg = msg[i+2:]
	}
	if msg == "" {
		return err.Error()
	}
	return strings.ToUpper(msg[:1]) + msg[1:]
}
