// Package telemetry builds the process logger: structured JSON lines to a
// file under the data directory, optionally teed to stdout. API keys and
// auth headers are scrubbed before they reach either sink.
package telemetry

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

const redacted = "[REDACTED]"

var secretKeyFragments = []string{
	"api_key", "apikey", "authorization", "bearer", "password", "secret", "token",
}

// NewLogger opens logs/system.jsonl under homeDir and returns a logger
// writing there. With quiet false it also mirrors to stdout. The caller
// closes the returned io.Closer when the process shuts down.
func NewLogger(homeDir, level string, quiet bool) (*slog.Logger, io.Closer, error) {
	if err := os.MkdirAll(filepath.Join(homeDir, "logs"), 0o755); err != nil {
		return nil, nil, err
	}
	file, err := os.OpenFile(
		filepath.Join(homeDir, "logs", "system.jsonl"),
		os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644,
	)
	if err != nil {
		return nil, nil, err
	}

	sink := io.Writer(file)
	if !quiet {
		sink = io.MultiWriter(os.Stdout, file)
	}
	opts := &slog.HandlerOptions{
		Level:       parseLevel(level),
		ReplaceAttr: scrubAttr,
	}
	logger := slog.New(slog.NewJSONHandler(sink, opts)).With("component", "valet")
	return logger, file, nil
}

// scrubAttr renames the time key and redacts anything secret-shaped,
// whether the secret is in the attribute key or its value.
func scrubAttr(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.TimeKey {
		a.Key = "timestamp"
	}
	if secretKey(a.Key) {
		return slog.String(a.Key, redacted)
	}
	if a.Value.Kind() == slog.KindString && secretValue(a.Value.String()) {
		return slog.String(a.Key, redacted)
	}
	return a
}

func secretKey(key string) bool {
	k := strings.ToLower(key)
	for _, frag := range secretKeyFragments {
		if strings.Contains(k, frag) {
			return true
		}
	}
	return false
}

func secretValue(v string) bool {
	lower := strings.ToLower(v)
	return strings.Contains(lower, "bearer ") ||
		strings.Contains(lower, "api_key") ||
		strings.Contains(lower, "authorization:")
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
