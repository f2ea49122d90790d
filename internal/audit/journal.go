// Package audit keeps the call journal: one JSON line per dispatched
// tool call, appended to logs/calls.jsonl under the data directory. The
// journal is the durable record of what the assistant actually did.
package audit

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Record is one journal line.
type Record struct {
	Timestamp  string `json:"timestamp"`
	CallID     string `json:"call_id"`
	Tool       string `json:"tool"`
	Status     string `json:"status"`
	ErrorKind  string `json:"error_kind,omitempty"`
	DurationMS int64  `json:"duration_ms"`
	Attempts   int    `json:"attempts"`
}

// Journal appends records to an open file. Safe for concurrent use.
type Journal struct {
	mu   sync.Mutex
	file *os.File
	now  func() time.Time
}

// Open creates (or appends to) logs/calls.jsonl under homeDir.
func Open(homeDir string) (*Journal, error) {
	logDir := filepath.Join(homeDir, "logs")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(filepath.Join(logDir, "calls.jsonl"),
		os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &Journal{file: f, now: time.Now}, nil
}

// Append writes one record. Errors are swallowed: the journal must never
// fail a call that already succeeded.
func (j *Journal) Append(rec Record) {
	if j == nil {
		return
	}
	rec.Timestamp = j.now().UTC().Format(time.RFC3339Nano)

	b, err := json.Marshal(rec)
	if err != nil {
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.file == nil {
		return
	}
	j.file.Write(append(b, '\n'))
}

func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.file == nil {
		return nil
	}
	err := j.file.Close()
	j.file = nil
	return err
}
