package audit

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestJournalAppendAndReopen(t *testing.T) {
	home := t.TempDir()

	j, err := Open(home)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	j.Append(Record{CallID: "c1", Tool: "create_task", Status: "ok", DurationMS: 12, Attempts: 1})
	j.Append(Record{CallID: "c2", Tool: "get_weather", Status: "error", ErrorKind: "TransientServiceError", Attempts: 3})
	if err := j.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// Reopen appends rather than truncating.
	j2, err := Open(home)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	j2.Append(Record{CallID: "c3", Tool: "list_tasks", Status: "ok", Attempts: 1})
	j2.Close()

	f, err := os.Open(filepath.Join(home, "logs", "calls.jsonl"))
	if err != nil {
		t.Fatalf("open journal file: %v", err)
	}
	defer f.Close()

	var records []Record
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec Record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			t.Fatalf("line %d not valid JSON: %v", len(records)+1, err)
		}
		records = append(records, rec)
	}
	if len(records) != 3 {
		t.Fatalf("records = %d, want 3", len(records))
	}
	if records[1].ErrorKind != "TransientServiceError" || records[1].Attempts != 3 {
		t.Fatalf("record = %+v", records[1])
	}
	if records[0].Timestamp == "" {
		t.Error("timestamp not stamped")
	}
}

func TestJournalConcurrentAppends(t *testing.T) {
	j, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer j.Close()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			j.Append(Record{CallID: "x", Tool: "t", Status: "ok"})
		}()
	}
	wg.Wait()
}

func TestNilJournalIsSafe(t *testing.T) {
	var j *Journal
	j.Append(Record{CallID: "ignored"}) // must not panic
}
