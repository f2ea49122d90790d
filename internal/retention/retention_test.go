package retention

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/juniperhq/valet/internal/config"
	"github.com/juniperhq/valet/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeChart(t *testing.T, dir, name string, age time.Duration) string {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("png"), 0o644); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-age)
	if err := os.Chtimes(path, old, old); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestSweepRemovesOldCharts(t *testing.T) {
	resourceDir := t.TempDir()
	chartsDir := filepath.Join(resourceDir, "charts")
	oldChart := writeChart(t, chartsDir, "old.png", 10*24*time.Hour)
	freshChart := writeChart(t, chartsDir, "fresh.png", time.Hour)

	st, err := store.Open(filepath.Join(t.TempDir(), "valet.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()

	s := New(config.RetentionConfig{ChartMaxAgeDays: 7, DoneTaskMaxAgeDays: 7},
		st, resourceDir, testLogger())
	removed, _ := s.Sweep(context.Background())

	if removed != 1 {
		t.Fatalf("charts removed = %d, want 1", removed)
	}
	if _, err := os.Stat(oldChart); !os.IsNotExist(err) {
		t.Error("old chart still present")
	}
	if _, err := os.Stat(freshChart); err != nil {
		t.Error("fresh chart was removed")
	}
}

func TestSweepPrunesStaleDoneTasks(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "valet.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()
	ctx := context.Background()

	done, err := st.CreateTask(ctx, "shipped", "")
	if err != nil {
		t.Fatal(err)
	}
	status := store.StatusDone
	if _, err := st.UpdateTask(ctx, done.ID, store.TaskUpdate{Status: &status}); err != nil {
		t.Fatal(err)
	}
	if _, err := st.CreateTask(ctx, "still open", ""); err != nil {
		t.Fatal(err)
	}

	s := New(config.RetentionConfig{DoneTaskMaxAgeDays: 7}, st, t.TempDir(), testLogger())
	// Pretend a month has passed.
	s.now = func() time.Time { return time.Now().Add(30 * 24 * time.Hour) }

	_, pruned := s.Sweep(ctx)
	if pruned != 1 {
		t.Fatalf("tasks pruned = %d, want 1", pruned)
	}

	remaining, err := st.ListTasks(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(remaining) != 1 || remaining[0].Title != "still open" {
		t.Fatalf("remaining tasks = %+v", remaining)
	}
}

func TestSweepZeroAgesDisable(t *testing.T) {
	resourceDir := t.TempDir()
	writeChart(t, filepath.Join(resourceDir, "charts"), "ancient.png", 365*24*time.Hour)

	st, err := store.Open(filepath.Join(t.TempDir(), "valet.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()

	s := New(config.RetentionConfig{}, st, resourceDir, testLogger())
	charts, tasks := s.Sweep(context.Background())
	if charts != 0 || tasks != 0 {
		t.Fatalf("sweep removed %d/%d with retention disabled", charts, tasks)
	}
}

func TestStartWithEmptyScheduleIsNoop(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "valet.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()

	s := New(config.RetentionConfig{}, st, t.TempDir(), testLogger())
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	s.Stop()
}
