// Package retention runs the periodic cleanup sweep: rendered chart
// files past their age limit are deleted, as are done tasks nobody has
// touched in a while.
package retention

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	cronlib "github.com/robfig/cron/v3"

	"github.com/juniperhq/valet/internal/config"
	"github.com/juniperhq/valet/internal/store"
)

// Sweeper owns the cron schedule and the sweep itself.
type Sweeper struct {
	store       *store.Store
	resourceDir string
	logger      *slog.Logger
	schedule    string
	chartMaxAge time.Duration
	taskMaxAge  time.Duration

	cron *cronlib.Cron
	now  func() time.Time
}

func New(cfg config.RetentionConfig, st *store.Store, resourceDir string, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		store:       st,
		resourceDir: resourceDir,
		logger:      logger,
		schedule:    cfg.Schedule,
		chartMaxAge: time.Duration(cfg.ChartMaxAgeDays) * 24 * time.Hour,
		taskMaxAge:  time.Duration(cfg.DoneTaskMaxAgeDays) * 24 * time.Hour,
		now:         time.Now,
	}
}

// Start registers the sweep on its cron schedule. An empty schedule
// disables the sweeper entirely.
func (s *Sweeper) Start() error {
	if s.schedule == "" {
		s.logger.Info("retention sweep disabled")
		return nil
	}
	s.cron = cronlib.New()
	if _, err := s.cron.AddFunc(s.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		s.Sweep(ctx)
	}); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("retention sweep scheduled", "schedule", s.schedule)
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

// Sweep runs one pass. Failures are logged, not returned; a missed sweep
// retries on the next tick.
func (s *Sweeper) Sweep(ctx context.Context) (chartsRemoved int, tasksRemoved int64) {
	now := s.now()

	if s.chartMaxAge > 0 {
		chartsRemoved = s.sweepCharts(now.Add(-s.chartMaxAge))
	}
	if s.taskMaxAge > 0 {
		n, err := s.store.PruneDoneTasks(ctx, now.Add(-s.taskMaxAge))
		if err != nil {
			s.logger.Warn("task prune failed", "error", err)
		} else {
			tasksRemoved = n
		}
	}
	if chartsRemoved > 0 || tasksRemoved > 0 {
		s.logger.Info("retention sweep", "charts_removed", chartsRemoved, "tasks_removed", tasksRemoved)
	}
	return chartsRemoved, tasksRemoved
}

func (s *Sweeper) sweepCharts(cutoff time.Time) int {
	dir := filepath.Join(s.resourceDir, "charts")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("chart sweep failed", "dir", dir, "error", err)
		}
		return 0
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, entry.Name())); err != nil {
			s.logger.Warn("chart sweep remove failed", "file", entry.Name(), "error", err)
			continue
		}
		removed++
	}
	return removed
}
