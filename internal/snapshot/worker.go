// Package snapshot keeps the stored daily scores current while the server runs.
package snapshot

import (
	"context"
	"log/slog"
	"time"

	"github.com/terra-clan/ability-tracker/internal/models"
)

// DailyScorer recomputes and stores the score of one calendar day
type DailyScorer interface {
	DailyScore(ctx context.Context, date time.Time) (*models.DailyScore, error)
}

// Worker periodically snapshots today's daily score
type Worker struct {
	scorer   DailyScorer
	interval time.Duration
	loc      *time.Location
	now      func() time.Time

	lastDay time.Time
}

// NewWorker creates a snapshot worker. An interval of zero or less disables it.
func NewWorker(scorer DailyScorer, interval time.Duration, loc *time.Location) *Worker {
	if loc == nil {
		loc = time.Local
	}
	return &Worker{
		scorer:   scorer,
		interval: interval,
		loc:      loc,
		now:      time.Now,
	}
}

// Enabled reports whether Start will launch the loop
func (w *Worker) Enabled() bool {
	return w.interval > 0
}

// Start begins the worker in a goroutine
func (w *Worker) Start(ctx context.Context) {
	if !w.Enabled() {
		slog.Info("snapshot worker disabled")
		return
	}
	go w.run(ctx)
}

func (w *Worker) run(ctx context.Context) {
	slog.Info("snapshot worker started", "interval", w.interval)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// Run immediately on start
	w.snapshot(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("snapshot worker stopped")
			return
		case <-ticker.C:
			w.snapshot(ctx)
		}
	}
}

// snapshot stores today's score. When the day rolled over since the last
// run, the previous day is recomputed once more so late completions count.
func (w *Worker) snapshot(ctx context.Context) {
	now := w.now().In(w.loc)
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, w.loc)

	if !w.lastDay.IsZero() && w.lastDay.Before(today) {
		if _, err := w.scorer.DailyScore(ctx, w.lastDay); err != nil {
			slog.Error("failed to finalize daily score", "error", err, "date", w.lastDay.Format(time.DateOnly))
		}
	}

	ds, err := w.scorer.DailyScore(ctx, today)
	if err != nil {
		slog.Error("failed to snapshot daily score", "error", err, "date", today.Format(time.DateOnly))
		return
	}
	w.lastDay = today

	slog.Debug("daily score snapshot",
		"date", today.Format(time.DateOnly),
		"total_score", ds.TotalScore,
		"task_count", ds.TaskCount,
	)
}
