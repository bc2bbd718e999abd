// Package scheduler drives repeated sniper invocations in continuous mode.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"harpoon/internal/config"
	"harpoon/internal/market"
	"harpoon/internal/sniper"
)

// Scheduler owns the polling loop and the market cache refresher
// lifecycle. Each tick is one full sniper invocation; the invocation
// itself re-checks risk and re-scans, so the scheduler carries no trading
// state across ticks.
type Scheduler struct {
	sniper *sniper.Sniper
	cache  *market.Cache
	cfg    config.ScheduleConfig
}

func New(sn *sniper.Sniper, cache *market.Cache, cfg config.ScheduleConfig) *Scheduler {
	return &Scheduler{sniper: sn, cache: cache, cfg: cfg}
}

// Run blocks until the context is cancelled. The first invocation runs
// immediately; later ones on the poll interval.
func (s *Scheduler) Run(ctx context.Context) error {
	slog.Info("scheduler starting", "poll_interval", s.cfg.PollInterval.Duration)

	s.cache.StartRefresher(ctx)
	defer s.cache.StopRefresher()

	s.runOnce(ctx)

	ticker := time.NewTicker(s.cfg.PollInterval.Duration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("scheduler shutting down")
			return ctx.Err()
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	summary, err := s.sniper.Run(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		slog.Error("sniper invocation failed", "error", err)
		return
	}

	slog.Info("invocation summary",
		"scanned", summary.Scanned,
		"skipped", summary.Skipped,
		"orders", summary.Orders,
		"filled", summary.Filled,
		"stopped_reason", summary.StoppedReason,
		"selected", summary.SelectedTicker,
	)
}
