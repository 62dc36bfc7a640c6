package app

import (
	"context"
	"log/slog"
	"time"

	"rrfiler/internal/filing/service"
)

// PollCycler runs one poll cycle.
type PollCycler interface {
	PollDue(ctx context.Context) (*service.PollReport, error)
}

// RunScheduler runs a poll cycle every interval until ctx is cancelled.
// Cycles never overlap; a slow cycle delays the next tick.
func RunScheduler(ctx context.Context, svc PollCycler, interval time.Duration, logger *slog.Logger) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	logger.InfoContext(ctx, "poll scheduler started", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if _, err := svc.PollDue(ctx); err != nil && ctx.Err() == nil {
			logger.ErrorContext(ctx, "scheduled poll cycle failed", "error", err)
		}
	}
}
