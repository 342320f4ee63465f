package retention

import (
	"context"
	"log/slog"
	"time"
)

// Scheduler drives the manager on a periodic interval.
// It is stateless: each tick applies the policies as they stand.
type Scheduler struct {
	interval time.Duration
	manager  *Manager
}

func NewScheduler(interval time.Duration, manager *Manager) *Scheduler {
	return &Scheduler{interval: interval, manager: manager}
}

// Start begins periodic retention cycles and runs until the context is
// cancelled, then performs one final cycle on a 30s budget so shutdown never
// leaves an overdue backlog behind.
func (s *Scheduler) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	slog.Info("[Retention] Starting scheduler", "interval", s.interval)

	s.runOnce(ctx)

	for {
		select {
		case <-ticker.C:
			s.runOnce(ctx)
		case <-ctx.Done():
			slog.Info("[Retention] Stopping (context cancelled)")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			slog.Info("[Retention] Running final cycle before shutdown...")
			s.runOnce(shutdownCtx)
			slog.Info("[Retention] Final cycle complete")

			return nil
		}
	}
}

// runOnce applies one full cycle. Errors are logged, never fatal; the next
// tick retries from current table state.
func (s *Scheduler) runOnce(ctx context.Context) {
	if err := s.manager.Run(ctx, time.Now().UTC()); err != nil {
		slog.Error("[Retention] Cycle failed", "error", err)
	}
}
