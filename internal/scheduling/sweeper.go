package scheduling

import (
	"context"
	"time"
)

// RunSweeper completes lapsed appointments every interval until ctx is done
func (r *Registry) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.logger.Info("lapse sweeper started", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("lapse sweeper stopped")
			return
		case <-ticker.C:
			if _, err := r.SweepLapsed(ctx, r.Now()); err != nil && ctx.Err() == nil {
				r.logger.Error("lapse sweep failed", "error", err)
			}
		}
	}
}
