package smr

import (
	"context"
	"time"

	"go.uber.org/zap"

	"conctree/infra/logutil"
)

// Reclaimer runs Collect on a fixed interval so retired nodes do not wait
// for the next burst of removals.
type Reclaimer struct {
	scheme   Scheme
	interval time.Duration
	logger   *zap.Logger
}

func NewReclaimer(s Scheme, interval time.Duration, logger *zap.Logger) *Reclaimer {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	return &Reclaimer{
		scheme:   s,
		interval: interval,
		logger:   logutil.Adjust(logger, "reclaimer"),
	}
}

// Run blocks until ctx is done.
func (r *Reclaimer) Run(ctx context.Context) {
	r.logger.Info("reclaimer started", zap.Stringer("scheme", r.scheme.Kind()), zap.Duration("interval", r.interval))
	t := time.NewTicker(r.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reclaimer stopped", zap.Int("pending", r.scheme.Pending()))
			return
		case <-t.C:
			if n := r.scheme.Collect(); n > 0 {
				r.logger.Debug("collected", zap.Int("disposed", n), zap.Int("pending", r.scheme.Pending()))
			}
		}
	}
}
