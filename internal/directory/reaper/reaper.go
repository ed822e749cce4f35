package reaper

import (
	"context"
	"log/slog"
	"time"
)

// Reclaimer is the admission controller's expiry hook.
type Reclaimer interface {
	ReclaimExpired(ctx context.Context, now time.Time) int
}

// Reaper sweeps the pending store on a fixed interval, reclaiming entries
// whose payment deadline has passed. A fixed interval rather than per-entry
// timers bounds memory under submission bursts; the cost is up to one
// interval of reclamation delay, which affects cleanup latency only, never
// admission correctness.
type Reaper struct {
	reclaimer Reclaimer
	interval  time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures the reaper.
type Option func(*Reaper)

// WithClock overrides the time source. Tests only.
func WithClock(now func() time.Time) Option {
	return func(r *Reaper) { r.now = now }
}

// New creates a reaper sweeping at the given interval (default one minute).
func New(reclaimer Reclaimer, interval time.Duration, logger *slog.Logger, opts ...Option) *Reaper {
	if interval <= 0 {
		interval = time.Minute
	}
	r := &Reaper{
		reclaimer: reclaimer,
		interval:  interval,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run sweeps until ctx is done.
func (r *Reaper) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if reclaimed := r.reclaimer.ReclaimExpired(ctx, r.now()); reclaimed > 0 {
				r.logger.InfoContext(ctx, "reaper sweep reclaimed entries",
					"count", reclaimed,
				)
			}
		}
	}
}
