// Package tracker drives periodic position sampling while a session is open.
package tracker

import (
	"context"
	"log/slog"
	"time"
)

// Sampler is the controller hook a tracker ticks. Implementations decide
// whether anything is playing; the tracker just keeps time.
type Sampler interface {
	SamplePosition()
}

// Tracker calls the sampler once per interval.
type Tracker struct {
	sampler  Sampler
	interval time.Duration
	logger   *slog.Logger
}

// New creates a tracker ticking at the given interval.
func New(sampler Sampler, interval time.Duration, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{sampler: sampler, interval: interval, logger: logger}
}

// Run ticks until the context is canceled.
func (t *Tracker) Run(ctx context.Context) error {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	t.logger.Info("position tracker started", "interval", t.interval.String())

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("position tracker stopped")
			return nil
		case <-ticker.C:
			t.sampler.SamplePosition()
		}
	}
}
