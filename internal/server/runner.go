// Package server runs the daemon's loops: the hardware poll loop, the
// position tracker, and the feed refresh scheduler.
package server

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vmunix/podknob/internal/config"
	"github.com/vmunix/podknob/internal/hardware"
	"github.com/vmunix/podknob/internal/state"
	"github.com/vmunix/podknob/internal/tracker"
)

// Controls is the slice of the controller the poll loop drives.
type Controls interface {
	Apply(r hardware.Reading)
	CheckEnded()
}

// Refresher runs feed refresh cycles.
type Refresher interface {
	RefreshAll(ctx context.Context, feeds []config.FeedConfig)
}

// Config for the runner's loops.
type Config struct {
	PollInterval  time.Duration
	CheckInterval time.Duration
	Feeds         []config.FeedConfig
}

// Runner manages the daemon's long-running components.
type Runner struct {
	reader    hardware.SwitchReader
	controls  Controls
	tracker   *tracker.Tracker
	refresher Refresher
	store     *state.Store
	config    Config
	logger    *slog.Logger
}

// NewRunner creates a new runner.
func NewRunner(reader hardware.SwitchReader, controls Controls, trk *tracker.Tracker, refresher Refresher, store *state.Store, cfg Config, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		reader:    reader,
		controls:  controls,
		tracker:   trk,
		refresher: refresher,
		store:     store,
		config:    cfg,
		logger:    logger,
	}
}

// Run starts all components and blocks until the context is canceled.
func (r *Runner) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return r.runPollLoop(ctx) })
	g.Go(func() error { return r.tracker.Run(ctx) })
	g.Go(func() error { return r.runRefreshLoop(ctx) })

	return g.Wait()
}

// runPollLoop reads the hardware and feeds the controller, once per tick.
func (r *Runner) runPollLoop(ctx context.Context) error {
	ticker := time.NewTicker(r.config.PollInterval)
	defer ticker.Stop()

	r.logger.Info("poll loop started", "interval", r.config.PollInterval.String())

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("poll loop stopped")
			return nil
		case <-ticker.C:
			r.pollTick()
		}
	}
}

// pollTick runs one poll cycle. A panic inside a tick is logged and the loop
// carries on; the player is meant to stay alive indefinitely.
func (r *Runner) pollTick() {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("poll tick panicked", "panic", p)
		}
	}()

	reading, err := r.reader.Read()
	if err != nil {
		r.logger.Error("switch read failed", "error", err)
		return
	}
	r.controls.Apply(reading)
	r.controls.CheckEnded()
}

// runRefreshLoop schedules feed refresh cycles against the persisted last
// check time, so a daemon restart does not trigger an immediate refetch of
// feeds checked minutes ago.
func (r *Runner) runRefreshLoop(ctx context.Context) error {
	r.logger.Info("feed refresh scheduler started", "interval", r.config.CheckInterval.String())

	for {
		if time.Since(r.store.LastCheck()) >= r.config.CheckInterval {
			r.refresh(ctx)
		}
		if ctx.Err() != nil {
			return nil
		}

		// Sleep until the next cycle is due, with a floor so a refresher
		// that could not record its check time cannot spin the loop.
		wait := time.Until(r.store.LastCheck().Add(r.config.CheckInterval))
		if wait < time.Second {
			wait = time.Second
		}
		select {
		case <-ctx.Done():
			r.logger.Info("feed refresh scheduler stopped")
			return nil
		case <-time.After(wait):
		}
	}
}

func (r *Runner) refresh(ctx context.Context) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("feed refresh panicked", "panic", p)
		}
	}()

	r.logger.Info("refreshing feeds", "feeds", len(r.config.Feeds))
	r.refresher.RefreshAll(ctx, r.config.Feeds)
}
