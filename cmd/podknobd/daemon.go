package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	"github.com/vmunix/podknob/internal/audio"
	"github.com/vmunix/podknob/internal/config"
	"github.com/vmunix/podknob/internal/control"
	"github.com/vmunix/podknob/internal/events"
	"github.com/vmunix/podknob/internal/feed"
	"github.com/vmunix/podknob/internal/hardware"
	"github.com/vmunix/podknob/internal/library"
	"github.com/vmunix/podknob/internal/migrations"
	"github.com/vmunix/podknob/internal/server"
	"github.com/vmunix/podknob/internal/state"
	"github.com/vmunix/podknob/internal/tracker"
)

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func runDaemon(configPath string) error {
	if configPath == "" {
		discovered, err := config.Discover()
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
		configPath = discovered
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if problems := cfg.Validate(); len(problems) > 0 {
		return &config.ConfigError{Path: configPath, Errors: problems}
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Daemon.LogLevel),
	}))

	// Open history database
	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0755); err != nil {
		return fmt.Errorf("create db dir: %w", err)
	}
	db, err := sql.Open("sqlite", cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer func() { _ = db.Close() }()

	if _, err := db.Exec(migrations.InitialSQL); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	// Event bus with persistent history
	bus := events.NewBus(events.NewEventLog(db), logger.With("component", "bus"))
	defer func() { _ = bus.Close() }()

	// State, libraries, playback
	store := state.Open(cfg.Daemon.StatePath, logger.With("component", "state"))

	fetcher := feed.NewFetcher(
		time.Duration(cfg.Podcasts.RSSTimeout)*time.Second,
		time.Duration(cfg.Podcasts.DownloadTimeout)*time.Second,
	)
	podcasts := library.NewPodcasts(fetcher, store, bus,
		cfg.Podcasts.EpisodesDir, cfg.Podcasts.MaxEpisodes,
		logger.With("component", "podcasts"))
	music := library.NewMusic(configPath, logger.With("component", "music"))

	backend := audio.NewMPV(cfg.Player.MPVBinary, cfg.Player.MPVSocket,
		logger.With("component", "mpv"))
	controller := control.NewController(backend, store, music, podcasts, bus,
		cfg.Player.AudioExtension, logger.With("component", "control"))
	// Feed refreshes swap episode lists through the controller so an open
	// session never samples into a stale index.
	podcasts.SetSessionSync(controller)

	trk := tracker.New(controller,
		time.Duration(cfg.Player.PositionSaveInterval)*time.Second,
		logger.With("component", "tracker"))

	reader := hardware.NewFileReader(cfg.Daemon.ControlFile)

	runner := server.NewRunner(reader, controller, trk, podcasts, store, server.Config{
		PollInterval:  time.Duration(cfg.Daemon.PollMS) * time.Millisecond,
		CheckInterval: time.Duration(cfg.Podcasts.CheckInterval * float64(time.Hour)),
		Feeds:         cfg.Podcasts.Feeds,
	}, logger.With("component", "runner"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runDone := make(chan error, 1)
	go func() { runDone <- runner.Run(ctx) }()

	logger.Info("podknobd started",
		"config", configPath,
		"state", cfg.Daemon.StatePath,
		"control_file", cfg.Daemon.ControlFile,
		"feeds", len(cfg.Podcasts.Feeds),
		"albums", len(cfg.Music.Albums),
		"log_level", cfg.Daemon.LogLevel,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received signal, shutting down", "signal", sig.String())
		cancel()
		<-runDone
	case err := <-runDone:
		if err != nil {
			logger.Error("runner failed", "error", err)
		}
	}

	// Close any open session and write the final state. Every exit path ends
	// here before the process leaves main.
	controller.Stop()
	if err := store.Flush(); err != nil {
		logger.Error("final state save failed", "error", err)
	}

	logger.Info("podknobd stopped")
	return nil
}
