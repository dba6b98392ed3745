package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/Extrutex/KATANA-Klipper-Installer/internal/config"
	"github.com/Extrutex/KATANA-Klipper-Installer/internal/link"
	"github.com/Extrutex/KATANA-Klipper-Installer/internal/logs"
	"github.com/Extrutex/KATANA-Klipper-Installer/internal/state"
	"github.com/Extrutex/KATANA-Klipper-Installer/internal/ui"
)

// Modes for long-running sessions.
const (
	ModeTUI   = "tui"
	ModeWatch = "watch"
)

// Options configure one KATANA invocation.
type Options struct {
	ConfigPath string
	URL        string // overrides url from the config file
	LogLevel   string // overrides log_level from the config file
	Mode       string // tui (default) or watch
	// Args holds an optional one-shot command: call, send, files or logs.
	Args []string

	Stdout io.Writer
	Stderr io.Writer
}

// Run loads configuration, starts the printer link and runs the selected mode or
// command until it finishes or ctx is cancelled.
func Run(ctx context.Context, opts Options) error {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load link config: %w", err)
	}
	if url := strings.TrimSpace(opts.URL); url != "" {
		cfg.URL = url
	}
	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		cfg.LogLevel = level
	}

	mode := strings.ToLower(strings.TrimSpace(opts.Mode))
	if mode == "" {
		mode = ModeTUI
	}
	if mode != ModeTUI && mode != ModeWatch {
		return fmt.Errorf("unknown mode %q (want %s or %s)", opts.Mode, ModeTUI, ModeWatch)
	}
	interactive := mode == ModeTUI && len(opts.Args) == 0

	level, err := logs.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	levelVar := new(slog.LevelVar)
	levelVar.Set(level)

	logOpts := logs.Options{File: cfg.LogFile, Level: levelVar}
	if !interactive {
		logOpts.Terminal = opts.Stderr
	}
	logger, closeLogs, err := logs.New(logOpts)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer closeLogs()

	if len(opts.Args) > 0 {
		switch opts.Args[0] {
		case cmdFiles:
			return runFiles(ctx, cfg, opts.Args[1:], opts.Stdout)
		case cmdLogs:
			return runLogs(cfg, opts.Args[1:], opts.Stdout)
		}
	}

	client := link.New(linkOptions(cfg, logger))
	client.Start(ctx)
	defer client.Close()

	if len(opts.Args) > 0 {
		return runCommand(ctx, client, cfg, opts.Args, opts.Stdout)
	}

	health := &state.HealthStore{}
	StartPoller(ctx, health, client, cfg.HealthInterval, logger.With("component", "health"))

	if mode == ModeWatch {
		return runWatch(ctx, client, opts.Stdout)
	}

	err = ui.Run(ctx, ui.Options{Link: client, Health: health.Snapshot})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func linkOptions(cfg config.Config, logger *slog.Logger) link.Options {
	heartbeat := cfg.HeartbeatInterval
	if heartbeat == 0 {
		heartbeat = -1
	}
	return link.Options{
		Endpoint:            cfg.Endpoint(),
		Objects:             cfg.Objects,
		RequestTimeout:      cfg.RequestTimeout,
		WriteTimeout:        cfg.WriteTimeout,
		BackoffInitial:      cfg.BackoffInitial,
		BackoffMax:          cfg.BackoffMax,
		StableAfter:         cfg.StableAfter,
		HeartbeatInterval:   heartbeat,
		HeartbeatTimeout:    cfg.HeartbeatTimeout,
		SyncRetry:           cfg.SyncRetry,
		DiagnosticsCapacity: cfg.DiagnosticsCapacity,
		ConsoleCapacity:     cfg.ConsoleCapacity,
		Logger:              logger,
	}
}
