// Package app provides the orchestration layer for KATANA.
//
// # Overview
//
// This package wires together configuration, logging, the printer link, the host
// health poller and the selected front end. It is the composition root: the one
// link.Client is built here, started once, handed to whatever consumes it, and
// closed on the way out.
//
// # Architecture
//
//  1. Load link settings from ~/.config/katana/link.toml (flags override url
//     and log_level)
//  2. Build the slog logger (terminal sink only outside the TUI)
//  3. Serve one-shot local and side-channel commands (files, logs) without
//     opening a websocket
//  4. Create and start link.Client
//  5. Run a one-shot command (call, send) or a session mode (tui, watch)
//
// # Components
//
//   - app.go: Run and the config-to-link option mapping
//   - poller.go: background goroutine polling server.info and
//     machine.proc_stats into a state.HealthStore while the link is ONLINE
//   - commands.go: call, send, files, logs and the line-oriented watch mode
//
// # Data Flow
//
//	┌──────────────┐
//	│   Run()      │ Initialize everything
//	└──────┬───────┘
//	       │
//	       ├─────> config.Load()      Read link.toml
//	       ├─────> logs.New()         slog fanout
//	       ├─────> link.New().Start() Supervisor goroutine
//	       ├─────> StartPoller()      Host health
//	       └─────> ui.Run() / runWatch() / runCommand()
//
// # Polling Behavior
//
// The health poller ticks at health_interval (default 5s). Ticks while the link
// is not ONLINE are skipped without counting as failures. A failed call keeps
// the previous values, records the error, and bumps the failure counter;
// Health.IsOffline reports true after two consecutive failures.
//
// # Commands
//
//	katana call <method> [json-params]   one RPC, result printed as JSON
//	katana send <gcode...>               one console command, replies echoed
//	katana files [root]                  HTTP file listing (default gcodes)
//	katana logs [lines]                  tail of log_file, one record per line
//
// call and send wait up to 15s for the link to come ONLINE before giving up.
package app
