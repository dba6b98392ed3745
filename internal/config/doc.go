// Package config loads the printer link settings from link.toml.
//
// # Configuration Discovery
//
// The Load function follows this resolution order:
//
//  1. If a path is explicitly provided, use it
//  2. Otherwise, use ~/.config/katana/link.toml (default)
//  3. If the config file doesn't exist, fall back to Default()
//  4. If the file exists but fields are missing or empty, use defaults
//
// # Endpoint
//
// url wins when set. Otherwise the websocket URL is derived from host:
//
//	host = "127.0.0.1:7125"   ->   ws://127.0.0.1:7125/websocket
//
// # TOML Format
//
//	url = ""                       # ws[s]://host:port/websocket
//	host = "127.0.0.1:7125"
//	objects = ["extruder", "heater_bed", "print_stats", "toolhead",
//	           "webhooks", "virtual_sdcard", "display_status"]
//	request_timeout = "5s"
//	write_timeout = "5s"
//	backoff_initial = "1s"
//	backoff_max = "30s"
//	stable_after = "10s"
//	heartbeat_interval = "15s"     # "0s" disables heartbeats
//	heartbeat_timeout = "10s"
//	sync_retry = "2s"
//	health_interval = "5s"
//	diagnostics_capacity = 50
//	console_capacity = 500
//	log_file = "~/.local/state/katana/link.log"
//	log_level = "info"
//
// Durations use time.ParseDuration syntax. An empty objects list subscribes to
// every object the printer reports. Tilde expansion is applied to log_file.
//
// # Error Handling
//
// Load returns errors for path expansion failures, unreadable files, TOML syntax
// errors, and invalid or negative durations. Missing config files are not an
// error.
package config
