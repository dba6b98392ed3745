package config

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds the printer link settings.
type Config struct {
	URL     string
	Host    string
	Objects []string

	RequestTimeout    time.Duration
	WriteTimeout      time.Duration
	BackoffInitial    time.Duration
	BackoffMax        time.Duration
	StableAfter       time.Duration
	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration
	SyncRetry         time.Duration
	HealthInterval    time.Duration

	DiagnosticsCapacity int
	ConsoleCapacity     int

	LogFile  string
	LogLevel string
}

const (
	defaultConfigPath = "~/.config/katana/link.toml"
	defaultHost       = "127.0.0.1:7125"
	defaultLogLevel   = "info"

	defaultDiagnosticsCapacity = 50
	defaultConsoleCapacity     = 500
)

var defaultObjects = []string{
	"extruder",
	"heater_bed",
	"print_stats",
	"toolhead",
	"webhooks",
	"virtual_sdcard",
	"display_status",
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		Host:                defaultHost,
		Objects:             append([]string(nil), defaultObjects...),
		RequestTimeout:      5 * time.Second,
		WriteTimeout:        5 * time.Second,
		BackoffInitial:      time.Second,
		BackoffMax:          30 * time.Second,
		StableAfter:         10 * time.Second,
		HeartbeatInterval:   15 * time.Second,
		HeartbeatTimeout:    10 * time.Second,
		SyncRetry:           2 * time.Second,
		HealthInterval:      5 * time.Second,
		DiagnosticsCapacity: defaultDiagnosticsCapacity,
		ConsoleCapacity:     defaultConsoleCapacity,
		LogLevel:            defaultLogLevel,
	}
}

type rawConfig struct {
	URL                 string    `toml:"url"`
	Host                string    `toml:"host"`
	Objects             *[]string `toml:"objects"`
	RequestTimeout      string    `toml:"request_timeout"`
	WriteTimeout        string    `toml:"write_timeout"`
	BackoffInitial      string    `toml:"backoff_initial"`
	BackoffMax          string    `toml:"backoff_max"`
	StableAfter         string    `toml:"stable_after"`
	HeartbeatInterval   string    `toml:"heartbeat_interval"`
	HeartbeatTimeout    string    `toml:"heartbeat_timeout"`
	SyncRetry           string    `toml:"sync_retry"`
	HealthInterval      string    `toml:"health_interval"`
	DiagnosticsCapacity int       `toml:"diagnostics_capacity"`
	ConsoleCapacity     int       `toml:"console_capacity"`
	LogFile             string    `toml:"log_file"`
	LogLevel            string    `toml:"log_level"`
}

// Load locates and parses link.toml, falling back to defaults when missing.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var raw rawConfig
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	cfg.URL = strings.TrimSpace(raw.URL)
	if host := strings.TrimSpace(raw.Host); host != "" {
		cfg.Host = host
	}
	if raw.Objects != nil {
		cfg.Objects = cleanObjects(*raw.Objects)
	}

	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"request_timeout", raw.RequestTimeout, &cfg.RequestTimeout},
		{"write_timeout", raw.WriteTimeout, &cfg.WriteTimeout},
		{"backoff_initial", raw.BackoffInitial, &cfg.BackoffInitial},
		{"backoff_max", raw.BackoffMax, &cfg.BackoffMax},
		{"stable_after", raw.StableAfter, &cfg.StableAfter},
		{"heartbeat_interval", raw.HeartbeatInterval, &cfg.HeartbeatInterval},
		{"heartbeat_timeout", raw.HeartbeatTimeout, &cfg.HeartbeatTimeout},
		{"sync_retry", raw.SyncRetry, &cfg.SyncRetry},
		{"health_interval", raw.HealthInterval, &cfg.HealthInterval},
	}
	for _, d := range durations {
		value := strings.TrimSpace(d.raw)
		if value == "" {
			continue
		}
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return Config{}, fmt.Errorf("parse config: %s: %w", d.key, err)
		}
		if parsed < 0 {
			return Config{}, fmt.Errorf("parse config: %s must not be negative", d.key)
		}
		*d.dst = parsed
	}

	if raw.DiagnosticsCapacity > 0 {
		cfg.DiagnosticsCapacity = raw.DiagnosticsCapacity
	}
	if raw.ConsoleCapacity > 0 {
		cfg.ConsoleCapacity = raw.ConsoleCapacity
	}

	if logFile := strings.TrimSpace(raw.LogFile); logFile != "" {
		cfg.LogFile = mustExpand(logFile)
	}
	if level := strings.TrimSpace(raw.LogLevel); level != "" {
		cfg.LogLevel = strings.ToLower(level)
	}

	if cfg.URL != "" {
		if _, err := url.Parse(cfg.URL); err != nil {
			return Config{}, fmt.Errorf("parse config: url: %w", err)
		}
	}
	return cfg, nil
}

// Endpoint returns the websocket URL to dial: URL when set, otherwise one
// derived from Host.
func (c Config) Endpoint() string {
	if strings.TrimSpace(c.URL) != "" {
		return strings.TrimSpace(c.URL)
	}
	host := strings.TrimSpace(c.Host)
	if host == "" {
		host = defaultHost
	}
	return "ws://" + host + "/websocket"
}

func cleanObjects(objects []string) []string {
	out := make([]string, 0, len(objects))
	seen := make(map[string]bool, len(objects))
	for _, name := range objects {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
