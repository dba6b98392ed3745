package logs

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	slogmulti "github.com/samber/slog-multi"
)

// Options select the log sinks.
type Options struct {
	// Terminal receives human-readable text. Leave nil while a full-screen UI
	// owns the terminal.
	Terminal io.Writer
	// File receives JSON lines when set. Parent directories are created.
	File string
	// Level is shared by every sink so it can be changed at runtime. Nil means
	// info.
	Level *slog.LevelVar
}

// New builds a logger fanning out to every configured sink. The returned close
// function releases the log file.
func New(opts Options) (*slog.Logger, func() error, error) {
	level := opts.Level
	if level == nil {
		level = new(slog.LevelVar)
	}
	handlerOpts := &slog.HandlerOptions{Level: level}

	var handlers []slog.Handler
	if opts.Terminal != nil {
		handlers = append(handlers, slog.NewTextHandler(opts.Terminal, handlerOpts))
	}

	closeFn := func() error { return nil }
	if path := strings.TrimSpace(opts.File); path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log dir: %w", err)
		}
		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		handlers = append(handlers, slog.NewJSONHandler(file, handlerOpts))
		closeFn = file.Close
	}

	if len(handlers) == 0 {
		return slog.New(slog.DiscardHandler), closeFn, nil
	}
	return slog.New(slogmulti.Fanout(handlers...)), closeFn, nil
}

// ParseLevel maps debug, info, warn and error (any case) to a slog level. An
// empty string means info.
func ParseLevel(s string) (slog.Level, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return slog.LevelInfo, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("parse log level %q: %w", s, err)
	}
	return level, nil
}
