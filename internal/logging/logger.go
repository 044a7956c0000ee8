// Package logging provides the process-level slog setup shared by the
// worker and the HTTP API.
package logging

import (
	"io"
	"log/slog"
	"os"

	"golang.org/x/term"
)

// Config configures the logger.
type Config struct {
	Level     string
	Format    string // auto, text, json
	Output    io.Writer
	AddSource bool
}

// DefaultConfig returns the default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  "info",
		Format: "auto",
		Output: os.Stdout,
	}
}

// New creates a new logger. The auto format picks human-readable text on
// a terminal and JSON otherwise.
func New(cfg Config) *slog.Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}

	level := parseLevel(cfg.Level)
	opts := &slog.HandlerOptions{Level: level, AddSource: cfg.AddSource}

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(cfg.Output, opts)
	case "text":
		handler = slog.NewTextHandler(cfg.Output, opts)
	default: // auto
		if isTerminal(cfg.Output) {
			handler = slog.NewTextHandler(cfg.Output, opts)
		} else {
			handler = slog.NewJSONHandler(cfg.Output, opts)
		}
	}

	return slog.New(handler)
}

// NewNop creates a no-op logger for testing.
func NewNop() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func parseLevel(s string) slog.Level {
	switch s {
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

func isTerminal(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return term.IsTerminal(int(f.Fd()))
	}
	return false
}
