// Package logging provides logging setup for the watcher.
// Logs go to stderr as human-readable text; the tool runs in the
// foreground of a desktop session and its output is read in a terminal
// or the user journal.
package logging

import (
	"io"
	"log/slog"
	"os"
)

// Config holds logging configuration.
type Config struct {
	// Debug lowers the level from Info to Debug.
	Debug bool

	// Writer receives log output. Defaults to os.Stderr.
	Writer io.Writer
}

// Setup creates the logger and installs it as the slog default.
func Setup(cfg Config) *slog.Logger {
	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}

	w := cfg.Writer
	if w == nil {
		w = os.Stderr
	}

	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return logger
}
