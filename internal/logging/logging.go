// Package logging builds the process logger.
package logging

import (
	"io"
	"log/slog"
)

// New returns a text logger on w at Info level, or Debug when verbose.
func New(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
