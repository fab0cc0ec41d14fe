// Package logging provides the process-level structured logger. Per-run
// timeline logging lives in the run directory's run.log; this logger
// carries diagnostics that happen before a run directory exists or that
// belong to the process rather than a run.
package logging

import (
	"log/slog"
	"os"
)

// New creates a JSON logger on stderr. Verbose enables debug-level
// output; otherwise only warnings and errors surface, keeping stdout
// clean for the progress display.
func New(verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}
