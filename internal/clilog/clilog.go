// Package clilog sets up the logging backend of the command line tools: log
// lines go to stdout and, optionally, to a rotated log file.
package clilog

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/decred/slog"
	"github.com/jrick/logrotate/rotator"
)

// MaxLogFiles is the number of rotated log files kept.
const MaxLogFiles = 10

// writer duplicates log lines to stdout and to the log rotator.
type writer struct {
	stdOut     io.Writer
	logRotator *rotator.Rotator
}

func (w *writer) Write(b []byte) (int, error) {
	if w.stdOut != nil {
		w.stdOut.Write(b)
	}
	if w.logRotator != nil {
		w.logRotator.Write(b)
	}
	return len(b), nil
}

// Backend creates the subsystem loggers of a tool.
type Backend struct {
	w     *writer
	bknd  *slog.Backend
	level slog.Level
}

// New creates a backend writing to stdOut (if non-nil) and to logFile (if
// non-empty) with the given level name.
func New(stdOut io.Writer, logFile, level string) (*Backend, error) {
	lvl, ok := slog.LevelFromString(level)
	if !ok {
		return nil, fmt.Errorf("unknown log level %q", level)
	}

	w := &writer{stdOut: stdOut}
	if logFile != "" {
		logDir := filepath.Dir(logFile)
		if err := os.MkdirAll(logDir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		logRotator, err := rotator.New(logFile, 1024, false, MaxLogFiles)
		if err != nil {
			return nil, fmt.Errorf("failed to create file rotator: %w", err)
		}
		w.logRotator = logRotator
	}

	return &Backend{w: w, bknd: slog.NewBackend(w), level: lvl}, nil
}

// Logger returns the logger of a subsystem, set to the backend level.
func (b *Backend) Logger(subsys string) slog.Logger {
	l := b.bknd.Logger(subsys)
	l.SetLevel(b.level)
	return l
}

// Close closes the log file, if any.
func (b *Backend) Close() error {
	if b.w.logRotator == nil {
		return nil
	}
	return b.w.logRotator.Close()
}
