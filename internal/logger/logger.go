// Package logger holds the process-wide diagnostic logger used by the btps
// packages. Output is discarded until Init is called.
package logger

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// L is the global logger instance. It discards all output by default.
var L *slog.Logger = discard()

const (
	logPrefix     = "btps-"
	logSuffix     = ".log"
	retentionDays = 14
)

// Options configures the logger initialization.
type Options struct {
	Enabled bool       // If false, all logging is discarded
	Writer  io.Writer  // Destination. If nil, a dated file under LogDir is used
	LogDir  string     // Directory for log files. Default: ~/.btpskit/logs
	Level   slog.Level // Minimum log level
	JSON    bool       // Emit JSON records instead of logfmt text
}

// Init configures logging. Call from main() before opening any transport.
// If opts.Enabled is false, all log output is discarded.
func Init(opts Options) error {
	if !opts.Enabled {
		L = discard()
		return nil
	}

	w := opts.Writer
	if w == nil {
		f, err := openDated(opts.LogDir)
		if err != nil {
			return err
		}
		w = f
	}

	hopts := &slog.HandlerOptions{Level: opts.Level}
	if opts.JSON {
		L = slog.New(slog.NewJSONHandler(w, hopts))
	} else {
		L = slog.New(slog.NewTextHandler(w, hopts))
	}
	return nil
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// openDated opens today's log file in dir, creating dir if needed and
// pruning files older than retentionDays.
func openDated(dir string) (*os.File, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		dir = filepath.Join(home, ".btpskit", "logs")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	// Best-effort.
	pruneLogs(dir, time.Now().AddDate(0, 0, -retentionDays))

	name := filepath.Join(dir, logPrefix+time.Now().Format("2006-01-02")+logSuffix)
	return os.OpenFile(name, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
}

// pruneLogs removes btps-YYYY-MM-DD.log files dated before cutoff.
func pruneLogs(dir string, cutoff time.Time) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, logPrefix) || !strings.HasSuffix(name, logSuffix) {
			continue
		}
		day, err := time.Parse("2006-01-02", strings.TrimSuffix(strings.TrimPrefix(name, logPrefix), logSuffix))
		if err != nil {
			continue
		}
		if day.Before(cutoff) {
			os.Remove(filepath.Join(dir, name))
		}
	}
}

// Debug logs a debug message with optional key-value pairs.
func Debug(msg string, args ...any) { L.Debug(msg, args...) }

// Info logs an info message with optional key-value pairs.
func Info(msg string, args ...any) { L.Info(msg, args...) }

// Warn logs a warning message with optional key-value pairs.
func Warn(msg string, args ...any) { L.Warn(msg, args...) }

// Error logs an error message with optional key-value pairs.
func Error(msg string, args ...any) { L.Error(msg, args...) }
