// Package logging builds the process-wide structured logger.
//
// JSON output goes through log/slog's JSON handler. Console output, meant for
// local development, goes through charmbracelet/log, whose Logger is itself a
// slog.Handler, so callers only ever see *slog.Logger.
package logging

import (
	"io"
	"log/slog"
	"strings"

	"github.com/charmbracelet/log"
)

// Format names accepted by New
const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// Options configures the logger
type Options struct {
	Level  string
	Format string
	Prefix string
}

// New returns a logger writing to w in the requested format
func New(w io.Writer, opts Options) *slog.Logger {
	level := ParseLevel(opts.Level)

	if opts.Format == FormatConsole {
		console := log.NewWithOptions(w, log.Options{
			Level:           consoleLevel(level),
			Formatter:       log.TextFormatter,
			ReportTimestamp: true,
			Prefix:          opts.Prefix,
		})
		return slog.New(console)
	}

	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}

// ParseLevel maps a level name to a slog level; unknown names mean info
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func consoleLevel(level slog.Level) log.Level {
	switch {
	case level <= slog.LevelDebug:
		return log.DebugLevel
	case level <= slog.LevelInfo:
		return log.InfoLevel
	case level <= slog.LevelWarn:
		return log.WarnLevel
	default:
		return log.ErrorLevel
	}
}
