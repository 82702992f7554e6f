// Package logging builds the slog loggers handed to the transaction core.
//
// Loggers write logfmt (key=value pairs) and accept the levels ERROR,
// WARNING, INFO and DEBUG. The core never touches slog.Default; callers pass
// the logger from here into each component.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// NewLogger creates a logfmt logger writing to stderr.
// Supported levels (case-insensitive): ERROR, WARNING, INFO, DEBUG.
// Invalid levels default to INFO.
func NewLogger(level string) *slog.Logger {
	return NewLoggerTo(os.Stderr, level)
}

// NewLoggerTo creates a logfmt logger writing to w.
func NewLoggerTo(w io.Writer, level string) *slog.Logger {
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: parseLogLevel(level),
	})
	return slog.New(handler)
}

// LevelForVerbosity maps the configured verbosity (0 quiet, 1 normal,
// 2 debug) to a level name. Values above 2 are treated as 2.
func LevelForVerbosity(verbose int) string {
	switch {
	case verbose <= 0:
		return "WARNING"
	case verbose == 1:
		return "INFO"
	default:
		return "DEBUG"
	}
}

// parseLogLevel converts string log level to slog.Level.
// Returns slog.LevelInfo for invalid or empty levels.
func parseLogLevel(level string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "ERROR":
		return slog.LevelError
	case "WARNING", "WARN":
		return slog.LevelWarn
	case "INFO":
		return slog.LevelInfo
	case "DEBUG":
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}
