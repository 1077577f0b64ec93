package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// NewLogger returns the JSON logger shared by every binary.
func NewLogger(level string) *slog.Logger {
	return New(os.Stdout, level)
}

// New writes JSON records to w. Unknown levels fall back to info.
func New(w io.Writer, level string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     ParseLevel(level),
		AddSource: true,
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

// Discard is used by tests and by components built without a logger.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
