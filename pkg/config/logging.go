package config

import (
	"io"
	"log/slog"
)

// ParseLogLevel maps a config log level to a slog level, defaulting to info
func ParseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger builds the text logger used by every service. The returned
// LevelVar lets the level change at runtime.
func NewLogger(w io.Writer, level string) (*slog.Logger, *slog.LevelVar) {
	lv := new(slog.LevelVar)
	lv.Set(ParseLogLevel(level))

	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: lv,
	}))
	return logger, lv
}
