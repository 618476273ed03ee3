package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// ParseLevel maps a level name to a slog level. Unknown names fall back to def.
func ParseLevel(name string, def slog.Level) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "dev", "development", "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error", "production", "prod":
		return slog.LevelError
	}
	return def
}

// Init installs the default logger. An explicit level wins over LOG_LEVEL,
// which wins over def.
func Init(level string, def slog.Level) {
	InitWriter(os.Stderr, level, def)
}

func InitWriter(w io.Writer, level string, def slog.Level) {
	lvl := def
	if l, ok := os.LookupEnv("LOG_LEVEL"); ok {
		lvl = ParseLevel(l, lvl)
	}
	if level != "" {
		lvl = ParseLevel(level, lvl)
	}

	logger := slog.New(
		slog.NewTextHandler(w, &slog.HandlerOptions{
			Level: lvl,
		}),
	)
	slog.SetDefault(logger)
}
