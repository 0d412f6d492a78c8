// Package logging configures the process-wide slog logger.
package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Setup builds a text logger at the requested level, installs it as the
// slog default, and returns it. The binaries pass TOYBOX_LOG_LEVEL here;
// anything slog.Level cannot parse falls back to info.
func Setup(level string) *slog.Logger {
	lvl := slog.LevelInfo
	var parsed slog.Level
	if err := parsed.UnmarshalText([]byte(strings.TrimSpace(level))); err == nil {
		lvl = parsed
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
	return logger
}
