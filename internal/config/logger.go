package config

import (
	"log/slog"
	"os"
)

// NewLogger builds the process logger. Production ships JSON at info
// level; everything else gets readable text with source locations and
// the debug chatter from the session loops.
func NewLogger(env string) *slog.Logger {
	opts := &slog.HandlerOptions{}

	var handler slog.Handler
	switch env {
	case "production":
		opts.Level = slog.LevelInfo
		handler = slog.NewJSONHandler(os.Stdout, opts)
	default:
		opts.Level = slog.LevelDebug
		opts.AddSource = true
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler).With("service", "avatar-engine")
}
