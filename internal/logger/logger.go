// Package logger constructs the single zerolog.Logger each process uses.
package logger

import (
	"os"

	"github.com/hotelly/hotelly/internal/config"
	"github.com/rs/zerolog"
)

// New returns a configured zerolog.Logger: console writer in development,
// JSON in every other environment, level controlled by cfg.LogLevel.
func New(cfg *config.Config) zerolog.Logger {
	var out zerolog.ConsoleWriter
	lvl, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	if cfg.IsDevelopment() {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
		return zerolog.New(out).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}

// WithRole tags every subsequent log line with the process role
// ("ingress" or "worker"), making it trivial to split logs by role
// downstream even though both roles share one schema and one binary image.
func WithRole(log zerolog.Logger, role string) zerolog.Logger {
	return log.With().Str("role", role).Logger()
}
