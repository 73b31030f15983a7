// Package logging builds the root zerolog logger from config.
package logging

import (
	"io"
	"time"

	"github.com/rs/zerolog"

	"pulse/internal/config"
)

// New returns a logger writing to w. Console output is human readable;
// otherwise one JSON object per line. An unknown level falls back to info.
func New(cfg config.LogConfig, w io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	if cfg.Console {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}
