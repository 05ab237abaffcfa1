// Package logging builds the zerolog logger shared by the server components.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New returns a timestamped logger writing to w at the given level. Unknown
// levels fall back to info. When console is set the output is the
// human-readable console format instead of JSON.
func New(w io.Writer, level string, console bool) zerolog.Logger {
	if w == nil {
		w = os.Stdout
	}
	if console {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

// Component derives a child logger tagged with the component name.
func Component(logger zerolog.Logger, name string) zerolog.Logger {
	return logger.With().Str("component", name).Logger()
}
