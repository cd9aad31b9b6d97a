// Package logger configures the zerolog console logger used by the daemon.
package logger

import (
	"fmt"
	"io"

	"github.com/rs/zerolog"
)

// TimeFormat is the timestamp layout for log lines (millisecond precision).
const TimeFormat = "2006-01-02T15:04:05.000Z07:00"

// New returns a console logger writing to out at the given level.
func New(level zerolog.Level, out io.Writer) zerolog.Logger {
	zerolog.TimeFieldFormat = TimeFormat

	output := zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: TimeFormat,
		NoColor:    true,
	}

	return zerolog.New(output).Level(level).With().Timestamp().Logger()
}

// ParseLevel converts a flag value such as "debug" or "warn" to a level.
// An empty string means info.
func ParseLevel(s string) (zerolog.Level, error) {
	if s == "" {
		return zerolog.InfoLevel, nil
	}
	level, err := zerolog.ParseLevel(s)
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("parse log level %q: %w", s, err)
	}
	return level, nil
}

// Component returns a child logger tagged with the component name.
func Component(log zerolog.Logger, name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}
