// Package logging builds the zerolog logger used by the standalone server.
package logging

import (
	"io"
	"os"
	"time"

	"ito/internal/ports"

	"github.com/rs/zerolog"
)

// New returns a logger writing to stdout. format "console" gives
// human-readable output, anything else JSON lines.
func New(format string, level zerolog.Level) zerolog.Logger {
	return NewWithWriter(os.Stdout, format, level)
}

func NewWithWriter(w io.Writer, format string, level zerolog.Level) zerolog.Logger {
	if format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// Adapter exposes a zerolog.Logger through ports.Logger.
type Adapter struct {
	log zerolog.Logger
}

var _ ports.Logger = Adapter{}

func NewAdapter(log zerolog.Logger) Adapter {
	return Adapter{log: log}
}

func (a Adapter) Debug(format string, v ...interface{}) { a.log.Debug().Msgf(format, v...) }
func (a Adapter) Info(format string, v ...interface{})  { a.log.Info().Msgf(format, v...) }
func (a Adapter) Warn(format string, v ...interface{})  { a.log.Warn().Msgf(format, v...) }
func (a Adapter) Error(format string, v ...interface{}) { a.log.Error().Msgf(format, v...) }
