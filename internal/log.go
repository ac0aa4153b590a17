package internal

import (
	"io"

	"github.com/rs/zerolog"
)

// NewLogger returns a console logger for diagnostics. Command output goes to
// stdout; the logger is meant for stderr.
func NewLogger(w io.Writer, verbose bool) zerolog.Logger {
	level := zerolog.WarnLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}).
		Level(level).
		With().
		Timestamp().
		Logger()
}
