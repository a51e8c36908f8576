// Package logging builds the process-wide structured logger.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New returns a logger writing JSON lines to stderr, or a human-readable
// console rendering when pretty is set. Verbose lowers the level to debug.
func New(verbose, pretty bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}

	var writer io.Writer = os.Stderr
	if pretty {
		writer = zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
		}
	}

	return zerolog.New(writer).
		Level(level).
		With().
		Timestamp().
		Str("service", "supplysig").
		Logger()
}
