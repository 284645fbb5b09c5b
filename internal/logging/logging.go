// Package logging builds the zerolog loggers that are passed to the
// components of netprobe. Verbosity is controlled by a repeatable
// --verbose flag: 0 occurrences logs warnings and above, 1 logs info
// and above, 2 or more logs debug and above.
package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// New builds a logger writing human-readable console output to w at
// the level implied by verbosity (a --verbose occurrence count).
func New(w io.Writer, verbosity int) zerolog.Logger {
	console := zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
	return zerolog.New(console).
		Level(levelFor(verbosity)).
		With().
		Timestamp().
		Logger()
}

// NewDefault builds a logger writing to stderr, matching CLI
// convention: results go to stdout, diagnostics to stderr.
func NewDefault(verbosity int) zerolog.Logger {
	return New(os.Stderr, verbosity)
}

func levelFor(verbosity int) zerolog.Level {
	switch {
	case verbosity >= 2:
		return zerolog.DebugLevel
	case verbosity == 1:
		return zerolog.InfoLevel
	default:
		return zerolog.WarnLevel
	}
}
