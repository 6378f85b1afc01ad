package cli

import (
	"os"

	"github.com/rs/zerolog"
)

// NewLogger builds a console-formatted zerolog.Logger for the CLI, the
// level set by verbosity (0 = warn, 1 = info, 2+ = debug) the way
// repeated -v flags conventionally escalate.
func NewLogger(verbosity int) zerolog.Logger {
	level := zerolog.WarnLevel
	switch {
	case verbosity >= 2:
		level = zerolog.DebugLevel
	case verbosity == 1:
		level = zerolog.InfoLevel
	}

	writer := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
	return zerolog.New(writer).Level(level).With().Timestamp().Logger()
}
