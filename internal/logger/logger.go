// Package logger configures zerolog for the server.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Format selects the log encoding.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// New returns a logger writing to out at the given level. Unknown levels fall
// back to info, unknown formats to console.
func New(out io.Writer, level, format string) zerolog.Logger {
	if out == nil {
		out = os.Stdout
	}
	if !strings.EqualFold(format, FormatJSON) {
		out = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
		}
	}
	return zerolog.New(out).Level(ParseLevel(level)).With().Timestamp().Logger()
}

// Setup builds a logger for stdout and installs it as the global logger.
func Setup(level, format string) zerolog.Logger {
	l := New(os.Stdout, level, format)
	log.Logger = l
	return l
}

// ParseLevel maps a level name to a zerolog level.
func ParseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}
