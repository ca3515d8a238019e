// Package logger configures the process-wide zerolog logger used across the
// CIL.
package logger

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Setup builds a zerolog.Logger writing JSON to stdout (or a human-readable
// console writer when pretty is true, for local development), at the given
// level, and installs it as zerolog's global default.
func Setup(level string, pretty bool) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	var writer = os.Stdout
	var l zerolog.Logger
	if pretty {
		l = zerolog.New(zerolog.ConsoleWriter{Out: writer, TimeFormat: time.Kitchen})
	} else {
		l = zerolog.New(writer)
	}
	l = l.With().Timestamp().Logger().Level(parseLevel(level))

	zerolog.SetGlobalLevel(parseLevel(level))
	log := l
	return log
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
		case "debug":
			return zerolog.DebugLevel
		case "info":
			return zerolog.InfoLevel
		case "warn", "warning":
			return zerolog.WarnLevel
		case "error":
			return zerolog.ErrorLevel
		case "fatal":
			return zerolog.FatalLevel
		default:
			return zerolog.InfoLevel
	}
}

// Default returns an info-level JSON logger, used where a component is
// constructed outside of cmd/server wiring (tests, examples).
func Default() zerolog.Logger {
	return Setup("info", false)
}
