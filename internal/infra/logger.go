package infra

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger aliases zerolog.Logger so packages can accept a logger without
// importing the third-party module directly.
type Logger = zerolog.Logger

// NewLogger builds the process logger. Development runs get a console writer
// and debug level; everything else emits JSON lines at info.
func NewLogger(appEnv string) Logger {
	return newLogger(appEnv, os.Stdout)
}

// NewCLILogger writes human-readable debug lines to out, for command-line use.
func NewCLILogger(out io.Writer) Logger {
	return newLogger("development", out)
}

func newLogger(appEnv string, out io.Writer) Logger {
	level := zerolog.InfoLevel
	if appEnv == "development" {
		level = zerolog.DebugLevel
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	return zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Str("app", "pixelmagic").
		Logger()
}

// Component derives a child logger tagged with the component name.
func Component(l Logger, name string) Logger {
	return l.With().Str("component", name).Logger()
}

// NopLogger returns a logger that discards everything.
func NopLogger() Logger {
	return zerolog.New(io.Discard)
}
