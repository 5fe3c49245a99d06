/*
Package logx provides a structured logging wrapper based on zerolog.

It initializes the global logger for the server or the terminal client, and offers level
helpers plus per-component sub-loggers for the coordinator, reaper, websocket pumps and shell.
*/
package logx

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Options selects where logs go and how much is kept.
type Options struct {
	// Development switches to the colored console format on stderr with caller information.
	Development bool

	// Output overrides the destination. The terminal client points it at a file or io.Discard
	// so log lines never interleave with the chat.
	Output io.Writer

	// Level is a zerolog level name such as "debug" or "warn". Empty picks debug in
	// development and info otherwise.
	Level string
}

// Init replaces the global logger according to opts.
// An unknown level name is an error and leaves the previous logger in place.
func Init(opts Options) error {
	level := zerolog.InfoLevel
	if opts.Development {
		level = zerolog.DebugLevel
	}
	if opts.Level != "" {
		parsed, err := zerolog.ParseLevel(opts.Level)
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
		level = parsed
	}

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	var out io.Writer = os.Stdout
	switch {
	case opts.Output != nil:
		out = opts.Output
	case opts.Development:
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}

	ctx := zerolog.New(out).Level(level).With().Timestamp()
	if opts.Development {
		ctx = ctx.Caller()
	}
	log.Logger = ctx.Logger()
	return nil
}

// Logger returns a pointer to the global zerolog.Logger instance.
func Logger() *zerolog.Logger {
	return &log.Logger
}

// Component returns a sub-logger tagged with the given component name.
func Component(name string) zerolog.Logger {
	return Logger().With().Str("component", name).Logger()
}

// Info records a log message at the Info level with optional key-value fields.
func Info(msg string, fields ...any) {
	emit(Logger().Info(), "Info", msg, fields)
}

// Warn records a log message at the Warn level with optional key-value fields.
func Warn(msg string, fields ...any) {
	emit(Logger().Warn(), "Warn", msg, fields)
}

// Error records an error at the Error level with optional key-value fields.
func Error(err error, msg string, fields ...any) {
	emit(Logger().Error().Err(err), "Error", msg, fields)
}

// Fatal records an error at the Fatal level and then terminates the process.
func Fatal(err error, msg string, fields ...any) {
	emit(Logger().Fatal().Err(err), "Fatal", msg, fields)
}

// emit writes one event for a level helper. The fields must come in key-value pairs;
// an odd count is reported and the fields are dropped so zerolog never panics.
func emit(ev *zerolog.Event, level, msg string, fields []any) {
	if len(fields)%2 != 0 {
		Logger().Warn().
			Int("fields_count", len(fields)).
			Str("log_level", level).
			Msgf("Logx call (%s) received odd number of fields: %v. Fields ignored.", level, fields)
		fields = nil
	}

	ev.Fields(fields).
		CallerSkipFrame(2).
		Msg(msg)
}
