// Package logger wraps zerolog with component-tagged events.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Fields carries structured key/value pairs for one event.
type Fields map[string]interface{}

// Logger is safe for concurrent use.
type Logger struct {
	logger zerolog.Logger
}

// New returns a JSON logger writing to w.
func New(w io.Writer, level zerolog.Level) *Logger {
	l := zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Logger()

	return &Logger{logger: l}
}

// NewConsole returns a human-readable logger on stderr.
func NewConsole(level zerolog.Level) *Logger {
	return New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}, level)
}

// Nop discards everything.
func Nop() *Logger {
	return &Logger{logger: zerolog.Nop()}
}

func (l *Logger) Info(component, message string, fields Fields) {
	event := l.logger.Info().Str("component", component)
	for k, v := range fields {
		event = event.Interface(k, v)
	}
	event.Msg(message)
}

func (l *Logger) Error(component string, err error, fields Fields) {
	event := l.logger.Error().Str("component", component).Err(err)
	for k, v := range fields {
		event = event.Interface(k, v)
	}
	event.Msg("operation failed")
}

func (l *Logger) Warning(component, message string, fields Fields) {
	event := l.logger.Warn().Str("component", component)
	for k, v := range fields {
		event = event.Interface(k, v)
	}
	event.Msg(message)
}

func (l *Logger) Debug(component, message string, fields Fields) {
	event := l.logger.Debug().Str("component", component)
	for k, v := range fields {
		event = event.Interface(k, v)
	}
	event.Msg(message)
}

// Timed logs message at debug level with the elapsed time when the returned
// func is called.
func (l *Logger) Timed(component, message string) func() {
	start := time.Now()
	return func() {
		l.logger.Debug().
			Str("component", component).
			Dur("elapsed", time.Since(start)).
			Msg(message)
	}
}

// ParseLevel maps -v/-q style flags onto a zerolog level.
func ParseLevel(verbose, quiet bool) zerolog.Level {
	switch {
	case quiet:
		return zerolog.WarnLevel
	case verbose:
		return zerolog.DebugLevel
	default:
		return zerolog.InfoLevel
	}
}
