// Package logger provides a thin structured logging facade backed by zerolog.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Logger wraps a zerolog.Logger with a component name.
type Logger struct {
	zl zerolog.Logger
}

// New creates a logger writing to w at the given level.
func New(name string, w io.Writer, level zerolog.Level) *Logger {
	zl := zerolog.New(w).Level(level).With().
		Timestamp().
		Str("component", name).
		Logger()
	return &Logger{zl: zl}
}

// NewDefault creates a logger writing to stderr. The level is taken from
// LOG_LEVEL (debug|info|warn|error), defaulting to info.
func NewDefault(name string) *Logger {
	return New(name, os.Stderr, levelFromEnv())
}

// NewNop creates a logger that discards everything. Useful in tests.
func NewNop() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

func levelFromEnv() zerolog.Level {
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// WithField returns a logger with an additional field attached to every entry.
func (l *Logger) WithField(key string, value any) *Logger {
	return &Logger{zl: l.zl.With().Interface(key, value).Logger()}
}

// WithError returns a logger with the error attached as a field.
func (l *Logger) WithError(err error) *Logger {
	return &Logger{zl: l.zl.With().Err(err).Logger()}
}

// Debug logs at debug level. Trailing arguments are key-value pairs.
func (l *Logger) Debug(msg string, kv ...any) {
	l.emit(l.zl.Debug(), msg, kv)
}

// Info logs at info level. Trailing arguments are key-value pairs.
func (l *Logger) Info(msg string, kv ...any) {
	l.emit(l.zl.Info(), msg, kv)
}

// Warn logs at warn level. Trailing arguments are key-value pairs.
func (l *Logger) Warn(msg string, kv ...any) {
	l.emit(l.zl.Warn(), msg, kv)
}

// Error logs at error level. Trailing arguments are key-value pairs.
func (l *Logger) Error(msg string, kv ...any) {
	l.emit(l.zl.Error(), msg, kv)
}

// Debugf logs a formatted message at debug level.
func (l *Logger) Debugf(format string, args ...any) {
	l.zl.Debug().Msgf(format, args...)
}

// Infof logs a formatted message at info level.
func (l *Logger) Infof(format string, args ...any) {
	l.zl.Info().Msgf(format, args...)
}

// Warnf logs a formatted message at warn level.
func (l *Logger) Warnf(format string, args ...any) {
	l.zl.Warn().Msgf(format, args...)
}

// Errorf logs a formatted message at error level.
func (l *Logger) Errorf(format string, args ...any) {
	l.zl.Error().Msgf(format, args...)
}

func (l *Logger) emit(ev *zerolog.Event, msg string, kv []any) {
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprint(kv[i])
		}
		ev = ev.Interface(key, kv[i+1])
	}
	ev.Msg(msg)
}
