// Package observability defines shared logging primitives.
package observability

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger captures structured logging behaviours shared across layers.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	With(fields ...Field) Logger
}

// Field represents a key/value pair for structured logging.
type Field struct {
	Key   string
	Value any
}

// F is shorthand for constructing a Field.
func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// Err wraps an error as the conventional "error" field.
func Err(err error) Field {
	return Field{Key: "error", Value: err}
}

var defaultLogger Logger = noopLogger{}

// SetLogger overrides the global logger used by the system.
func SetLogger(logger Logger) {
	if logger == nil {
		defaultLogger = noopLogger{}
		return
	}
	defaultLogger = logger
}

// Log returns the current global logger instance.
func Log() Logger {
	return defaultLogger
}

// OrNop returns logger, or the global logger when nil.
func OrNop(logger Logger) Logger {
	if logger == nil {
		return Log()
	}
	return logger
}

// LogOptions controls how NewLogger renders output.
type LogOptions struct {
	Level   string
	Console bool
	Output  io.Writer
}

// NewLogger builds a zerolog-backed Logger.
func NewLogger(opts LogOptions) Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	if opts.Console {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.TimeOnly}
	}
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(opts.Level)))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zl := zerolog.New(out).Level(level).With().Timestamp().Logger()
	return &zeroLogger{zl: zl}
}

type zeroLogger struct {
	zl zerolog.Logger
}

func (l *zeroLogger) Debug(msg string, fields ...Field) { emit(l.zl.Debug(), msg, fields) }
func (l *zeroLogger) Info(msg string, fields ...Field)  { emit(l.zl.Info(), msg, fields) }
func (l *zeroLogger) Warn(msg string, fields ...Field)  { emit(l.zl.Warn(), msg, fields) }
func (l *zeroLogger) Error(msg string, fields ...Field) { emit(l.zl.Error(), msg, fields) }

func (l *zeroLogger) With(fields ...Field) Logger {
	ctx := l.zl.With()
	for _, f := range fields {
		if err, ok := f.Value.(error); ok {
			ctx = ctx.AnErr(f.Key, err)
			continue
		}
		ctx = ctx.Interface(f.Key, f.Value)
	}
	return &zeroLogger{zl: ctx.Logger()}
}

func emit(ev *zerolog.Event, msg string, fields []Field) {
	if ev == nil {
		return
	}
	for _, f := range fields {
		switch v := f.Value.(type) {
		case error:
			ev = ev.AnErr(f.Key, v)
		case string:
			ev = ev.Str(f.Key, v)
		case int:
			ev = ev.Int(f.Key, v)
		case int64:
			ev = ev.Int64(f.Key, v)
		case bool:
			ev = ev.Bool(f.Key, v)
		case time.Duration:
			ev = ev.Dur(f.Key, v)
		default:
			ev = ev.Interface(f.Key, v)
		}
	}
	ev.Msg(msg)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...Field) {}
func (noopLogger) Info(string, ...Field)  {}
func (noopLogger) Warn(string, ...Field)  {}
func (noopLogger) Error(string, ...Field) {}

func (n noopLogger) With(...Field) Logger { return n }
