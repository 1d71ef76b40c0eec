// Package logger provides the context-aware structured logger used across the
// client. Records are emitted by zerolog; when the context carries a recording
// span, its trace and span ids are attached to the record.
package logger

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// Level is the minimum severity a logger emits.
type Level = zerolog.Level

const (
	LevelDebug = zerolog.DebugLevel
	LevelInfo  = zerolog.InfoLevel
	LevelWarn  = zerolog.WarnLevel
	LevelError = zerolog.ErrorLevel
)

// LoggerInterface is the logging surface the rest of the module depends on.
// args are alternating key/value pairs.
type LoggerInterface interface {
	Debug(ctx context.Context, msg string, args ...any)
	Info(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)
	With(args ...any) LoggerInterface
}

// Logger is the zerolog-backed LoggerInterface.
type Logger struct {
	zl zerolog.Logger
}

// New creates a logger writing JSON records to w.
func New(w io.Writer, level Level, service string) *Logger {
	if w == nil {
		w = os.Stdout
	}

	zl := zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Str("service", service).
		Logger()

	return &Logger{zl: zl}
}

// NewConsole creates a human readable logger, used by the CLI when attached to a terminal.
func NewConsole(w io.Writer, level Level, service string) *Logger {
	return New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}, level, service)
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

// ParseLevel maps a config string to a Level, defaulting to info.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func (l *Logger) Debug(ctx context.Context, msg string, args ...any) {
	l.write(ctx, l.zl.Debug(), msg, args)
}

func (l *Logger) Info(ctx context.Context, msg string, args ...any) {
	l.write(ctx, l.zl.Info(), msg, args)
}

func (l *Logger) Warn(ctx context.Context, msg string, args ...any) {
	l.write(ctx, l.zl.Warn(), msg, args)
}

func (l *Logger) Error(ctx context.Context, msg string, args ...any) {
	l.write(ctx, l.zl.Error(), msg, args)
}

// With returns a child logger carrying the given key/value pairs.
func (l *Logger) With(args ...any) LoggerInterface {
	return &Logger{zl: l.zl.With().Fields(normalize(args)).Logger()}
}

func (l *Logger) write(ctx context.Context, ev *zerolog.Event, msg string, args []any) {
	if ev == nil {
		return
	}

	if ctx != nil {
		if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
			ev = ev.Str("trace_id", sc.TraceID().String()).Str("span_id", sc.SpanID().String())
		}
	}

	ev.Fields(normalize(args)).Msg(msg)
}

// normalize pads a dangling key so zerolog does not drop it.
func normalize(args []any) []any {
	if len(args)%2 == 1 {
		args = append(args, "MISSING")
	}
	return args
}
