// Package slogger provides structured logging for the toolbench framework.
// It wraps log/slog with a colorized terminal handler and exposes a small
// interface so callers can substitute their own logger.
package slogger

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
)

// Logger is the logging interface used throughout the framework.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)

	// With returns a Logger with the given key-value pairs attached.
	With(keysAndValues ...any) Logger
}

// LogLevel is the minimum level a logger emits.
type LogLevel slog.Level

const (
	LevelDebug LogLevel = LogLevel(slog.LevelDebug)
	LevelInfo  LogLevel = LogLevel(slog.LevelInfo)
	LevelWarn  LogLevel = LogLevel(slog.LevelWarn)
	LevelError LogLevel = LogLevel(slog.LevelError)
)

// DefaultLogLevel applies when no level is configured.
var DefaultLogLevel = LevelInfo

// Slogger implements Logger on top of log/slog with a tint handler.
type Slogger struct {
	logger *slog.Logger
}

// New returns a Slogger writing colorized output to stderr. Color is
// suppressed when stderr is not a terminal.
func New(level LogLevel) *Slogger {
	handler := tint.NewHandler(os.Stderr, &tint.Options{
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
		TimeFormat: time.Kitchen,
		Level:      slog.Level(level),
	})
	return &Slogger{logger: slog.New(handler)}
}

func (l *Slogger) Debug(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l *Slogger) Info(msg string, keysAndValues ...any) {
	l.logger.Info(msg, keysAndValues...)
}

func (l *Slogger) Warn(msg string, keysAndValues ...any) {
	l.logger.Warn(msg, keysAndValues...)
}

func (l *Slogger) Error(msg string, keysAndValues ...any) {
	l.logger.Error(msg, keysAndValues...)
}

func (l *Slogger) With(keysAndValues ...any) Logger {
	return &Slogger{logger: l.logger.With(keysAndValues...)}
}

// Discard returns a Logger that drops everything. Library code uses this
// as the default so it never forces output on a caller.
func Discard() Logger {
	return &Slogger{logger: slog.New(slog.DiscardHandler)}
}

// LevelFromString parses a level name, falling back to DefaultLogLevel.
func LevelFromString(level string) LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return DefaultLogLevel
	}
}

type contextKey struct{}

// WithLogger returns a context carrying the given logger.
func WithLogger(ctx context.Context, logger Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, contextKey{}, logger)
}

// Ctx returns the logger stored in ctx, or a discard logger if none is set.
func Ctx(ctx context.Context) Logger {
	if ctx == nil {
		return Discard()
	}
	if logger, ok := ctx.Value(contextKey{}).(Logger); ok {
		return logger
	}
	return Discard()
}
