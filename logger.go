package academia

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger is the logging contract used across the module.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// LoggerProvider hands out named loggers so each component can be scoped.
type LoggerProvider interface {
	GetLogger(name string) Logger
}

// ResolveLogger picks the logger a component should use. An explicit logger
// wins, then a provider, then the default slog backed logger.
func ResolveLogger(name string, provider LoggerProvider, logger Logger) (LoggerProvider, Logger) {
	if logger != nil {
		if provider == nil {
			provider = staticProvider{logger: logger}
		}
		return provider, logger
	}

	if provider == nil {
		provider = NewSlogProvider(slog.Default())
	}

	resolved := provider.GetLogger(name)
	if resolved == nil {
		resolved = NopLogger{}
	}
	return provider, resolved
}

// SlogProvider builds printf style loggers on top of a slog handler.
type SlogProvider struct {
	base *slog.Logger
}

// NewSlogProvider wraps base. A nil base uses slog.Default().
func NewSlogProvider(base *slog.Logger) *SlogProvider {
	if base == nil {
		base = slog.Default()
	}
	return &SlogProvider{base: base}
}

// NewTextLogger returns a provider writing text records to w at the given level.
func NewTextLogger(w io.Writer, level slog.Level) *SlogProvider {
	if w == nil {
		w = os.Stderr
	}
	return NewSlogProvider(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}

// NewJSONLogger returns a provider writing JSON records to w at the given level.
func NewJSONLogger(w io.Writer, level slog.Level) *SlogProvider {
	if w == nil {
		w = os.Stderr
	}
	return NewSlogProvider(slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})))
}

// GetLogger implements LoggerProvider.
func (p *SlogProvider) GetLogger(name string) Logger {
	return slogLogger{l: p.base.With("logger", name)}
}

// Slog exposes the underlying slog logger.
func (p *SlogProvider) Slog() *slog.Logger {
	return p.base
}

type slogLogger struct {
	l *slog.Logger
}

func (s slogLogger) Debug(format string, args ...any) {
	s.log(slog.LevelDebug, format, args...)
}

func (s slogLogger) Info(format string, args ...any) {
	s.log(slog.LevelInfo, format, args...)
}

func (s slogLogger) Warn(format string, args ...any) {
	s.log(slog.LevelWarn, format, args...)
}

func (s slogLogger) Error(format string, args ...any) {
	s.log(slog.LevelError, format, args...)
}

// log passes key/value pairs to slog as attributes. Arguments that do not
// form pairs are printf operands for format.
func (s slogLogger) log(level slog.Level, format string, args ...any) {
	ctx := context.Background()
	if !s.l.Enabled(ctx, level) {
		return
	}
	if len(args) > 0 && !keyValues(args) && strings.Contains(format, "%") {
		s.l.Log(ctx, level, fmt.Sprintf(format, args...))
		return
	}
	s.l.Log(ctx, level, format, args...)
}

func keyValues(args []any) bool {
	if len(args)%2 != 0 {
		return false
	}
	for i := 0; i < len(args); i += 2 {
		if _, ok := args[i].(string); !ok {
			return false
		}
	}
	return true
}

type staticProvider struct {
	logger Logger
}

func (s staticProvider) GetLogger(string) Logger {
	return s.logger
}

// NopLogger discards everything.
type NopLogger struct{}

func (NopLogger) Debug(string, ...any) {}
func (NopLogger) Info(string, ...any)  {}
func (NopLogger) Warn(string, ...any)  {}
func (NopLogger) Error(string, ...any) {}
