package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// LogLevel is a thin enum for user friendly level configuration decoupled from slog.
type LogLevel int

const (
	// LogLevelDebug is the debug logging level.
	LogLevelDebug LogLevel = iota
	// LogLevelInfo is the informational logging level.
	LogLevelInfo
	// LogLevelWarn is the warning logging level.
	LogLevelWarn
	// LogLevelError is the error logging level.
	LogLevelError
)

// String returns the string representation of the log level.
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a case-insensitive level name.
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LogLevelDebug, nil
	case "", "info":
		return LogLevelInfo, nil
	case "warn", "warning":
		return LogLevelWarn, nil
	case "error":
		return LogLevelError, nil
	default:
		return LogLevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// Logger defines the minimal logging interface used across meetmesh.
// This allows users to provide their own logger implementation or use the built-in adapters.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// SlogAdapter wraps *slog.Logger to implement the Logger interface.
type SlogAdapter struct {
	*slog.Logger
}

// Debug logs a debug message.
func (s *SlogAdapter) Debug(msg string, args ...any) { s.Logger.Debug(msg, args...) }

// Info logs an informational message.
func (s *SlogAdapter) Info(msg string, args ...any) { s.Logger.Info(msg, args...) }

// Warn logs a warning message.
func (s *SlogAdapter) Warn(msg string, args ...any) { s.Logger.Warn(msg, args...) }

// Error logs an error message.
func (s *SlogAdapter) Error(msg string, args ...any) { s.Logger.Error(msg, args...) }

// NewSlogAdapter creates a Logger from *slog.Logger.
func NewSlogAdapter(logger *slog.Logger) Logger {
	return &SlogAdapter{Logger: logger}
}

// NewDefaultSlogLogger creates a Logger using slog.Default().
func NewDefaultSlogLogger() Logger {
	return NewSlogAdapter(slog.Default())
}

// Supported output formats.
const (
	FormatJSON = "json"
	FormatText = "text"
	FormatTint = "tint"
)

// Config configures construction of a Logger.
type Config struct {
	Level     LogLevel
	Format    string // json, text or tint
	Output    io.Writer
	AddSource bool
	NoColor   bool
	Component string
}

// DefaultConfig returns a baseline tint info level configuration on stderr.
func DefaultConfig() *Config {
	return &Config{Level: LogLevelInfo, Format: FormatTint, Output: os.Stderr}
}

// New builds a Logger from a config (or defaults if nil).
func New(cfg *Config) Logger {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}

	var handler slog.Handler
	switch cfg.Format {
	case FormatJSON:
		handler = slog.NewJSONHandler(cfg.Output, &slog.HandlerOptions{Level: slogLevel(cfg.Level), AddSource: cfg.AddSource})
	case FormatText:
		handler = slog.NewTextHandler(cfg.Output, &slog.HandlerOptions{Level: slogLevel(cfg.Level), AddSource: cfg.AddSource})
	default:
		handler = tint.NewHandler(cfg.Output, &tint.Options{
			Level:      slogLevel(cfg.Level),
			AddSource:  cfg.AddSource,
			TimeFormat: time.Kitchen,
			NoColor:    cfg.NoColor,
		})
	}

	logger := slog.New(handler)
	if cfg.Component != "" {
		logger = logger.With("component", cfg.Component)
	}
	return NewSlogAdapter(logger)
}

func slogLevel(l LogLevel) slog.Level {
	switch l {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelInfo:
		return slog.LevelInfo
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// With returns a logger that attaches args to every entry. Loggers that are
// not slog backed are wrapped so the attributes are still prepended.
func With(l Logger, args ...any) Logger {
	if l == nil {
		return NoOpLogger{}
	}
	switch v := l.(type) {
	case *SlogAdapter:
		return &SlogAdapter{Logger: v.Logger.With(args...)}
	case NoOpLogger:
		return v
	default:
		return &withLogger{base: l, args: args}
	}
}

type withLogger struct {
	base Logger
	args []any
}

func (w *withLogger) merge(args []any) []any {
	out := make([]any, 0, len(w.args)+len(args))
	return append(append(out, w.args...), args...)
}

func (w *withLogger) Debug(msg string, args ...any) { w.base.Debug(msg, w.merge(args)...) }
func (w *withLogger) Info(msg string, args ...any)  { w.base.Info(msg, w.merge(args)...) }
func (w *withLogger) Warn(msg string, args ...any)  { w.base.Warn(msg, w.merge(args)...) }
func (w *withLogger) Error(msg string, args ...any) { w.base.Error(msg, w.merge(args)...) }

// LogModelCall records model call latency and success.
func LogModelCall(l Logger, model string, dur time.Duration, err error) {
	if err != nil {
		l.Error("Model call failed", "model", model, "duration", dur, "error", err)
		return
	}
	l.Debug("Model call completed", "model", model, "duration", dur)
}

// StartTimer returns a closure that logs the elapsed duration when invoked.
func StartTimer(l Logger, op string) func() {
	start := time.Now()
	return func() { l.Debug("Operation completed", "operation", op, "duration", time.Since(start)) }
}

// NoOpLogger discards all log messages. Useful for testing or when logging is disabled.
type NoOpLogger struct{}

// Debug logs a debug message.
func (NoOpLogger) Debug(string, ...any) {}

// Info logs an informational message.
func (NoOpLogger) Info(string, ...any) {}

// Warn logs a warning message.
func (NoOpLogger) Warn(string, ...any) {}

// Error logs an error message.
func (NoOpLogger) Error(string, ...any) {}
