package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger provides structured logging for the worker
type Logger struct {
	prefix string
	logger *slog.Logger
}

// NewLogger creates a new logger with a component prefix, writing to stdout
// at the level named by LOG_LEVEL
func NewLogger(prefix string) *Logger {
	return NewLoggerTo(os.Stdout, prefix, ParseLevel(os.Getenv("LOG_LEVEL")))
}

// NewLoggerTo creates a new logger writing text records to w
func NewLoggerTo(w io.Writer, prefix string, level slog.Level) *Logger {
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return &Logger{
		prefix: prefix,
		logger: slog.New(handler).With("component", prefix),
	}
}

// NewNop creates a logger that discards everything
func NewNop() *Logger {
	return &Logger{
		prefix: "nop",
		logger: slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1})),
	}
}

// ParseLevel maps debug/info/warn/error to a slog level, defaulting to info
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// With returns a logger that adds key-value pairs to every record
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{prefix: l.prefix, logger: l.logger.With(keysAndValues...)}
}

// Info logs an informational message with key-value pairs
func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Info(msg, keysAndValues...)
}

// Warn logs a warning message with key-value pairs
func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warn(msg, keysAndValues...)
}

// Error logs an error message with key-value pairs
func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, keysAndValues...)
}

// Debug logs a debug message with key-value pairs
func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

// Slog exposes the underlying slog logger for libraries that take one
func (l *Logger) Slog() *slog.Logger {
	return l.logger
}
