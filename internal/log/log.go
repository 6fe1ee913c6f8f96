// Package log provides structured logging for go-laser.
// It wraps slog with sensible defaults for production use.
package log

import (
	"io"
	"log/slog"
	"os"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	logger *slog.Logger
	once   sync.Once
)

// Options controls where and how the global logger writes.
type Options struct {
	// Level is one of "debug", "info", "warn", "error". Defaults to "info".
	Level string

	// File, when set, also writes logs to a size-rotated file.
	File string
}

// ParseLevel converts a level name into a slog.Level.
// Unknown names map to info.
func ParseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Init initializes the global logger with the specified level.
// Valid levels: "debug", "info", "warn", "error"
func Init(level string) {
	Setup(Options{Level: level})
}

// Setup initializes the global logger. Only the first call takes effect.
func Setup(o Options) {
	once.Do(func() {
		logger = New(o, os.Stdout)
		slog.SetDefault(logger)
	})
}

// New builds a logger writing to w and, if o.File is set, to a rotated log file.
func New(o Options, w io.Writer) *slog.Logger {
	if o.File != "" {
		w = io.MultiWriter(w, &lumberjack.Logger{
			Filename:   o.File,
			LocalTime:  true,
			Compress:   true,
			MaxSize:    20, // megabytes
			MaxAge:     7,
			MaxBackups: 3,
		})
	}

	opts := &slog.HandlerOptions{
		Level: ParseLevel(o.Level),
	}

	// Use JSON in production, text in development
	if os.Getenv("GO_ENV") == "production" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// L returns the global logger instance.
func L() *slog.Logger {
	if logger == nil {
		Init("info")
	}
	return logger
}

// Debug logs at debug level.
func Debug(msg string, args ...any) {
	L().Debug(msg, args...)
}

// Info logs at info level.
func Info(msg string, args ...any) {
	L().Info(msg, args...)
}

// Warn logs at warn level.
func Warn(msg string, args ...any) {
	L().Warn(msg, args...)
}

// Error logs at error level.
func Error(msg string, args ...any) {
	L().Error(msg, args...)
}

// With returns a logger with the given attributes.
func With(args ...any) *slog.Logger {
	return L().With(args...)
}
