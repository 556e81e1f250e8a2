package logging

import (
	"io"
	"log/slog"
	"os"
)

// Verbose reports whether debug-level logging is enabled.
var Verbose bool

var logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
	Level: slog.LevelInfo,
}))

// Setup configures the package logger. Debug messages are emitted only
// when verbose is true. When jsonOutput is true, logs are written as JSON.
func Setup(verbose, jsonOutput bool, w io.Writer) {
	Verbose = verbose

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if jsonOutput {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	logger = slog.New(handler)
}

// Debug logs a debug-level message. Suppressed unless verbose mode is on.
func Debug(msg string, args ...any) {
	logger.Debug(msg, args...)
}

// Info logs an info-level message.
func Info(msg string, args ...any) {
	logger.Info(msg, args...)
}

// Warn logs a warning-level message.
func Warn(msg string, args ...any) {
	logger.Warn(msg, args...)
}

// Error logs an error-level message.
func Error(msg string, args ...any) {
	logger.Error(msg, args...)
}

// With returns a logger with the given attributes attached to every record.
func With(args ...any) *slog.Logger {
	return logger.With(args...)
}
