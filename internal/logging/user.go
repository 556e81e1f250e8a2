package logging

import (
	"fmt"
	"io"
	"os"
)

// User-facing terminal output, kept apart from the structured slog
// stream. Informational and success lines go to stdout so they can be
// piped; warnings and errors go to stderr.

func userPrint(w io.Writer, prefix, format string, args ...any) {
	fmt.Fprintf(w, prefix+" "+format+"\n", args...)
}

// UserInfo prints a progress line to stdout.
func UserInfo(format string, args ...any) {
	userPrint(os.Stdout, "ℹ", format, args...)
}

// UserSuccess prints a completion line to stdout.
func UserSuccess(format string, args ...any) {
	userPrint(os.Stdout, "✓", format, args...)
}

// UserWarning prints a warning to stderr.
func UserWarning(format string, args ...any) {
	userPrint(os.Stderr, "⚠", format, args...)
}

// UserError prints a failure to stderr.
func UserError(format string, args ...any) {
	userPrint(os.Stderr, "✗", format, args...)
}
