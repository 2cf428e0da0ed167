// Package logging provides the process-wide leveled logger used by every
// colsync component. Workers log through the package-level functions so that
// output from concurrent readers and loaders stays interleaved line-by-line.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Level represents logging verbosity.
type Level int

const (
	// LevelError only logs errors
	LevelError Level = iota
	// LevelWarn logs warnings and errors
	LevelWarn
	// LevelInfo logs info, warnings, and errors (default)
	LevelInfo
	// LevelDebug logs everything including per-chunk diagnostics
	LevelDebug
)

const timestampLayout = "2006-01-02 15:04:05"

type logger struct {
	mu    sync.Mutex
	level Level
	out   io.Writer
}

var std = &logger{level: LevelInfo, out: os.Stdout}

// ParseLevel converts a string to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(s) {
	case "error":
		return LevelError, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "info":
		return LevelInfo, nil
	case "debug":
		return LevelDebug, nil
	default:
		return LevelInfo, fmt.Errorf("unknown verbosity level: %s (valid: debug, info, warn, error)", s)
	}
}

func (l Level) String() string {
	switch l {
	case LevelError:
		return "ERROR"
	case LevelWarn:
		return "WARN"
	case LevelInfo:
		return "INFO"
	case LevelDebug:
		return "DEBUG"
	default:
		return "UNKNOWN"
	}
}

// SetLevel sets the global log level.
func SetLevel(level Level) {
	std.mu.Lock()
	defer std.mu.Unlock()
	std.level = level
}

// SetOutput redirects log output, primarily for tests.
func SetOutput(w io.Writer) {
	std.mu.Lock()
	defer std.mu.Unlock()
	std.out = w
}

// GetLevel returns the current log level.
func GetLevel() Level {
	std.mu.Lock()
	defer std.mu.Unlock()
	return std.level
}

// IsDebug reports whether debug output is enabled.
func IsDebug() bool {
	return GetLevel() >= LevelDebug
}

// Debug logs a debug message.
func Debug(format string, args ...any) {
	std.write(LevelDebug, format, args...)
}

// Info logs an info message.
func Info(format string, args ...any) {
	std.write(LevelInfo, format, args...)
}

// Warn logs a warning message.
func Warn(format string, args ...any) {
	std.write(LevelWarn, format, args...)
}

// Error logs an error message.
func Error(format string, args ...any) {
	std.write(LevelError, format, args...)
}

// Print writes directly regardless of level (status lines, summaries).
func Print(format string, args ...any) {
	std.mu.Lock()
	defer std.mu.Unlock()
	fmt.Fprintf(std.out, format, args...)
}

// Println writes a line directly regardless of level.
func Println(args ...any) {
	std.mu.Lock()
	defer std.mu.Unlock()
	fmt.Fprintln(std.out, args...)
}

func (l *logger) write(level Level, format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if level > l.level {
		return
	}

	msg := fmt.Sprintf(format, args...)
	if strings.HasPrefix(msg, "\n") {
		// Preserve intentional blank lines before sections.
		msg = strings.TrimPrefix(msg, "\n")
		fmt.Fprint(l.out, "\n")
	}
	if !strings.HasSuffix(msg, "\n") {
		msg += "\n"
	}
	fmt.Fprintf(l.out, "%s [%s] %s", time.Now().Format(timestampLayout), level, msg)
}
