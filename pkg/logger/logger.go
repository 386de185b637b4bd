// Package logger provides the process-wide log used by virtual-pointer.
//
// Output is discarded until Init or InitWriter is called, so library packages
// can log freely without configuring anything.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
)

var (
	globalLogger = newLogger(io.Discard)
	logFile      *os.File
	writer       io.Writer = io.Discard
	mu           sync.Mutex
)

func newLogger(w io.Writer) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.000000",
		Level:           levelFromEnv(),
	})
}

// levelFromEnv reads LOG_LEVEL, defaulting to debug.
func levelFromEnv() log.Level {
	if env := os.Getenv("LOG_LEVEL"); env != "" {
		if lvl, err := log.ParseLevel(strings.ToLower(env)); err == nil {
			return lvl
		}
	}
	return log.DebugLevel
}

// Init initializes the global logger with the specified log file path.
func Init(logPath string) error {
	mu.Lock()
	defer mu.Unlock()

	// Close previous log file if exists
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}

	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}

	logFile = f
	writer = f
	globalLogger = newLogger(f)

	return nil
}

// InitWriter sends log output to w, for example os.Stderr in verbose mode.
func InitWriter(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()

	writer = w
	globalLogger = newLogger(w)
}

// SetLevel sets the minimum level: debug, info, warn or error.
func SetLevel(level string) error {
	lvl, err := log.ParseLevel(strings.ToLower(level))
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}

	mu.Lock()
	defer mu.Unlock()
	globalLogger.SetLevel(lvl)
	return nil
}

// Close closes the log file.
func Close() {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
	writer = io.Discard
	globalLogger = newLogger(io.Discard)
}

func current() *log.Logger {
	mu.Lock()
	defer mu.Unlock()
	return globalLogger
}

// Info logs an info message.
func Info(format string, v ...interface{}) {
	current().Infof(format, v...)
}

// Debug logs a debug message.
func Debug(format string, v ...interface{}) {
	current().Debugf(format, v...)
}

// Error logs an error message.
func Error(format string, v ...interface{}) {
	current().Errorf(format, v...)
}

// Warn logs a warning message.
func Warn(format string, v ...interface{}) {
	current().Warnf(format, v...)
}

// GetWriter returns the underlying writer.
func GetWriter() io.Writer {
	mu.Lock()
	defer mu.Unlock()
	return writer
}
