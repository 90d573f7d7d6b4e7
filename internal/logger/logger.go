// Package logger provides the logging abstraction used across the
// service and a standard-library implementation of it.
package logger

import (
	"io"
	"log"
	"os"
)

// Logger abstracts logging so components never depend on a concrete
// backend.
type Logger interface {
	// Debug prints diagnostic information.
	Debug(msg string, args ...interface{})

	// Info prints informational messages.
	Info(msg string, args ...interface{})

	// Warn prints warnings.
	Warn(msg string, args ...interface{})

	// Error prints errors.
	Error(msg string, args ...interface{})

	// Fatal prints a critical error and terminates the program.
	Fatal(msg string, args ...interface{})

	// Printf is plain formatted output, for compatibility.
	Printf(format string, args ...interface{})
}

// StdLogger implements Logger on the standard library log package.
type StdLogger struct {
	logger *log.Logger
	debug  bool
}

// NewStdLogger creates a stderr logger with the given prefix.
func NewStdLogger(prefix string, debug bool) *StdLogger {
	return &StdLogger{
		logger: log.New(os.Stderr, prefix, log.LstdFlags),
		debug:  debug,
	}
}

// NewWriterLogger creates a logger writing to an arbitrary sink.
func NewWriterLogger(w io.Writer, prefix string, debug bool) *StdLogger {
	return &StdLogger{
		logger: log.New(w, prefix, log.LstdFlags),
		debug:  debug,
	}
}

func (l *StdLogger) Debug(msg string, args ...interface{}) {
	if l.debug {
		l.logger.Printf("[DEBUG] "+msg, args...)
	}
}

func (l *StdLogger) Info(msg string, args ...interface{}) {
	l.logger.Printf("[INFO] "+msg, args...)
}

func (l *StdLogger) Warn(msg string, args ...interface{}) {
	l.logger.Printf("[WARN] "+msg, args...)
}

func (l *StdLogger) Error(msg string, args ...interface{}) {
	l.logger.Printf("[ERROR] "+msg, args...)
}

func (l *StdLogger) Fatal(msg string, args ...interface{}) {
	l.logger.Fatalf("[FATAL] "+msg, args...)
}

func (l *StdLogger) Printf(format string, args ...interface{}) {
	l.logger.Printf(format, args...)
}
