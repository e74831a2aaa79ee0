// Package logging provides the structured logger used across the adapter.
// The default implementation writes JSON lines to stdout; a zap-backed
// implementation is available for production use.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Level represents the severity of a log message
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

// String returns the string representation of a log level
func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel maps a level name to a Level, defaulting to INFO.
func ParseLevel(s string) Level {
	switch s {
	case "debug":
		return DEBUG
	case "warn":
		return WARN
	case "error":
		return ERROR
	default:
		return INFO
	}
}

// Logger defines the interface for logging functionality
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)

	// WithFields returns a logger that attaches fields to every entry
	WithFields(fields ...Field) Logger

	// SetLevel sets the minimum log level
	SetLevel(level Level)

	// SetOutput sets the output destination
	SetOutput(w io.Writer)
}

// Field represents a key-value pair in a log entry
type Field struct {
	Key   string
	Value interface{}
}

// logger is the plain JSON implementation of Logger
type logger struct {
	mu     sync.Mutex
	out    io.Writer
	level  Level
	fields []Field
}

// NewLogger creates a new logger with default settings
func NewLogger() Logger {
	return &logger{
		out:   os.Stdout,
		level: INFO,
	}
}

func (l *logger) log(level Level, msg string, fields ...Field) {
	if level < l.level {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	entry := map[string]interface{}{
		"timestamp": time.Now().Format(time.RFC3339),
		"level":     level.String(),
		"message":   msg,
	}
	for _, f := range l.fields {
		entry[f.Key] = f.Value
	}
	for _, f := range fields {
		entry[f.Key] = f.Value
	}

	data, err := json.Marshal(entry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error marshaling log entry: %v\n", err)
		return
	}
	data = append(data, '\n')
	if _, err := l.out.Write(data); err != nil {
		fmt.Fprintf(os.Stderr, "error writing log entry: %v\n", err)
	}
}

// Debug implements Logger interface
func (l *logger) Debug(msg string, fields ...Field) { l.log(DEBUG, msg, fields...) }

// Info implements Logger interface
func (l *logger) Info(msg string, fields ...Field) { l.log(INFO, msg, fields...) }

// Warn implements Logger interface
func (l *logger) Warn(msg string, fields ...Field) { l.log(WARN, msg, fields...) }

// Error implements Logger interface
func (l *logger) Error(msg string, fields ...Field) { l.log(ERROR, msg, fields...) }

// WithFields implements Logger interface
func (l *logger) WithFields(fields ...Field) Logger {
	child := &logger{out: l.out, level: l.level}
	child.fields = make([]Field, 0, len(l.fields)+len(fields))
	child.fields = append(child.fields, l.fields...)
	child.fields = append(child.fields, fields...)
	return child
}

// SetLevel implements Logger interface
func (l *logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// SetOutput implements Logger interface
func (l *logger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.out = w
}

// Field constructors for common types
func String(key string, value string) Field {
	return Field{Key: key, Value: value}
}

func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

func Uint(key string, value uint) Field {
	return Field{Key: key, Value: value}
}

func Float64(key string, value float64) Field {
	return Field{Key: key, Value: value}
}

func Bool(key string, value bool) Field {
	return Field{Key: key, Value: value}
}

func Error(err error) Field {
	return Field{Key: "error", Value: err.Error()}
}

func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value.String()}
}

func Any(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}
