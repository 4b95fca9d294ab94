// Package logger provides structured, level-gated logging for the cache
// server and its auxiliary tools.
//
// Each entry is written as a single line with fixed-width columns followed
// by its structured fields rendered as key=value pairs:
//
//	2006-01-02 15:04:05.000 | MODULE       | ACTION                 | LEVEL key=value key2=value2
//
// Levels (lowest to highest): debug, info, warn, error.
// Entries below the configured minimum level are silently dropped.
//
// A Logger can also be wired to a set of Counters (typically backed by
// internal/metrics) so that warning and error volume is visible in a
// running snapshot, not just in whatever is tailing stderr.
//
// Usage:
//
//	log := logger.New("CACHE", cfg.LogLevel).WithCounters(logger.Counters{
//		Warnings: &m.LogWarnings,
//		Errors:   &m.LogErrors,
//	})
//	log.Info("evict", logger.F("policy", "lru"), logger.F("token", 42), logger.F("freed", 9))
//	log.Errorf("storage_fault", "remove_index(%d): %v", idx, err)
package logger

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync/atomic"
	"time"
)

// Level represents a log severity.
type Level int

// Log severity constants, ordered lowest to highest.
const (
	LevelDebug Level = iota // fine-grained diagnostic output
	LevelInfo               // normal operational messages
	LevelWarn               // unexpected but recoverable conditions
	LevelError              // failures requiring attention
)

// Field is one structured key/value attached to a log line. Fields keep a
// log line greppable and let a downstream aggregator pull out "remote",
// "err", "bytes", and the like without parsing a free-form sentence.
type Field struct {
	Key   string
	Value any
}

// F builds a Field. Typical use: logger.F("remote", conn.RemoteAddr()).
func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// Counters are atomic tallies a Logger increments on every Warn and Error
// call (Fatal counts as an Error), whether or not the line clears the
// level gate. A nil counter is simply left
// alone, so attaching only one of the two is fine; the zero Counters value
// disables counting entirely, which is what a Logger has until
// WithCounters is called.
type Counters struct {
	Warnings *atomic.Int64
	Errors   *atomic.Int64
}

// Logger writes structured log lines for a single module.
type Logger struct {
	module string
	level  Level
	out    *log.Logger
	ctrs   Counters
}

// New creates a Logger for the given module, gated at the given level string.
// Unrecognized level strings default to "info".
func New(module, levelStr string) *Logger {
	return &Logger{
		module: strings.ToUpper(module),
		level:  parseLevel(levelStr),
		// No prefix or flags — we supply the full line ourselves.
		out: log.New(os.Stderr, "", 0),
	}
}

// WithCounters attaches counters that track this logger's own warning/error
// volume and returns l, so it composes with New at the call site:
//
//	log := logger.New("SERVER", level).WithCounters(logger.Counters{Errors: &m.LogErrors})
func (l *Logger) WithCounters(c Counters) *Logger {
	l.ctrs = c
	return l
}

// SetLevel changes the minimum log level at runtime.
func (l *Logger) SetLevel(levelStr string) {
	l.level = parseLevel(levelStr)
}

// Debug logs at DEBUG level with zero or more structured fields.
func (l *Logger) Debug(action string, fields ...Field) { l.write(LevelDebug, "DEBUG", action, fields) }

// Info logs at INFO level with zero or more structured fields.
func (l *Logger) Info(action string, fields ...Field) { l.write(LevelInfo, "INFO ", action, fields) }

// Warn logs at WARN level with zero or more structured fields and, if
// Counters.Warnings is set, increments it.
func (l *Logger) Warn(action string, fields ...Field) {
	if l.ctrs.Warnings != nil {
		l.ctrs.Warnings.Add(1)
	}
	l.write(LevelWarn, "WARN ", action, fields)
}

// Error logs at ERROR level with zero or more structured fields and, if
// Counters.Errors is set, increments it.
func (l *Logger) Error(action string, fields ...Field) {
	if l.ctrs.Errors != nil {
		l.ctrs.Errors.Add(1)
	}
	l.write(LevelError, "ERROR", action, fields)
}

// Debugf is a convenience wrapper for a single formatted message, carried
// as a field named "msg".
func (l *Logger) Debugf(action, format string, args ...any) {
	l.Debug(action, F("msg", fmt.Sprintf(format, args...)))
}

// Infof is the Info equivalent of Debugf.
func (l *Logger) Infof(action, format string, args ...any) {
	l.Info(action, F("msg", fmt.Sprintf(format, args...)))
}

// Warnf is the Warn equivalent of Debugf.
func (l *Logger) Warnf(action, format string, args ...any) {
	l.Warn(action, F("msg", fmt.Sprintf(format, args...)))
}

// Errorf is the Error equivalent of Debugf.
func (l *Logger) Errorf(action, format string, args ...any) {
	l.Error(action, F("msg", fmt.Sprintf(format, args...)))
}

// Fatal logs at ERROR level and then calls os.Exit(1).
func (l *Logger) Fatal(action string, fields ...Field) {
	l.Error(action, fields...)
	os.Exit(1)
}

// Fatalf formats a single message, logs it at ERROR level, then calls os.Exit(1).
func (l *Logger) Fatalf(action, format string, args ...any) {
	l.Fatal(action, F("msg", fmt.Sprintf(format, args...)))
}

// write emits one log line if level >= l.level.
func (l *Logger) write(level Level, levelLabel, action string, fields []Field) {
	if level < l.level {
		return
	}
	ts := time.Now().Format("2006-01-02 15:04:05.000")
	if len(fields) == 0 {
		levelLabel = strings.TrimRight(levelLabel, " ")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s | %-12s | %-22s | %s", ts, l.module, action, levelLabel)
	for _, f := range fields {
		fmt.Fprintf(&b, " %s=%v", f.Key, f.Value)
	}
	l.out.Print(b.String())
}

// parseLevel converts a string to a Level, defaulting to LevelInfo.
func parseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}
