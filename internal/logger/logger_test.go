package logger

import (
	"bytes"
	"log"
	"strings"
	"sync/atomic"
	"testing"
)

// newTestLogger returns a Logger that writes to a buffer instead of stderr.
func newTestLogger(module, level string, buf *bytes.Buffer) *Logger {
	l := New(module, level)
	l.out = log.New(buf, "", 0)
	return l
}

func TestParseLevel(t *testing.T) {
	cases := []struct {
		input string
		want  Level
	}{
		{"debug", LevelDebug},
		{"DEBUG", LevelDebug},
		{"info", LevelInfo},
		{"INFO", LevelInfo},
		{"warn", LevelWarn},
		{"warning", LevelWarn},
		{"WARN", LevelWarn},
		{"error", LevelError},
		{"ERROR", LevelError},
		{"unknown", LevelInfo}, // default
		{"", LevelInfo},        // default
	}
	for _, c := range cases {
		got := parseLevel(c.input)
		if got != c.want {
			t.Errorf("parseLevel(%q) = %v, want %v", c.input, got, c.want)
		}
	}
}

func TestNew_ModuleUppercased(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogger("cache", "info", &buf)
	l.Info("test")
	if !strings.Contains(buf.String(), "CACHE") {
		t.Errorf("expected module 'CACHE' in output, got: %s", buf.String())
	}
}

func TestLevelFiltering_DebugSuppressedAtInfo(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogger("TEST", "info", &buf)
	l.Debug("action", F("detail", "should not appear"))
	if buf.Len() > 0 {
		t.Errorf("debug message should be suppressed at info level, got: %s", buf.String())
	}
}

func TestLevelFiltering_WarnPassesAtInfo(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogger("TEST", "info", &buf)
	l.Warn("action", F("reason", "disk"))
	if !strings.Contains(buf.String(), "reason=disk") {
		t.Errorf("warn should appear at info level, got: %s", buf.String())
	}
}

func TestLevelFiltering_InfoSuppressedAtWarn(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogger("TEST", "warn", &buf)
	l.Info("action", F("x", 1))
	if buf.Len() > 0 {
		t.Errorf("info should be suppressed at warn level, got: %s", buf.String())
	}
}

func TestSetLevel_ChangesFilter(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogger("TEST", "error", &buf)

	l.Info("action", F("x", 1))
	if buf.Len() > 0 {
		t.Errorf("info suppressed at error level, got: %s", buf.String())
	}

	l.SetLevel("debug")
	l.Info("action", F("x", 2))
	if !strings.Contains(buf.String(), "x=2") {
		t.Errorf("info should appear after SetLevel(debug), got: %s", buf.String())
	}
}

func TestFieldsRenderAsKeyValuePairs(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogger("MYMOD", "debug", &buf)
	l.Info("evict", F("policy", "lru"), F("token", 42), F("freed", 9))

	out := buf.String()
	for _, expected := range []string{"MYMOD", "evict", "INFO", "policy=lru", "token=42", "freed=9"} {
		if !strings.Contains(out, expected) {
			t.Errorf("expected %q in log output, got: %s", expected, out)
		}
	}
}

func TestNoFields_OmitsTrailingSpace(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogger("TEST", "debug", &buf)
	l.Info("heartbeat")
	line := strings.TrimRight(buf.String(), "\n")
	if strings.HasSuffix(line, " ") {
		t.Errorf("line with no fields should not end in trailing whitespace: %q", line)
	}
}

func TestFormattedMethods(t *testing.T) {
	cases := []struct {
		name string
		fn   func(l *Logger)
		want string
	}{
		{"Debugf", func(l *Logger) { l.Debugf("a", "val=%d", 42) }, "msg=val=42"},
		{"Infof", func(l *Logger) { l.Infof("a", "val=%d", 42) }, "msg=val=42"},
		{"Warnf", func(l *Logger) { l.Warnf("a", "val=%d", 42) }, "msg=val=42"},
		{"Errorf", func(l *Logger) { l.Errorf("a", "val=%d", 42) }, "msg=val=42"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			var buf bytes.Buffer
			l := newTestLogger("TEST", "debug", &buf)
			c.fn(l)
			if !strings.Contains(buf.String(), c.want) {
				t.Errorf("%s: expected %q in output, got: %s", c.name, c.want, buf.String())
			}
		})
	}
}

func TestWithCounters_WarnIncrementsWarnings(t *testing.T) {
	var buf bytes.Buffer
	var warnings, errs atomic.Int64
	l := newTestLogger("TEST", "debug", &buf).WithCounters(Counters{Warnings: &warnings, Errors: &errs})

	l.Warn("retry", F("attempt", 1))
	l.Warn("retry", F("attempt", 2))

	if got := warnings.Load(); got != 2 {
		t.Errorf("Warnings: got %d, want 2", got)
	}
	if got := errs.Load(); got != 0 {
		t.Errorf("Errors: got %d, want 0 (only Warn was called)", got)
	}
}

func TestWithCounters_ErrorIncrementsErrors(t *testing.T) {
	var buf bytes.Buffer
	var warnings, errs atomic.Int64
	l := newTestLogger("TEST", "debug", &buf).WithCounters(Counters{Warnings: &warnings, Errors: &errs})

	l.Error("dial", F("err", "connection refused"))

	if got := errs.Load(); got != 1 {
		t.Errorf("Errors: got %d, want 1", got)
	}
	if got := warnings.Load(); got != 0 {
		t.Errorf("Warnings: got %d, want 0 (only Error was called)", got)
	}
}

func TestWithoutCounters_NoPanic(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogger("TEST", "debug", &buf)
	// No WithCounters call: both Counters fields are nil. Warn/Error must
	// not dereference a nil *atomic.Int64.
	l.Warn("x")
	l.Error("y")
}

func TestWithCounters_SuppressedLevelStillCounts(t *testing.T) {
	// A Warn call below the configured level is dropped from the log
	// stream, but the fact that a warning occurred should still surface
	// in the counters — that's the whole point of decoupling counting
	// from the text line.
	var buf bytes.Buffer
	var warnings atomic.Int64
	l := newTestLogger("TEST", "error", &buf).WithCounters(Counters{Warnings: &warnings})

	l.Warn("retry")

	if buf.Len() != 0 {
		t.Errorf("expected no text output at error level, got: %s", buf.String())
	}
	if got := warnings.Load(); got != 1 {
		t.Errorf("Warnings: got %d, want 1", got)
	}
}
