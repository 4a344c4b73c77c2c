package log

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// lockedBuffer serializes writes from loggers sharing one buffer.
type lockedBuffer struct {
	mu  *sync.Mutex
	buf *bytes.Buffer
}

func (b lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

// TestLogger captures records in memory as zerolog JSON lines, encoded exactly
// like the production logger, so tests can assert on messages and fields
// without touching the process-wide logger.
type TestLogger struct {
	*zerologLogger
	mu  *sync.Mutex
	buf *bytes.Buffer
}

// NewTestLogger returns a logger recording at level and above, and the buffer
// it writes to.
//
//	logger, buf := log.NewTestLogger(log.LevelDebug)
//	loader := dataset.NewLoader(logger)
//	...
//	if !logger.ContainsMessage("Dataset loaded") { ... }
func NewTestLogger(level Level) (*TestLogger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	mu := &sync.Mutex{}
	zl := NewLogger(lockedBuffer{mu: mu, buf: buf}, level, false).(*zerologLogger)
	return &TestLogger{zerologLogger: zl, mu: mu, buf: buf}, buf
}

// With returns a child that writes to the same buffer.
func (t *TestLogger) With(fields ...any) Logger {
	child := t.zerologLogger.With(fields...).(*zerologLogger)
	return &TestLogger{zerologLogger: child, mu: t.mu, buf: t.buf}
}

// Enabled implements Logger.Enabled.
func (t *TestLogger) Enabled(ctx context.Context, level Level) bool {
	return t.zerologLogger.Enabled(ctx, level)
}

func (t *TestLogger) snapshot() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.buf.String()
}

// Entries decodes every captured record.
func (t *TestLogger) Entries() ([]map[string]interface{}, error) {
	var entries []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(t.snapshot()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]interface{}
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// ContainsMessage reports whether any captured output contains message.
func (t *TestLogger) ContainsMessage(message string) bool {
	return strings.Contains(t.snapshot(), message)
}

// ContainsField reports whether a record carries key with value. Numbers
// decode as float64.
func (t *TestLogger) ContainsField(key string, value interface{}) bool {
	entries, err := t.Entries()
	if err != nil {
		return false
	}
	for _, entry := range entries {
		if v, ok := entry[key]; ok && v == value {
			return true
		}
	}
	return false
}

// CountLevel returns how many records were written at level ("debug",
// "info", "warn", "error").
func (t *TestLogger) CountLevel(level string) int {
	entries, err := t.Entries()
	if err != nil {
		return 0
	}
	n := 0
	for _, entry := range entries {
		if entry[zerolog.LevelFieldName] == level {
			n++
		}
	}
	return n
}

// Clear drops everything captured so far.
func (t *TestLogger) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf.Reset()
}
