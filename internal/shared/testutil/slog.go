package testutil

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

// LogRecord is one captured log call. Attrs include those bound with
// Logger.With; group names prefix keys as "group.key".
type LogRecord struct {
	Level   slog.Level
	Message string
	Attrs   map[string]any
}

// recorder is shared by a handler and every handler derived from it.
type recorder struct {
	mu      sync.Mutex
	records []LogRecord
}

// BufferedSlogHandler captures log records for assertions.
type BufferedSlogHandler struct {
	rec    *recorder
	attrs  []slog.Attr
	prefix string
	t      testing.TB
}

// NewBufferedSlogHandler creates a handler that also echoes records to t.Log.
func NewBufferedSlogHandler(t testing.TB) *BufferedSlogHandler {
	return &BufferedSlogHandler{rec: &recorder{}, t: t}
}

// NewTestLogger returns a logger and the handler capturing its output.
func NewTestLogger(t testing.TB) (*slog.Logger, *BufferedSlogHandler) {
	h := NewBufferedSlogHandler(t)
	return slog.New(h), h
}

// Enabled implements slog.Handler; every level is captured.
func (h *BufferedSlogHandler) Enabled(context.Context, slog.Level) bool {
	return true
}

// Handle implements slog.Handler
func (h *BufferedSlogHandler) Handle(_ context.Context, r slog.Record) error {
	attrs := make(map[string]any, len(h.attrs)+r.NumAttrs())
	for _, a := range h.attrs {
		addAttr(attrs, "", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		addAttr(attrs, h.prefix, a)
		return true
	})

	h.rec.mu.Lock()
	h.rec.records = append(h.rec.records, LogRecord{Level: r.Level, Message: r.Message, Attrs: attrs})
	h.rec.mu.Unlock()

	if h.t != nil {
		h.t.Logf("[%s] %s %v", r.Level, r.Message, attrs)
	}
	return nil
}

// WithAttrs implements slog.Handler
func (h *BufferedSlogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	clone.attrs = append(clone.attrs, h.attrs...)
	for _, a := range attrs {
		clone.attrs = append(clone.attrs, slog.Attr{Key: h.prefix + a.Key, Value: a.Value})
	}
	return &clone
}

// WithGroup implements slog.Handler
func (h *BufferedSlogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.prefix = h.prefix + name + "."
	return &clone
}

func addAttr(dst map[string]any, prefix string, a slog.Attr) {
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		p := prefix
		if a.Key != "" {
			p = prefix + a.Key + "."
		}
		for _, ga := range v.Group() {
			addAttr(dst, p, ga)
		}
		return
	}
	dst[prefix+a.Key] = v.Any()
}

// Records returns a copy of the captured records.
func (h *BufferedSlogHandler) Records() []LogRecord {
	h.rec.mu.Lock()
	defer h.rec.mu.Unlock()
	out := make([]LogRecord, len(h.rec.records))
	copy(out, h.rec.records)
	return out
}

// RecordsAt returns the records logged at level.
func (h *BufferedSlogHandler) RecordsAt(level slog.Level) []LogRecord {
	var out []LogRecord
	for _, r := range h.Records() {
		if r.Level == level {
			out = append(out, r)
		}
	}
	return out
}

// Find returns the first record whose message contains msg.
func (h *BufferedSlogHandler) Find(msg string) (LogRecord, bool) {
	for _, r := range h.Records() {
		if strings.Contains(r.Message, msg) {
			return r, true
		}
	}
	return LogRecord{}, false
}

// Clear drops everything captured so far.
func (h *BufferedSlogHandler) Clear() {
	h.rec.mu.Lock()
	defer h.rec.mu.Unlock()
	h.rec.records = nil
}

// AssertLogContains fails unless a record at level contains msg.
func AssertLogContains(t testing.TB, h *BufferedSlogHandler, level slog.Level, msg string) bool {
	t.Helper()
	for _, r := range h.RecordsAt(level) {
		if strings.Contains(r.Message, msg) {
			return true
		}
	}
	return assert.Fail(t, "log message not found", "level %s, message %q, captured %v", level, msg, h.Records())
}

// AssertLogAttr fails unless the record containing msg carries key=want.
func AssertLogAttr(t testing.TB, h *BufferedSlogHandler, msg, key string, want any) bool {
	t.Helper()
	r, ok := h.Find(msg)
	if !ok {
		return assert.Fail(t, "log message not found", "message %q", msg)
	}
	return assert.Equal(t, want, r.Attrs[key], "attribute %s of %q", key, msg)
}

// AssertNoErrors fails if anything was logged at error level.
func AssertNoErrors(t testing.TB, h *BufferedSlogHandler) bool {
	t.Helper()
	errs := h.RecordsAt(slog.LevelError)
	return assert.Empty(t, errs, "unexpected error logs")
}
