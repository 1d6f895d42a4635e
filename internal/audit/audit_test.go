package audit

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"
)

// recordingSink captures events for assertions in other packages' tests too.
type recordingSink struct {
	entries    []Entry
	violations []ViolationDetail
}

func (r *recordingSink) Log(e Entry) { r.entries = append(r.entries, e) }
func (r *recordingSink) LogCapabilityViolation(v ViolationDetail) {
	r.violations = append(r.violations, v)
}

func TestNewEntry(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	entry := NewEntry(EventElevationSuccess, ts, map[string]any{"expires_at": ts.Add(time.Hour)})

	if entry.Kind != EventElevationSuccess {
		t.Errorf("Kind = %q, want %q", entry.Kind, EventElevationSuccess)
	}
	if !entry.Timestamp.Equal(ts) {
		t.Errorf("Timestamp = %v, want %v", entry.Timestamp, ts)
	}
	if len(entry.ID) != 26 {
		t.Errorf("ID = %q, want 26-char ULID", entry.ID)
	}
	if entry.Detail["expires_at"] == nil {
		t.Error("Detail missing expires_at")
	}
}

func TestNewEntry_UniqueIDs(t *testing.T) {
	ts := time.Now()
	a := NewEntry(EventElevationFailure, ts, nil)
	b := NewEntry(EventElevationFailure, ts, nil)
	if a.ID == b.ID {
		t.Errorf("two entries share ID %q", a.ID)
	}
}

func TestSlogSink_Log(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	sink := NewSlogSink(logger)

	sink.Log(NewEntry(EventSessionTerminated, time.Now(), nil))

	out := buf.String()
	if !strings.Contains(out, "session-terminated") {
		t.Errorf("log output missing event kind: %s", out)
	}
}

func TestSlogSink_LogCapabilityViolation(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	sink := NewSlogSink(logger)

	sink.LogCapabilityViolation(ViolationDetail{
		Capability: "state_override",
		Mode:       "default",
		Allowed:    []string{"memory_query"},
		Timestamp:  time.Now(),
	})

	out := buf.String()
	if !strings.Contains(out, "state_override") || !strings.Contains(out, "memory_query") {
		t.Errorf("violation output missing context: %s", out)
	}
}

func TestMultiSink_FansOut(t *testing.T) {
	a := &recordingSink{}
	b := &recordingSink{}
	sink := NewMultiSink(a, nil, b)

	sink.Log(NewEntry(EventElevationSuccess, time.Now(), nil))
	sink.LogCapabilityViolation(ViolationDetail{Capability: "x"})

	for i, r := range []*recordingSink{a, b} {
		if len(r.entries) != 1 {
			t.Errorf("sink %d entries = %d, want 1", i, len(r.entries))
		}
		if len(r.violations) != 1 {
			t.Errorf("sink %d violations = %d, want 1", i, len(r.violations))
		}
	}
}
