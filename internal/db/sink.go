package db

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/hpungsan/arbiter/internal/audit"
)

// Sink persists audit events to SQLite. Writes are fire-and-forget: failed
// writes are logged and dropped, never retried. The sink owns durability
// policy; callers never block on it.
type Sink struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSink creates a SQLite-backed audit sink.
// A nil logger uses slog.Default().
func NewSink(db *sql.DB, logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{db: db, logger: logger}
}

// Log persists the entry.
func (s *Sink) Log(entry audit.Entry) {
	if err := InsertEvent(s.db, entry); err != nil {
		s.logger.Error("audit write failed", "id", entry.ID, "error", err)
	}
}

// LogCapabilityViolation persists the violation as a capability-violation
// event carrying the full detail.
func (s *Sink) LogCapabilityViolation(detail audit.ViolationDetail) {
	ts := detail.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	entry := audit.NewEntry(audit.EventCapabilityViolation, ts, map[string]any{
		"capability": detail.Capability,
		"mode":       detail.Mode,
		"allowed":    detail.Allowed,
	})
	s.Log(entry)
}
