// Package audit defines the security event record handed to the host's
// audit sink. Entries are constructed here and handed off; persistence,
// rotation, and alerting belong to the sink implementation.
package audit

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// EventKind identifies the class of a security-relevant event.
type EventKind string

const (
	EventElevationSuccess    EventKind = "elevation-success"
	EventElevationFailure    EventKind = "elevation-failure"
	EventSessionTerminated   EventKind = "session-terminated"
	EventCapabilityViolation EventKind = "capability-violation"
)

// Entry is an immutable audit record. Once constructed it is never mutated.
type Entry struct {
	ID        string         `json:"id"`
	Kind      EventKind      `json:"kind"`
	Timestamp time.Time      `json:"timestamp"`
	Detail    map[string]any `json:"detail,omitempty"`
}

// ViolationDetail carries the full context of a rejected capability call.
type ViolationDetail struct {
	Capability string    `json:"capability"`
	Mode       string    `json:"mode"`
	Allowed    []string  `json:"allowed"`
	Timestamp  time.Time `json:"timestamp"`
}

// Sink receives audit events. Implementations own durability; writes are
// fire-and-forget from the caller's perspective and are never retried here.
type Sink interface {
	Log(entry Entry)
	LogCapabilityViolation(detail ViolationDetail)
}

// NewEntry builds an audit entry with a fresh ULID and the given detail.
func NewEntry(kind EventKind, ts time.Time, detail map[string]any) Entry {
	return Entry{
		ID:        newID(ts),
		Kind:      kind,
		Timestamp: ts,
		Detail:    detail,
	}
}

// newID generates a ULID. Falls back to a zero-entropy ULID only if the
// system entropy source fails, which is not a recoverable condition worth
// surfacing on every audit write.
func newID(ts time.Time) string {
	id, err := ulid.New(ulid.Timestamp(ts), ulid.Monotonic(rand.Reader, 0))
	if err != nil {
		return ulid.ULID{}.String()
	}
	return id.String()
}
