// Package session wraps elevation with a wall-clock expiry window. One
// Manager guards one conversation session; validity is computed lazily on
// every read, so there is no background timer to manage and tests drive
// the clock instead of sleeping.
package session

import (
	"sync"
	"time"

	"github.com/hpungsan/arbiter/internal/audit"
	"github.com/hpungsan/arbiter/internal/auth"
)

// DefaultTTL is the elevation window when the operator configures nothing.
// High-sensitivity deployments should configure something shorter.
const DefaultTTL = time.Hour

// Result reports the outcome of an elevation attempt.
type Result struct {
	Success   bool       `json:"success"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Manager holds the single optional expiry instant for one session.
// Elevate, Terminate, and IsValid are safe for concurrent use; a tool call
// racing an elevation never observes a half-updated expiry.
type Manager struct {
	mu        sync.RWMutex
	expiresAt *time.Time

	ttl  time.Duration
	now  func() time.Time
	sink audit.Sink
}

// Option configures a Manager.
type Option func(*Manager)

// WithTTL sets the elevation window. Non-positive durations keep the default.
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithClock replaces the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager creates a session manager with no active session.
func NewManager(sink audit.Sink, opts ...Option) *Manager {
	m := &Manager{
		ttl:  DefaultTTL,
		now:  time.Now,
		sink: sink,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Elevate verifies the credential and, on success, opens (or re-opens) the
// elevation window. Every call emits exactly one audit event, success or
// failure; a failed attempt never touches an existing session.
func (m *Manager) Elevate(presentedCredential, expectedDigestHex string) Result {
	_, err := auth.Elevate(presentedCredential, expectedDigestHex)
	ts := m.now()

	if err != nil {
		// No privileged detail leaks into the failure event.
		m.sink.Log(audit.NewEntry(audit.EventElevationFailure, ts, nil))
		return Result{Success: false}
	}

	expiry := ts.Add(m.ttl)

	m.mu.Lock()
	m.expiresAt = &expiry
	m.mu.Unlock()

	m.sink.Log(audit.NewEntry(audit.EventElevationSuccess, ts, map[string]any{
		"expires_at": expiry,
	}))
	return Result{Success: true, ExpiresAt: &expiry}
}

// IsValid reports whether an elevation window is open: an expiry is set and
// the clock is strictly before it. An expired session is indistinguishable
// from no session.
func (m *Manager) IsValid() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.expiresAt != nil && m.now().Before(*m.expiresAt)
}

// ExpiresAt returns the current expiry instant, or nil when no session is
// set. The expiry may already be in the past; IsValid is the authority.
func (m *Manager) ExpiresAt() *time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.expiresAt == nil {
		return nil
	}
	expiry := *m.expiresAt
	return &expiry
}

// Terminate unconditionally clears the session. Safe to call at any time,
// including when no session exists; used for operator logout and as an
// emergency stop. Emits a termination audit event only when a session
// record was actually cleared.
func (m *Manager) Terminate() {
	m.mu.Lock()
	had := m.expiresAt != nil
	m.expiresAt = nil
	m.mu.Unlock()

	if had {
		m.sink.Log(audit.NewEntry(audit.EventSessionTerminated, m.now(), nil))
	}
}
