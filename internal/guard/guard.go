// Package guard enforces mode-scoped capability lists at the invocation
// boundary. It defends against a compromised or confused model output, not
// just UI hygiene, so it must run on every call — never only when a tool
// picker is rendered.
package guard

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hpungsan/arbiter/internal/audit"
	"github.com/hpungsan/arbiter/internal/errors"
	"github.com/hpungsan/arbiter/internal/mode"
	"github.com/hpungsan/arbiter/internal/registry"
)

// ToolRequest is the accepted-call token returned to the caller. It is
// ephemeral: built on acceptance, never persisted. On rejection the caller
// receives no request object at all.
type ToolRequest struct {
	ID         string    `json:"id"`
	Capability string    `json:"capability"`
	Payload    any       `json:"payload,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Guard checks capability invocations against the registry. It holds no
// mutable state of its own; the current mode is supplied per call.
type Guard struct {
	registry *registry.Registry
	sink     audit.Sink
	now      func() time.Time
}

// Option configures a Guard.
type Option func(*Guard)

// WithClock replaces the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(g *Guard) {
		if now != nil {
			g.now = now
		}
	}
}

// New creates a guard over the given registry and audit sink.
func New(reg *registry.Registry, sink audit.Sink, opts ...Option) *Guard {
	g := &Guard{
		registry: reg,
		sink:     sink,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Check validates a capability invocation against the current mode.
// On acceptance it returns a ToolRequest carrying the opaque payload. On
// rejection it audits the full violation context (attempted capability,
// mode, complete allowed list, timestamp) and returns a
// CAPABILITY_VIOLATION error so the host can abort response generation
// without crashing.
func (g *Guard) Check(capability string, current mode.Mode, payload any) (*ToolRequest, error) {
	allowed, err := g.registry.Capabilities(current)
	if err != nil {
		// Unknown mode is a host programming error; propagate as-is.
		return nil, err
	}

	ts := g.now()

	if !g.registry.Allows(capability, current) {
		g.sink.LogCapabilityViolation(audit.ViolationDetail{
			Capability: capability,
			Mode:       string(current),
			Allowed:    allowed,
			Timestamp:  ts,
		})
		return nil, errors.NewCapabilityViolation(capability, string(current), allowed)
	}

	return &ToolRequest{
		ID:         newRequestID(ts),
		Capability: capability,
		Payload:    payload,
		Timestamp:  ts,
	}, nil
}

func newRequestID(ts time.Time) string {
	id, err := ulid.New(ulid.Timestamp(ts), ulid.Monotonic(rand.Reader, 0))
	if err != nil {
		return ulid.ULID{}.String()
	}
	return id.String()
}
