// Package mode defines the agent's behavioral modes, the transition engine
// that moves between them, and the per-session state holder read by the
// capability guard and output guardrail.
package mode

import (
	"fmt"
	"sync"
	"time"

	"github.com/hpungsan/arbiter/internal/errors"
)

// Mode is the agent's current behavioral/capability context.
type Mode string

const (
	// Default is the task-oriented baseline.
	Default Mode = "default"
	// Companion is the tone-shifted, relationally additive mode.
	Companion Mode = "companion"
	// Privileged is the operator-only mode, entered solely via elevation.
	Privileged Mode = "privileged"
)

// All lists every mode in the closed set.
var All = []Mode{Default, Companion, Privileged}

// Parse validates a mode string against the closed set.
// An unknown mode is a configuration error, not a runtime condition.
func Parse(s string) (Mode, error) {
	switch Mode(s) {
	case Default, Companion, Privileged:
		return Mode(s), nil
	}
	return "", errors.NewConfiguration(fmt.Sprintf("unknown mode %q (valid: default, companion, privileged)", s))
}

// State holds the current mode for one conversation session. It is an
// explicit owned object threaded through calls, never a hidden global, so
// concurrent sessions cannot cross-contaminate.
type State struct {
	mu      sync.RWMutex
	current Mode
}

// NewState creates a state holder starting in the default mode.
func NewState() *State {
	return &State{current: Default}
}

// Current returns the mode at this instant.
func (s *State) Current() Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Set replaces the current mode. The caller is responsible for authorization;
// entry into Privileged must only ever come from a valid session elevation.
func (s *State) Set(m Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = m
}

// Transition record for host-side audit logging. Produced whenever the mode
// changes; never mutated or persisted here.
type Transition struct {
	Timestamp  time.Time `json:"timestamp"`
	FromMode   Mode      `json:"from_mode"`
	ToMode     Mode      `json:"to_mode"`
	Authorized bool      `json:"authorized"`
}
