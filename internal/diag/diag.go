// Package diag reports agent health and audits the declared constraint
// list against the live runtime. Both operations are privileged-only;
// the guard enforces that, not this package.
package diag

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/hpungsan/arbiter/internal/guardrail"
	"github.com/hpungsan/arbiter/internal/memory"
	"github.com/hpungsan/arbiter/internal/mode"
	"github.com/hpungsan/arbiter/internal/proposal"
	"github.com/hpungsan/arbiter/internal/registry"
)

// Declared constraints, audited against the live components that enforce
// them rather than against configuration files.
const (
	ConstraintNoContextLeakage  = "no_cross_state_context_leakage"
	ConstraintNoEmotionalOutput = "no_emotional_output_in_operational_state"
	ConstraintNoSystemCommands  = "no_system_commands_outside_administrative_state"
	ConstraintNoExplicitContent = "no_explicit_content"
)

// DeclaredConstraints is the audit source of truth, in report order.
var DeclaredConstraints = []string{
	ConstraintNoContextLeakage,
	ConstraintNoEmotionalOutput,
	ConstraintNoSystemCommands,
	ConstraintNoExplicitContent,
}

// Service collects diagnostics from the runtime's live components.
type Service struct {
	registry  *registry.Registry
	guardrail *guardrail.Guardrail
	memory    *memory.Store
	proposals *proposal.Service
	started   time.Time
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces the wall clock, for tests. The start time is
// re-anchored to the injected clock.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
			s.started = now()
		}
	}
}

// NewService creates a diagnostics service over the given components.
func NewService(reg *registry.Registry, g *guardrail.Guardrail, mem *memory.Store, props *proposal.Service, opts ...Option) *Service {
	s := &Service{
		registry:  reg,
		guardrail: g,
		memory:    mem,
		proposals: props,
		started:   time.Now(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MemoryStats extends the notes file stats with the staged proposal count.
type MemoryStats struct {
	memory.Stats
	ProposalsCount int `json:"proposals_count"`
}

// Snapshot is a point-in-time health report.
type Snapshot struct {
	Timestamp      time.Time         `json:"timestamp"`
	StateStability string            `json:"state_stability"`
	Memory         MemoryStats       `json:"memory"`
	Capabilities   map[string]string `json:"capabilities"`
	Constraints    map[string]string `json:"constraints"`
	UptimeSeconds  float64           `json:"uptime_s"`
}

// Snapshot collects and returns the current health report. Stability is
// "degraded" when the registry no longer satisfies its invariants.
func (s *Service) Snapshot() Snapshot {
	now := s.now()

	stability := "stable"
	if err := s.registry.Validate(); err != nil {
		stability = "degraded"
	}

	caps := map[string]string{}
	for _, name := range s.registry.AllCapabilities() {
		caps[name] = "available"
	}

	constraints := map[string]string{}
	for _, rec := range s.auditConstraints() {
		constraints[rec.Constraint] = rec.Status
	}

	mem := MemoryStats{Stats: s.memory.Stat()}
	if names, err := s.proposals.List(); err == nil {
		mem.ProposalsCount = len(names)
	}

	return Snapshot{
		Timestamp:      now.UTC(),
		StateStability: stability,
		Memory:         mem,
		Capabilities:   caps,
		Constraints:    constraints,
		UptimeSeconds:  now.Sub(s.started).Seconds(),
	}
}

// ConstraintStatus is one constraint's audit record.
type ConstraintStatus struct {
	Constraint string `json:"constraint"`
	Status     string `json:"status"`
}

// AuditReport is the outcome of a full constraint audit.
type AuditReport struct {
	Timestamp     time.Time          `json:"timestamp"`
	Constraints   []ConstraintStatus `json:"constraints"`
	DriftDetected bool               `json:"drift_detected"`
	Summary       string             `json:"summary"`
}

// AuditConstraints verifies every declared constraint against the live
// components and reports any drift.
func (s *Service) AuditConstraints() AuditReport {
	results := s.auditConstraints()

	attention := 0
	for _, rec := range results {
		if rec.Status != "active" {
			attention++
		}
	}

	summary := "All constraints active."
	if attention > 0 {
		summary = fmt.Sprintf("%d constraint(s) require attention.", attention)
	}

	return AuditReport{
		Timestamp:     s.now().UTC(),
		Constraints:   results,
		DriftDetected: attention > 0,
		Summary:       summary,
	}
}

func (s *Service) auditConstraints() []ConstraintStatus {
	results := make([]ConstraintStatus, 0, len(DeclaredConstraints))
	for _, constraint := range DeclaredConstraints {
		results = append(results, ConstraintStatus{
			Constraint: constraint,
			Status:     s.checkConstraint(constraint),
		})
	}
	return results
}

func (s *Service) checkConstraint(constraint string) string {
	banned, tone := s.guardrail.PatternCounts()

	switch constraint {
	case ConstraintNoExplicitContent:
		if banned == 0 {
			return "drift — hard-blocked pattern list is empty"
		}
		return "active"

	case ConstraintNoEmotionalOutput:
		if tone == 0 {
			return "drift — tone pattern list is empty"
		}
		return "active"

	case ConstraintNoSystemCommands:
		// Privileged capabilities must not be reachable from the default
		// mode's list.
		privileged, err := s.registry.Capabilities(mode.Privileged)
		if err != nil {
			return "unverifiable — privileged capability list unreadable"
		}
		for _, name := range privileged {
			if s.registry.Allows(name, mode.Default) {
				return fmt.Sprintf("drift — %q reachable from default mode", name)
			}
		}
		return "active"

	case ConstraintNoContextLeakage:
		if err := s.registry.Validate(); err != nil {
			return "drift — capability lists violate isolation invariants"
		}
		// Staged proposals must stay inside the staging directory.
		if filepath.Base(filepath.Dir(s.memory.NotesPath())) != "memory" {
			return "drift — notes path escaped the memory directory"
		}
		return "active"
	}

	return "unverifiable — unknown constraint"
}
