// Package registry defines the fixed capability lists permitted in each
// mode. The lists are validated once at construction so that typos in
// operator configuration fail fast instead of silently granting or denying.
package registry

import (
	"fmt"
	"sort"

	"github.com/hpungsan/arbiter/internal/errors"
	"github.com/hpungsan/arbiter/internal/mode"
)

// Capability names. The registry only ever deals in names; the host owns
// the implementations.
const (
	CapMemoryQuery      = "memory_query"
	CapMemoryWrite      = "memory_write"
	CapProposalGenerate = "proposal_generate"
	CapProposalValidate = "proposal_validate"
	CapProposalStage    = "proposal_stage"
	CapGentleSuggestion = "gentle_suggestion"
	CapSystemDiag       = "system_diagnostics"
	CapStateOverride    = "state_override"
	CapConstraintAudit  = "constraint_audit"
)

// sharedCarveOuts are capability names deliberately present in more than one
// mode's list. Read-only recall and note-taking are useful in both the
// default and companion modes; every other cross-mode duplicate is treated
// as an accident and rejected by Validate.
var sharedCarveOuts = map[string]bool{
	CapMemoryQuery: true,
	CapMemoryWrite: true,
}

// defaultLists is the built-in capability assignment.
func defaultLists() map[mode.Mode][]string {
	return map[mode.Mode][]string{
		mode.Default: {
			CapMemoryQuery,
			CapMemoryWrite,
			CapProposalGenerate,
			CapProposalValidate,
			CapProposalStage,
		},
		mode.Companion: {
			CapMemoryQuery,
			CapMemoryWrite,
			CapGentleSuggestion,
		},
		mode.Privileged: {
			CapSystemDiag,
			CapStateOverride,
			CapConstraintAudit,
		},
	}
}

// Registry maps each mode to its permitted capability names.
type Registry struct {
	lists map[mode.Mode][]string
}

// New builds the registry with the built-in lists. The built-ins always
// satisfy the invariants, so the error path is unreachable in practice.
func New() *Registry {
	r, err := NewWithOverrides(nil, nil)
	if err != nil {
		panic(err)
	}
	return r
}

// NewWithOverrides builds a registry from the built-in lists plus
// operator-configured additions and removals, then validates the result.
// Overrides are keyed by mode name.
func NewWithOverrides(extra, disabled map[string][]string) (*Registry, error) {
	lists := defaultLists()

	for modeName, names := range extra {
		m, err := mode.Parse(modeName)
		if err != nil {
			return nil, err
		}
		lists[m] = append(lists[m], names...)
	}

	for modeName, names := range disabled {
		m, err := mode.Parse(modeName)
		if err != nil {
			return nil, err
		}
		drop := make(map[string]bool, len(names))
		for _, n := range names {
			drop[n] = true
		}
		kept := lists[m][:0]
		for _, n := range lists[m] {
			if !drop[n] {
				kept = append(kept, n)
			}
		}
		lists[m] = kept
	}

	r := &Registry{lists: lists}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// Capabilities returns the capability names permitted in the given mode.
// The returned slice is a copy; callers cannot mutate the registry.
func (r *Registry) Capabilities(m mode.Mode) ([]string, error) {
	list, ok := r.lists[m]
	if !ok {
		return nil, errors.NewConfiguration(fmt.Sprintf("unknown mode %q", m))
	}
	out := make([]string, len(list))
	copy(out, list)
	return out, nil
}

// Allows reports whether the capability is permitted in the given mode.
func (r *Registry) Allows(capability string, m mode.Mode) bool {
	for _, name := range r.lists[m] {
		if name == capability {
			return true
		}
	}
	return false
}

// AllCapabilities returns the union of every mode's list, sorted.
func (r *Registry) AllCapabilities() []string {
	seen := map[string]bool{}
	for _, list := range r.lists {
		for _, name := range list {
			seen[name] = true
		}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Validate enforces the registry invariants:
//   - every mode in the closed set has a non-empty list
//   - no duplicate names within one mode's list
//   - the privileged and default lists share no members
//   - any name shared across modes must be a declared carve-out
func (r *Registry) Validate() error {
	for _, m := range mode.All {
		list, ok := r.lists[m]
		if !ok || len(list) == 0 {
			return errors.NewConfiguration(fmt.Sprintf("mode %q has no capabilities", m))
		}
		seen := map[string]bool{}
		for _, name := range list {
			if seen[name] {
				return errors.NewConfiguration(fmt.Sprintf("duplicate capability %q in mode %q", name, m))
			}
			seen[name] = true
		}
	}

	for _, name := range r.lists[mode.Privileged] {
		if contains(r.lists[mode.Default], name) {
			return errors.NewConfiguration(fmt.Sprintf("capability %q leaks between privileged and default modes", name))
		}
	}

	// Cross-mode sharing outside the declared carve-outs is an accident.
	owner := map[string]mode.Mode{}
	for _, m := range mode.All {
		for _, name := range r.lists[m] {
			if prev, ok := owner[name]; ok && prev != m && !sharedCarveOuts[name] {
				return errors.NewConfiguration(fmt.Sprintf("capability %q appears in modes %q and %q without a declared carve-out", name, prev, m))
			}
			owner[name] = m
		}
	}

	return nil
}

func contains(list []string, name string) bool {
	for _, n := range list {
		if n == name {
			return true
		}
	}
	return false
}
