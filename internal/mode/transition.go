package mode

import "strings"

// Default phrase lists. Matching is literal substring containment over the
// case-folded input — "analyzer" matches "analyze". That looseness is a
// deliberate tradeoff (simple, auditable, no tokenizer); callers may rely
// on it, so do not tighten it here.
var (
	// DefaultCompanionPhrases are multi-word activation phrases for
	// companion mode.
	DefaultCompanionPhrases = []string{
		"ariadne, companion mode",
		"switch to companion",
	}

	// DefaultTaskIndicators are single-word task-intent tokens. Any sign of
	// task intent snaps the session back to the default mode.
	DefaultTaskIndicators = []string{
		"code", "debug", "analyze", "plan", "budget",
		"architecture", "refactor", "profile", "optimize",
	}
)

// Detector decides the next mode from free-text input. It is pure and
// total: no side effects, an answer for every input.
type Detector struct {
	companionPhrases []string
	taskIndicators   []string
}

// NewDetector creates a detector with the default phrase lists.
func NewDetector() *Detector {
	return &Detector{
		companionPhrases: DefaultCompanionPhrases,
		taskIndicators:   DefaultTaskIndicators,
	}
}

// NewDetectorWithLists creates a detector with operator-supplied lists.
// Empty lists fall back to the defaults. Configured entries are case-folded
// at construction; matching is against case-folded input, so a mixed-case
// entry stored verbatim would never fire.
func NewDetectorWithLists(companionPhrases, taskIndicators []string) *Detector {
	d := NewDetector()
	if len(companionPhrases) > 0 {
		d.companionPhrases = foldAll(companionPhrases)
	}
	if len(taskIndicators) > 0 {
		d.taskIndicators = foldAll(taskIndicators)
	}
	return d
}

func foldAll(entries []string) []string {
	folded := make([]string, len(entries))
	for i, e := range entries {
		folded[i] = strings.ToLower(e)
	}
	return folded
}

// Next returns the mode that should follow the given input.
//
// Rules, first match wins (the order is correctness-critical):
//  1. Privileged is sticky: this function never enters or exits it. Exit is
//     an explicit session termination; entry is an explicit elevation. The
//     agent's own text stream can never talk its way across that boundary.
//  2. A companion activation phrase switches to companion.
//  3. A task indicator reverts to default, even when the same message also
//     resembles a companion activation — rule 2 already ran and failed.
//  4. Otherwise the current mode is kept.
func (d *Detector) Next(input string, current Mode) Mode {
	if current == Privileged {
		return current
	}

	lower := strings.ToLower(input)

	for _, phrase := range d.companionPhrases {
		if strings.Contains(lower, phrase) {
			return Companion
		}
	}

	for _, indicator := range d.taskIndicators {
		if strings.Contains(lower, indicator) {
			return Default
		}
	}

	return current
}
