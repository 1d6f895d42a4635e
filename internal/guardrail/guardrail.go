// Package guardrail screens generated text before it reaches the user.
// Screening is literal substring scanning over configurable lists — an
// intentional, auditable mechanism, not an NLP classifier. Outcomes are
// ordinary values, never errors: a screened-out message is a routine
// branch, not an exceptional condition.
package guardrail

import (
	"strings"

	"github.com/hpungsan/arbiter/internal/mode"
)

// Fixed replacement strings. The two are distinct so callers can tell
// "unsafe" from "wrong register".
const (
	// ContentBlockedPlaceholder replaces output matching the hard-blocked
	// list. The whole output is discarded: partial redaction cannot
	// guarantee the adjacent context is safe.
	ContentBlockedPlaceholder = "[content removed: violates content policy]"

	// ToneViolationMessage replaces output that leaks companion-register
	// tone into a non-companion mode.
	ToneViolationMessage = "[response withheld: tone not appropriate for current mode]"
)

// DefaultBannedPatterns is the hard-blocked content list, screened in every
// mode. Explicit sexual content categories.
var DefaultBannedPatterns = []string{
	"explicit sexual",
	"sexual roleplay",
	"erotic roleplay",
	"nsfw content",
}

// DefaultTonePatterns is the tone-violation list: warmth, affection, and
// reassurance phrasing that belongs only to companion mode. Persona drift
// across mode boundaries is a trust failure, not a style nit, so these are
// enforced with the same mechanical weight as banned content.
var DefaultTonePatterns = []string{
	"i love you",
	"i care about you so much",
	"you mean everything to me",
	"sweetheart",
	"my darling",
	"i'm always here for you",
	"you're doing great, and i'm proud of you",
}

// Outcome classifies a screening result.
type Outcome string

const (
	OutcomePass           Outcome = "pass"
	OutcomeContentBlocked Outcome = "content-blocked"
	OutcomeToneViolation  Outcome = "tone-violation"
)

// Guardrail screens output text against the banned and tone lists.
type Guardrail struct {
	banned []string
	tone   []string
}

// New creates a guardrail with the default pattern lists.
func New() *Guardrail {
	return &Guardrail{
		banned: DefaultBannedPatterns,
		tone:   DefaultTonePatterns,
	}
}

// NewWithLists creates a guardrail with operator-supplied patterns appended
// to the defaults. The built-in lists are never removed: loosening the
// hard-blocked list is not an operator decision. Configured patterns are
// case-folded at construction; matching is against case-folded input, so a
// mixed-case pattern stored verbatim would never fire.
func NewWithLists(extraBanned, extraTone []string) *Guardrail {
	g := New()
	g.banned = append(append([]string{}, g.banned...), foldAll(extraBanned)...)
	g.tone = append(append([]string{}, g.tone...), foldAll(extraTone)...)
	return g
}

func foldAll(patterns []string) []string {
	folded := make([]string, len(patterns))
	for i, p := range patterns {
		folded[i] = strings.ToLower(p)
	}
	return folded
}

// PatternCounts reports the sizes of the active banned and tone lists.
func (g *Guardrail) PatternCounts() (banned, tone int) {
	return len(g.banned), len(g.tone)
}

// Screen checks text for the given mode and returns the text to show the
// user plus the outcome classification.
//
// Pass 1 runs in every mode against the hard-blocked list; any match
// replaces the entire output with the content placeholder. Pass 2 runs only
// outside companion mode against the tone list. Banned matches dominate
// tone matches. With no match the input is returned unchanged.
func (g *Guardrail) Screen(text string, current mode.Mode) (string, Outcome) {
	lower := strings.ToLower(text)

	for _, pattern := range g.banned {
		if strings.Contains(lower, pattern) {
			return ContentBlockedPlaceholder, OutcomeContentBlocked
		}
	}

	if current != mode.Companion {
		for _, pattern := range g.tone {
			if strings.Contains(lower, pattern) {
				return ToneViolationMessage, OutcomeToneViolation
			}
		}
	}

	return text, OutcomePass
}
