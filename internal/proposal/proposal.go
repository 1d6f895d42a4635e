// Package proposal decomposes task descriptions into structured change
// proposals, validates them against the proposal schema, and stages
// configuration change proposals for operator review. Staged proposals
// are never applied automatically.
package proposal

import (
	"strings"
	"time"
)

// Phase is one ordered step group in a proposal's execution plan.
type Phase struct {
	Name    string   `json:"name"`
	Steps   []string `json:"steps"`
	Outputs []string `json:"outputs"`
}

// Proposal is a structured change plan derived from a task description.
type Proposal struct {
	Title           string    `json:"title"`
	Phases          []Phase   `json:"phases"`
	Resources       []string  `json:"resources"`
	ValidationGates []string  `json:"validation_gates"`
	GeneratedAt     time.Time `json:"generated_at"`
}

// titleMaxLen bounds the title derived from the first sentence.
const titleMaxLen = 80

// extractTitle uses the first sentence, capped at titleMaxLen runes.
func extractTitle(description string) string {
	first := description
	if idx := strings.IndexAny(description, ".!?\n"); idx >= 0 {
		first = description[:idx]
	}
	first = strings.TrimSpace(first)
	if first == "" {
		first = description
	}
	runes := []rune(first)
	if len(runes) > titleMaxLen {
		return string(runes[:titleMaxLen])
	}
	return first
}

// buildPhases returns the standard three-phase execution plan.
func buildPhases() []Phase {
	return []Phase{
		{
			Name: "Analysis",
			Steps: []string{
				"Review task description and clarify scope.",
				"Identify dependencies and constraints.",
				"Document assumptions.",
			},
			Outputs: []string{"scope_document"},
		},
		{
			Name: "Execution",
			Steps: []string{
				"Implement the changes described in the task.",
				"Write or update tests covering new behaviour.",
				"Commit with a descriptive message.",
			},
			Outputs: []string{"implementation", "tests"},
		},
		{
			Name: "Validation",
			Steps: []string{
				"Run the relevant test suite.",
				"Confirm all validation gates pass.",
				"Peer-review or self-review the diff.",
			},
			Outputs: []string{"validation_report"},
		},
	}
}

var resourceHints = []struct {
	keywords []string
	resource string
}{
	{[]string{"database", "sqlite", "postgres", "mysql"}, "database_access"},
	{[]string{"api", "http", "rest", "endpoint"}, "network_access"},
	{[]string{"file", "read", "write", "disk"}, "filesystem_access"},
}

// inferResources returns the baseline resource list plus keyword-inferred extras.
func inferResources(description string) []string {
	resources := []string{"repository_access", "test_runner"}
	lower := strings.ToLower(description)
	for _, hint := range resourceHints {
		for _, kw := range hint.keywords {
			if strings.Contains(lower, kw) {
				resources = append(resources, hint.resource)
				break
			}
		}
	}
	return resources
}

// buildValidationGates returns the standard validation checkpoints.
func buildValidationGates(title string) []string {
	return []string{
		"All tests pass after implementing: " + title,
		"No regressions in existing test suite.",
		"Output matches expected schema.",
		"No security-policy violations detected.",
	}
}
