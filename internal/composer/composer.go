// Package composer assembles the layered prompt payload for each mode and
// bounds the injected context by ranking recently seen topics.
package composer

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/hpungsan/arbiter/internal/errors"
	"github.com/hpungsan/arbiter/internal/mode"
)

// Prompt section layer names resolved through a SectionSource.
const (
	SectionBaseline          = "baseline"
	SectionCompanionAdditive = "companion-additive"
	SectionPrivileged        = "privileged"
)

// DefaultTopicLimit bounds the topics injected into a context snapshot.
const DefaultTopicLimit = 5

// SectionSource resolves a named prompt layer to its text. The host owns
// the layer content; failure to resolve a name is a fatal composer error.
type SectionSource interface {
	Section(name string) (string, bool)
}

// MapSource is a SectionSource backed by a plain map.
type MapSource map[string]string

// Section implements SectionSource.
func (m MapSource) Section(name string) (string, bool) {
	text, ok := m[name]
	return text, ok
}

// Context is a point-in-time snapshot used to build a prompt. No side
// effects: building one never mutates the composer.
type Context struct {
	Mode           mode.Mode `json:"mode"`
	ProjectContext string    `json:"project_context,omitempty"`
	RecentTopics   []string  `json:"recent_topics"`
}

// Composer tracks topic frequency and concatenates prompt layers.
type Composer struct {
	mu     sync.Mutex
	counts map[string]int
	order  []string // first-seen order, the tie-breaker

	source         SectionSource
	projectContext string
}

// New creates a composer over the given section source.
func New(source SectionSource) *Composer {
	return &Composer{
		counts: make(map[string]int),
		source: source,
	}
}

// SetProjectContext sets the optional project context line included in
// snapshots and prompt headers.
func (c *Composer) SetProjectContext(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.projectContext = text
}

// RecordTopic increments the frequency counter for name, creating it at 1
// when absent. Blank names are ignored.
func (c *Composer) RecordTopic(name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, seen := c.counts[name]; !seen {
		c.order = append(c.order, name)
	}
	c.counts[name]++
}

// TopicsByRelevance returns recorded topics sorted by descending frequency,
// ties broken by first-seen order, truncated to max. A non-positive max
// uses DefaultTopicLimit.
func (c *Composer) TopicsByRelevance(max int) []string {
	if max <= 0 {
		max = DefaultTopicLimit
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	ranked := make([]string, len(c.order))
	copy(ranked, c.order)
	sort.SliceStable(ranked, func(i, j int) bool {
		return c.counts[ranked[i]] > c.counts[ranked[j]]
	})

	if len(ranked) > max {
		ranked = ranked[:max]
	}
	return ranked
}

// BuildContext returns a snapshot for the given mode.
func (c *Composer) BuildContext(m mode.Mode) Context {
	c.mu.Lock()
	project := c.projectContext
	c.mu.Unlock()

	return Context{
		Mode:           m,
		ProjectContext: project,
		RecentTopics:   c.TopicsByRelevance(DefaultTopicLimit),
	}
}

// ComposePrompt concatenates the context header and the mode's layers:
// the baseline layer always, the companion additive layer only for
// companion mode, and a distinct fixed template (no additive layer) for
// privileged mode. A missing section source entry is a configuration
// error — the composer fails loudly rather than emit an incomplete prompt.
func (c *Composer) ComposePrompt(m mode.Mode) (string, error) {
	if _, err := mode.Parse(string(m)); err != nil {
		return "", err
	}

	snapshot := c.BuildContext(m)

	var b strings.Builder
	b.WriteString("# Context\n")
	b.WriteString(fmt.Sprintf("mode: %s\n", snapshot.Mode))
	if snapshot.ProjectContext != "" {
		b.WriteString(fmt.Sprintf("project: %s\n", snapshot.ProjectContext))
	}
	if len(snapshot.RecentTopics) > 0 {
		b.WriteString(fmt.Sprintf("recent topics: %s\n", strings.Join(snapshot.RecentTopics, ", ")))
	}
	b.WriteString("\n")

	layers := []string{SectionBaseline}
	switch m {
	case mode.Companion:
		layers = append(layers, SectionCompanionAdditive)
	case mode.Privileged:
		layers = []string{SectionPrivileged}
	}

	for i, name := range layers {
		text, ok := c.source.Section(name)
		if !ok {
			return "", errors.NewConfiguration(fmt.Sprintf("prompt section %q is missing", name))
		}
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(text)
	}

	return b.String(), nil
}
