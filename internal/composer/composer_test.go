package composer

import (
	"strings"
	"testing"

	"github.com/hpungsan/arbiter/internal/errors"
	"github.com/hpungsan/arbiter/internal/mode"
)

func testSource() MapSource {
	return MapSource{
		SectionBaseline:          "You are a task-oriented assistant.",
		SectionCompanionAdditive: "Speak with warmth and patience.",
		SectionPrivileged:        "Operator session. Report diagnostics only.",
	}
}

func TestRecordTopic_And_TopicsByRelevance(t *testing.T) {
	c := New(testSource())

	c.RecordTopic("databases")
	c.RecordTopic("api")
	c.RecordTopic("databases")
	c.RecordTopic("deploys")
	c.RecordTopic("api")
	c.RecordTopic("databases")

	got := c.TopicsByRelevance(5)
	want := []string{"databases", "api", "deploys"}
	if len(got) != len(want) {
		t.Fatalf("topics = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("topics[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestTopicsByRelevance_TiesKeepFirstSeenOrder(t *testing.T) {
	c := New(testSource())

	c.RecordTopic("zeta")
	c.RecordTopic("alpha")
	c.RecordTopic("mid")
	c.RecordTopic("mid")

	got := c.TopicsByRelevance(5)
	want := []string{"mid", "zeta", "alpha"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("topics = %v, want %v (ties in first-seen order)", got, want)
		}
	}
}

func TestTopicsByRelevance_Truncation(t *testing.T) {
	c := New(testSource())

	for _, name := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		c.RecordTopic(name)
	}

	if got := c.TopicsByRelevance(3); len(got) != 3 {
		t.Errorf("truncated topics = %v, want 3 entries", got)
	}
	if got := c.TopicsByRelevance(0); len(got) != DefaultTopicLimit {
		t.Errorf("default-limit topics = %v, want %d entries", got, DefaultTopicLimit)
	}
}

func TestRecordTopic_IgnoresBlank(t *testing.T) {
	c := New(testSource())
	c.RecordTopic("")
	c.RecordTopic("   ")

	if got := c.TopicsByRelevance(5); len(got) != 0 {
		t.Errorf("topics = %v, want none for blank names", got)
	}
}

func TestBuildContext(t *testing.T) {
	c := New(testSource())
	c.SetProjectContext("ariadne deployment")
	c.RecordTopic("databases")

	snapshot := c.BuildContext(mode.Companion)
	if snapshot.Mode != mode.Companion {
		t.Errorf("Mode = %s", snapshot.Mode)
	}
	if snapshot.ProjectContext != "ariadne deployment" {
		t.Errorf("ProjectContext = %q", snapshot.ProjectContext)
	}
	if len(snapshot.RecentTopics) != 1 || snapshot.RecentTopics[0] != "databases" {
		t.Errorf("RecentTopics = %v", snapshot.RecentTopics)
	}

	// Snapshot, not a live view.
	c.RecordTopic("api")
	if len(snapshot.RecentTopics) != 1 {
		t.Error("snapshot mutated by later RecordTopic")
	}
}

func TestComposePrompt_Default(t *testing.T) {
	c := New(testSource())

	prompt, err := c.ComposePrompt(mode.Default)
	if err != nil {
		t.Fatalf("ComposePrompt error: %v", err)
	}
	if !strings.Contains(prompt, "mode: default") {
		t.Errorf("prompt missing context header: %q", prompt)
	}
	if !strings.Contains(prompt, "task-oriented assistant") {
		t.Error("prompt missing baseline layer")
	}
	if strings.Contains(prompt, "warmth") {
		t.Error("default prompt contains the companion additive layer")
	}
}

func TestComposePrompt_CompanionAddsLayer(t *testing.T) {
	c := New(testSource())

	prompt, err := c.ComposePrompt(mode.Companion)
	if err != nil {
		t.Fatalf("ComposePrompt error: %v", err)
	}
	if !strings.Contains(prompt, "task-oriented assistant") {
		t.Error("companion prompt missing baseline layer")
	}
	if !strings.Contains(prompt, "warmth and patience") {
		t.Error("companion prompt missing additive layer")
	}
}

func TestComposePrompt_PrivilegedFixedTemplate(t *testing.T) {
	c := New(testSource())

	prompt, err := c.ComposePrompt(mode.Privileged)
	if err != nil {
		t.Fatalf("ComposePrompt error: %v", err)
	}
	if !strings.Contains(prompt, "Operator session") {
		t.Error("privileged prompt missing privileged template")
	}
	if strings.Contains(prompt, "task-oriented assistant") || strings.Contains(prompt, "warmth") {
		t.Error("privileged prompt must not include baseline or additive layers")
	}
}

func TestComposePrompt_MissingSectionFailsLoudly(t *testing.T) {
	c := New(MapSource{SectionBaseline: "baseline only"})

	if _, err := c.ComposePrompt(mode.Companion); !errors.Is(err, errors.ErrConfiguration) {
		t.Errorf("error = %v, want CONFIGURATION for missing section", err)
	}
}

func TestComposePrompt_UnknownMode(t *testing.T) {
	c := New(testSource())

	if _, err := c.ComposePrompt(mode.Mode("operational")); !errors.Is(err, errors.ErrConfiguration) {
		t.Errorf("error = %v, want CONFIGURATION for unknown mode", err)
	}
}

func TestComposePrompt_Deterministic(t *testing.T) {
	c := New(testSource())
	c.RecordTopic("databases")

	a, err := c.ComposePrompt(mode.Default)
	if err != nil {
		t.Fatal(err)
	}
	b, err := c.ComposePrompt(mode.Default)
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Error("ComposePrompt is not deterministic for identical state")
	}
}

func TestGentleSuggestion(t *testing.T) {
	got := GentleSuggestion("I am struggling with the new deployment process")
	if strings.TrimSpace(got) == "" {
		t.Fatal("suggestion must be non-empty")
	}
	if !strings.Contains(got, "the new deployment process") {
		t.Errorf("suggestion %q missing extracted topic", got)
	}

	// Deterministic per context.
	if again := GentleSuggestion("I am struggling with the new deployment process"); again != got {
		t.Errorf("suggestion not deterministic: %q vs %q", got, again)
	}
}

func TestGentleSuggestion_EmptyContextFallsBack(t *testing.T) {
	for _, context := range []string{"", "   "} {
		got := GentleSuggestion(context)
		if got != suggestionFallback {
			t.Errorf("GentleSuggestion(%q) = %q, want fallback", context, got)
		}
	}
}

func TestGentleSuggestion_ShortContextUsedVerbatim(t *testing.T) {
	got := GentleSuggestion("the garden")
	if !strings.Contains(got, "the garden") {
		t.Errorf("short context not used as topic: %q", got)
	}
}
