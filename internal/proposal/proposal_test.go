package proposal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hpungsan/arbiter/internal/errors"
)

func testService(t *testing.T) *Service {
	t.Helper()
	fixed := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	return NewService(t.TempDir(), WithClock(func() time.Time { return fixed }))
}

func TestGenerate(t *testing.T) {
	s := testService(t)

	p, err := s.Generate("Refactor the session manager. It has grown unwieldy.")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if p.Title != "Refactor the session manager" {
		t.Errorf("unexpected title: %q", p.Title)
	}
	if len(p.Phases) != 3 {
		t.Fatalf("expected 3 phases, got %d", len(p.Phases))
	}
	for i, want := range []string{"Analysis", "Execution", "Validation"} {
		if p.Phases[i].Name != want {
			t.Errorf("phase %d: got %q, want %q", i, p.Phases[i].Name, want)
		}
		if len(p.Phases[i].Steps) == 0 {
			t.Errorf("phase %d has no steps", i)
		}
		if len(p.Phases[i].Outputs) == 0 {
			t.Errorf("phase %d has no outputs", i)
		}
	}
	if len(p.ValidationGates) == 0 {
		t.Error("expected validation gates")
	}
	if !strings.Contains(p.ValidationGates[0], p.Title) {
		t.Errorf("first gate should reference the title: %q", p.ValidationGates[0])
	}
	if p.GeneratedAt.IsZero() {
		t.Error("GeneratedAt not set")
	}
}

func TestGenerateEmptyRejected(t *testing.T) {
	s := testService(t)

	_, err := s.Generate("   ")
	if err == nil {
		t.Fatal("expected error for empty description")
	}
	if !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("expected invalid_request, got %v", err)
	}
}

func TestGenerateTitleTruncation(t *testing.T) {
	s := testService(t)

	long := strings.Repeat("x", 200)
	p, err := s.Generate(long)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len([]rune(p.Title)) != 80 {
		t.Errorf("expected 80-rune title, got %d", len([]rune(p.Title)))
	}
}

func TestGenerateResourceInference(t *testing.T) {
	s := testService(t)

	tests := []struct {
		description string
		want        string
	}{
		{"Migrate the sqlite schema", "database_access"},
		{"Add a REST endpoint for audit queries", "network_access"},
		{"Write the report to disk", "filesystem_access"},
	}
	for _, tt := range tests {
		p, err := s.Generate(tt.description)
		if err != nil {
			t.Fatalf("Generate(%q): %v", tt.description, err)
		}
		found := false
		for _, r := range p.Resources {
			if r == tt.want {
				found = true
			}
		}
		if !found {
			t.Errorf("Generate(%q): resources %v missing %q", tt.description, p.Resources, tt.want)
		}
	}

	p, err := s.Generate("Rename a variable")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(p.Resources) != 2 {
		t.Errorf("expected only baseline resources, got %v", p.Resources)
	}
}

func TestValidate(t *testing.T) {
	s := testService(t)

	p, err := s.Generate("Tighten the guardrail patterns")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	report := s.Validate(p)
	if !report.Valid {
		t.Errorf("generated proposal should validate, errors: %v", report.Errors)
	}
	if len(report.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", report.Warnings)
	}
	if report.ValidatedAt.IsZero() {
		t.Error("ValidatedAt not set")
	}
}

func TestValidateMissingFields(t *testing.T) {
	s := testService(t)

	report := s.Validate(Proposal{})
	if report.Valid {
		t.Error("empty proposal should not validate")
	}
	joined := strings.Join(report.Errors, "; ")
	if !strings.Contains(joined, "title") {
		t.Errorf("expected title error, got %v", report.Errors)
	}
	if !strings.Contains(joined, "phases") {
		t.Errorf("expected phases error, got %v", report.Errors)
	}
}

func TestValidatePhaseIntegrity(t *testing.T) {
	s := testService(t)

	p := Proposal{
		Title: "test",
		Phases: []Phase{
			{Name: "Analysis", Outputs: []string{"doc"}},
			{Steps: []string{"do it"}, Outputs: []string{"result"}},
		},
		Resources:       []string{"repository_access"},
		ValidationGates: []string{"tests pass"},
	}

	report := s.Validate(p)
	if report.Valid {
		t.Error("proposal with unnamed phase should not validate")
	}
	if len(report.Warnings) == 0 {
		t.Error("expected a warning for the phase with no steps")
	}
}

func TestStage(t *testing.T) {
	s := testService(t)

	path, err := s.Stage("core-identity", "Add resilience attribute", "## Resilience\n\nAdapt under uncertainty.")
	if err != nil {
		t.Fatalf("Stage: %v", err)
	}

	name := filepath.Base(path)
	if !strings.Contains(name, "core-identity") || !strings.HasSuffix(name, ".md") {
		t.Errorf("unexpected proposal filename: %q", name)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	text := string(content)
	if !strings.Contains(text, "PENDING OPERATOR REVIEW") {
		t.Error("missing review status banner")
	}
	if !strings.Contains(text, "Add resilience attribute") {
		t.Error("missing rationale")
	}
	if !strings.Contains(text, "manually applied by an operator") {
		t.Error("missing operator notice")
	}
}

func TestStageRejectsUnknownTarget(t *testing.T) {
	s := testService(t)

	for _, bad := range []string{"../../etc/passwd", "shell", "memory_store", ""} {
		_, err := s.Stage(bad, "rationale", "content")
		if err == nil {
			t.Errorf("Stage(%q): expected error", bad)
			continue
		}
		if !errors.Is(err, errors.ErrInvalidRequest) {
			t.Errorf("Stage(%q): expected invalid_request, got %v", bad, err)
		}
	}
	if _, err := os.Stat(s.ProposalsDir()); !os.IsNotExist(err) {
		t.Error("rejected stagings must not create the proposals dir")
	}
}

func TestStageRejectsEmptyFields(t *testing.T) {
	s := testService(t)

	if _, err := s.Stage("guardrails", "   ", "content"); err == nil {
		t.Error("expected error for empty rationale")
	}
	if _, err := s.Stage("guardrails", "rationale", "   "); err == nil {
		t.Error("expected error for empty content")
	}
}

func TestListAndRead(t *testing.T) {
	base := t.TempDir()
	times := []time.Time{
		time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC),
	}
	i := 0
	s := NewService(base, WithClock(func() time.Time {
		t := times[i%len(times)]
		i++
		return t
	}))

	if _, err := s.Stage("guardrails", "first", "content one"); err != nil {
		t.Fatalf("Stage: %v", err)
	}
	if _, err := s.Stage("state-machine", "second", "content two"); err != nil {
		t.Fatalf("Stage: %v", err)
	}

	names, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(names) != 2 {
		t.Fatalf("expected 2 proposals, got %d", len(names))
	}
	if !strings.Contains(names[0], "state-machine") {
		t.Errorf("expected newest first, got %v", names)
	}

	content, err := s.Read(names[0])
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !strings.Contains(content, "content two") {
		t.Errorf("unexpected content: %q", content)
	}

	if _, err := s.Read("missing.md"); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("expected not_found, got %v", err)
	}
	if _, err := s.Read("../escape.md"); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("expected invalid_request for traversal, got %v", err)
	}
}

func TestListEmpty(t *testing.T) {
	s := testService(t)

	names, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(names) != 0 {
		t.Errorf("expected empty list, got %v", names)
	}
}
