package proposal

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hpungsan/arbiter/internal/errors"
)

// AllowedTargets lists the only symbolic names a staged proposal may
// address. Targets outside this list are rejected so a proposal can never
// reference an arbitrary path.
var AllowedTargets = []string{
	"core-identity",
	"operational-baseline",
	"companion-mode",
	"guardrails",
	"state-machine",
}

func isAllowedTarget(target string) bool {
	for _, t := range AllowedTargets {
		if t == target {
			return true
		}
	}
	return false
}

// Service generates, validates, and stages proposals under baseDir.
type Service struct {
	baseDir string
	now     func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates a proposal service rooted at baseDir.
func NewService(baseDir string, opts ...Option) *Service {
	s := &Service{baseDir: baseDir, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ProposalsDir returns the staging directory for proposal files.
func (s *Service) ProposalsDir() string {
	return filepath.Join(s.baseDir, "proposals")
}

// Generate decomposes a task description into a structured proposal with
// a three-phase plan, inferred resources, and validation gates. An empty
// description is an invalid request.
func (s *Service) Generate(taskDescription string) (Proposal, error) {
	description := strings.TrimSpace(taskDescription)
	if description == "" {
		return Proposal{}, errors.NewInvalidRequest("task description must not be empty")
	}

	title := extractTitle(description)
	return Proposal{
		Title:           title,
		Phases:          buildPhases(),
		Resources:       inferResources(description),
		ValidationGates: buildValidationGates(title),
		GeneratedAt:     s.now().UTC(),
	}, nil
}

// Report is the outcome of validating a proposal. Valid is true only when
// Errors is empty; Warnings never affect validity.
type Report struct {
	Valid       bool      `json:"valid"`
	Errors      []string  `json:"errors"`
	Warnings    []string  `json:"warnings"`
	ValidatedAt time.Time `json:"validated_at"`
}

// Validate checks a proposal for required fields and phase integrity.
func (s *Service) Validate(p Proposal) Report {
	report := Report{
		Errors:      []string{},
		Warnings:    []string{},
		ValidatedAt: s.now().UTC(),
	}

	if strings.TrimSpace(p.Title) == "" {
		report.Errors = append(report.Errors, "missing required field: 'title'")
	}
	if len(p.Phases) == 0 {
		report.Errors = append(report.Errors, "field 'phases' must not be empty")
	}
	if len(p.Resources) == 0 {
		report.Warnings = append(report.Warnings, "no resources listed; verify no dependencies are missing")
	}
	if len(p.ValidationGates) == 0 {
		report.Warnings = append(report.Warnings, "no validation gates defined; consider adding test criteria")
	}

	for i, phase := range p.Phases {
		if strings.TrimSpace(phase.Name) == "" {
			report.Errors = append(report.Errors, fmt.Sprintf("phase[%d] missing name", i))
		}
		if len(phase.Steps) == 0 {
			report.Warnings = append(report.Warnings, fmt.Sprintf("phase[%d] (%q) has no steps", i, phase.Name))
		}
		if len(phase.Outputs) == 0 {
			report.Errors = append(report.Errors, fmt.Sprintf("phase[%d] missing outputs", i))
		}
	}

	report.Valid = len(report.Errors) == 0
	return report
}

// Stage writes a configuration change proposal as a markdown file under
// the proposals directory and returns its path. The file is named with a
// UTC timestamp and the target slug. Staged proposals await operator
// review; nothing is applied automatically.
func (s *Service) Stage(target, rationale, content string) (string, error) {
	if !isAllowedTarget(target) {
		return "", errors.NewInvalidRequest(fmt.Sprintf(
			"unknown proposal target %q; allowed: %s", target, strings.Join(AllowedTargets, ", ")))
	}
	if strings.TrimSpace(rationale) == "" {
		return "", errors.NewInvalidRequest("rationale must not be empty")
	}
	if strings.TrimSpace(content) == "" {
		return "", errors.NewInvalidRequest("proposed content must not be empty")
	}

	dir := s.ProposalsDir()
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", errors.NewInternal(err)
	}

	ts := s.now().UTC().Format("2006-01-02T15-04-05Z")
	path := filepath.Join(dir, fmt.Sprintf("%s-%s.md", ts, target))

	var b strings.Builder
	fmt.Fprintf(&b, "# Config Change Proposal: %s\n\n", target)
	b.WriteString("**Status**: PENDING OPERATOR REVIEW\n")
	fmt.Fprintf(&b, "**Proposed at**: %s\n", ts)
	fmt.Fprintf(&b, "**Target**: `%s`\n\n", target)
	b.WriteString("## Rationale\n\n")
	b.WriteString(strings.TrimSpace(rationale))
	b.WriteString("\n\n## Proposed Content\n\n")
	b.WriteString(strings.TrimSpace(content))
	b.WriteString("\n\n---\n*This proposal must be reviewed and manually applied by an operator. No automatic changes are made.*\n")

	if err := os.WriteFile(path, []byte(b.String()), 0600); err != nil {
		return "", errors.NewInternal(err)
	}
	return path, nil
}

// List returns the staged proposal filenames, newest first.
func (s *Service) List() ([]string, error) {
	entries, err := os.ReadDir(s.ProposalsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, errors.NewInternal(err)
	}

	names := []string{}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		names = append(names, entry.Name())
	}
	// Timestamp-prefixed names sort chronologically; reverse for newest first.
	for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
		names[i], names[j] = names[j], names[i]
	}
	return names, nil
}

// Read returns the content of a staged proposal by filename.
func (s *Service) Read(name string) (string, error) {
	if strings.Contains(name, "/") || strings.Contains(name, "..") {
		return "", errors.NewInvalidRequest("invalid proposal name")
	}
	content, err := os.ReadFile(filepath.Join(s.ProposalsDir(), name))
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.NewNotFound(name)
		}
		return "", errors.NewInternal(err)
	}
	return string(content), nil
}
