package main

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/hpungsan/arbiter/internal/config"
	"github.com/hpungsan/arbiter/internal/core"
	"github.com/hpungsan/arbiter/internal/db"
	"github.com/hpungsan/arbiter/internal/proposal"
)

const testCredential = "secret123"

func digestOf(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// setupRuntime builds a runtime over a temporary base directory.
func setupRuntime(t *testing.T) *core.Runtime {
	t.Helper()
	tmpDir := t.TempDir()
	database, err := db.Init(tmpDir)
	if err != nil {
		t.Fatalf("failed to init test db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	cfg := config.DefaultConfig()
	cfg.AdminDigestHex = digestOf(testCredential)

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	rt, err := core.New(tmpDir, cfg, database, logger)
	if err != nil {
		t.Fatalf("failed to build runtime: %v", err)
	}
	return rt
}

// runCLI executes the app with the given args, capturing stdout.
func runCLI(t *testing.T, rt *core.Runtime, args ...string) (string, error) {
	t.Helper()
	app := newCLIApp(rt)

	oldStdout := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	err := app.Run(append([]string{"arbiter"}, args...))

	w.Close()
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(r)
	os.Stdout = oldStdout

	return buf.String(), err
}

// runCLIWithStdin executes the app with stdin replaced by the given text.
func runCLIWithStdin(t *testing.T, rt *core.Runtime, stdin string, args ...string) (string, error) {
	t.Helper()
	oldStdin := os.Stdin
	stdinR, stdinW, _ := os.Pipe()
	os.Stdin = stdinR

	go func() {
		_, _ = stdinW.WriteString(stdin)
		stdinW.Close()
	}()

	out, err := runCLI(t, rt, args...)
	os.Stdin = oldStdin
	return out, err
}

// TestCLIMessage tests the message command.
func TestCLIMessage(t *testing.T) {
	rt := setupRuntime(t)

	out, err := runCLI(t, rt, "message", "please", "switch", "to", "companion")
	if err != nil {
		t.Fatalf("message command failed: %v", err)
	}

	var output struct {
		Transition struct {
			FromMode string `json:"from_mode"`
			ToMode   string `json:"to_mode"`
		} `json:"transition"`
		EffectiveMode string `json:"effective_mode"`
	}
	if err := json.Unmarshal([]byte(out), &output); err != nil {
		t.Fatalf("failed to parse output: %v\nOutput: %s", err, out)
	}

	if output.Transition.FromMode != "default" {
		t.Errorf("expected from_mode=default, got %s", output.Transition.FromMode)
	}
	if output.Transition.ToMode != "companion" {
		t.Errorf("expected to_mode=companion, got %s", output.Transition.ToMode)
	}
	if output.EffectiveMode != "companion" {
		t.Errorf("expected effective_mode=companion, got %s", output.EffectiveMode)
	}
}

// TestCLIElevate tests credential verification via the elevate command.
func TestCLIElevate(t *testing.T) {
	rt := setupRuntime(t)

	t.Run("wrong credential rejected", func(t *testing.T) {
		_, err := runCLI(t, rt, "elevate", "--credential=nope")
		if err == nil {
			t.Fatal("expected error for wrong credential")
		}
		if !strings.Contains(err.Error(), "AUTH_REJECTED") {
			t.Errorf("expected AUTH_REJECTED, got: %v", err)
		}
	})

	t.Run("correct credential opens session", func(t *testing.T) {
		out, err := runCLI(t, rt, "elevate", "--credential="+testCredential)
		if err != nil {
			t.Fatalf("elevate command failed: %v", err)
		}
		var output struct {
			Success   bool    `json:"success"`
			ExpiresAt *string `json:"expires_at"`
		}
		if err := json.Unmarshal([]byte(out), &output); err != nil {
			t.Fatalf("failed to parse output: %v", err)
		}
		if !output.Success {
			t.Error("expected success=true")
		}
		if output.ExpiresAt == nil {
			t.Error("expected expires_at to be set")
		}
		if !rt.Session.IsValid() {
			t.Error("expected valid session after elevation")
		}
	})
}

// TestCLIStatus tests the status command before and after elevation.
func TestCLIStatus(t *testing.T) {
	rt := setupRuntime(t)

	out, err := runCLI(t, rt, "status")
	if err != nil {
		t.Fatalf("status command failed: %v", err)
	}

	var status struct {
		ConversationalMode string   `json:"conversational_mode"`
		EffectiveMode      string   `json:"effective_mode"`
		SessionValid       bool     `json:"session_valid"`
		Capabilities       []string `json:"capabilities"`
	}
	if err := json.Unmarshal([]byte(out), &status); err != nil {
		t.Fatalf("failed to parse output: %v", err)
	}
	if status.EffectiveMode != "default" {
		t.Errorf("expected effective_mode=default, got %s", status.EffectiveMode)
	}
	if status.SessionValid {
		t.Error("expected session_valid=false")
	}

	if res := rt.Elevate(testCredential); !res.Success {
		t.Fatal("elevation failed")
	}

	out, err = runCLI(t, rt, "status")
	if err != nil {
		t.Fatalf("status command failed: %v", err)
	}
	if err := json.Unmarshal([]byte(out), &status); err != nil {
		t.Fatalf("failed to parse output: %v", err)
	}
	if status.EffectiveMode != "privileged" {
		t.Errorf("expected effective_mode=privileged, got %s", status.EffectiveMode)
	}
	if status.ConversationalMode != "default" {
		t.Errorf("expected conversational_mode=default, got %s", status.ConversationalMode)
	}
}

// TestCLIScreen tests the screen command.
func TestCLIScreen(t *testing.T) {
	rt := setupRuntime(t)

	t.Run("clean text passes", func(t *testing.T) {
		out, err := runCLI(t, rt, "screen", "here", "is", "the", "build", "summary")
		if err != nil {
			t.Fatalf("screen command failed: %v", err)
		}
		var output struct {
			Outcome string `json:"outcome"`
		}
		if err := json.Unmarshal([]byte(out), &output); err != nil {
			t.Fatalf("failed to parse output: %v", err)
		}
		if output.Outcome != "pass" {
			t.Errorf("expected outcome=pass, got %s", output.Outcome)
		}
	})

	t.Run("tone violation outside companion", func(t *testing.T) {
		out, err := runCLI(t, rt, "screen", "I", "love", "you")
		if err != nil {
			t.Fatalf("screen command failed: %v", err)
		}
		var output struct {
			Outcome string `json:"outcome"`
		}
		if err := json.Unmarshal([]byte(out), &output); err != nil {
			t.Fatalf("failed to parse output: %v", err)
		}
		if output.Outcome != "tone-violation" {
			t.Errorf("expected outcome=tone-violation, got %s", output.Outcome)
		}
	})

	t.Run("companion mode allows warm tone", func(t *testing.T) {
		out, err := runCLI(t, rt, "screen", "--mode=companion", "I", "love", "you")
		if err != nil {
			t.Fatalf("screen command failed: %v", err)
		}
		var output struct {
			Outcome string `json:"outcome"`
		}
		if err := json.Unmarshal([]byte(out), &output); err != nil {
			t.Fatalf("failed to parse output: %v", err)
		}
		if output.Outcome != "pass" {
			t.Errorf("expected outcome=pass, got %s", output.Outcome)
		}
	})
}

// TestCLICapabilities tests the capabilities command.
func TestCLICapabilities(t *testing.T) {
	rt := setupRuntime(t)

	out, err := runCLI(t, rt, "capabilities", "--mode=companion")
	if err != nil {
		t.Fatalf("capabilities command failed: %v", err)
	}

	var output struct {
		Mode         string   `json:"mode"`
		Capabilities []string `json:"capabilities"`
	}
	if err := json.Unmarshal([]byte(out), &output); err != nil {
		t.Fatalf("failed to parse output: %v", err)
	}
	if output.Mode != "companion" {
		t.Errorf("expected mode=companion, got %s", output.Mode)
	}
	found := false
	for _, c := range output.Capabilities {
		if c == "gentle_suggestion" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected gentle_suggestion in companion capabilities, got %v", output.Capabilities)
	}
}

// TestCLINoteAndRecall tests the memory commands.
func TestCLINoteAndRecall(t *testing.T) {
	rt := setupRuntime(t)

	if _, err := runCLI(t, rt, "note", "the", "deploy", "key", "rotates", "monthly"); err != nil {
		t.Fatalf("note command failed: %v", err)
	}

	out, err := runCLI(t, rt, "recall", "deploy")
	if err != nil {
		t.Fatalf("recall command failed: %v", err)
	}

	var output struct {
		Matches []string `json:"matches"`
		Count   int      `json:"count"`
	}
	if err := json.Unmarshal([]byte(out), &output); err != nil {
		t.Fatalf("failed to parse output: %v", err)
	}
	if output.Count != 1 {
		t.Fatalf("expected 1 match, got %d", output.Count)
	}
	if !strings.Contains(output.Matches[0], "deploy key") {
		t.Errorf("expected note text in match, got %q", output.Matches[0])
	}
}

// TestCLIPropose tests the propose subcommands.
func TestCLIPropose(t *testing.T) {
	rt := setupRuntime(t)

	out, err := runCLI(t, rt, "propose", "generate", "add retry logic to the database layer")
	if err != nil {
		t.Fatalf("propose generate failed: %v", err)
	}

	var prop proposal.Proposal
	if err := json.Unmarshal([]byte(out), &prop); err != nil {
		t.Fatalf("failed to parse output: %v", err)
	}
	if prop.Title == "" {
		t.Error("expected non-empty title")
	}
	if len(prop.Phases) != 3 {
		t.Errorf("expected 3 phases, got %d", len(prop.Phases))
	}

	out, err = runCLIWithStdin(t, rt, "## Change\n\nWiden the tone list.",
		"propose", "stage", "--target=guardrails", "--rationale=tone list too narrow")
	if err != nil {
		t.Fatalf("propose stage failed: %v", err)
	}
	var staged struct {
		Staged string `json:"staged"`
	}
	if err := json.Unmarshal([]byte(out), &staged); err != nil {
		t.Fatalf("failed to parse output: %v", err)
	}
	if staged.Staged == "" {
		t.Error("expected staged path")
	}

	out, err = runCLI(t, rt, "propose", "list")
	if err != nil {
		t.Fatalf("propose list failed: %v", err)
	}
	var listing struct {
		Proposals []string `json:"proposals"`
		Count     int      `json:"count"`
	}
	if err := json.Unmarshal([]byte(out), &listing); err != nil {
		t.Fatalf("failed to parse output: %v", err)
	}
	if listing.Count != 1 {
		t.Fatalf("expected 1 staged proposal, got %d", listing.Count)
	}

	out, err = runCLI(t, rt, "propose", "read", listing.Proposals[0])
	if err != nil {
		t.Fatalf("propose read failed: %v", err)
	}
	if !strings.Contains(out, "PENDING OPERATOR REVIEW") {
		t.Error("expected review banner in staged proposal")
	}
}

// TestCLIDiag tests the diag command's capability gating.
func TestCLIDiag(t *testing.T) {
	rt := setupRuntime(t)

	t.Run("rejected without elevation", func(t *testing.T) {
		_, err := runCLI(t, rt, "diag")
		if err == nil {
			t.Fatal("expected capability violation")
		}
		if !strings.Contains(err.Error(), "CAPABILITY_VIOLATION") {
			t.Errorf("expected CAPABILITY_VIOLATION, got: %v", err)
		}
	})

	t.Run("snapshot with inline credential", func(t *testing.T) {
		out, err := runCLI(t, rt, "diag", "--credential="+testCredential)
		if err != nil {
			t.Fatalf("diag command failed: %v", err)
		}
		var snapshot struct {
			StateStability string `json:"state_stability"`
		}
		if err := json.Unmarshal([]byte(out), &snapshot); err != nil {
			t.Fatalf("failed to parse output: %v", err)
		}
		if snapshot.StateStability != "stable" {
			t.Errorf("expected state_stability=stable, got %s", snapshot.StateStability)
		}
	})

	t.Run("constraint audit", func(t *testing.T) {
		out, err := runCLI(t, rt, "diag", "--constraints", "--credential="+testCredential)
		if err != nil {
			t.Fatalf("diag command failed: %v", err)
		}
		var report struct {
			DriftDetected bool   `json:"drift_detected"`
			Summary       string `json:"summary"`
		}
		if err := json.Unmarshal([]byte(out), &report); err != nil {
			t.Fatalf("failed to parse output: %v", err)
		}
		if report.DriftDetected {
			t.Error("expected no drift on a healthy runtime")
		}
	})
}

// TestCLITerminate tests the terminate command.
func TestCLITerminate(t *testing.T) {
	rt := setupRuntime(t)
	if res := rt.Elevate(testCredential); !res.Success {
		t.Fatal("elevation failed")
	}

	out, err := runCLI(t, rt, "terminate")
	if err != nil {
		t.Fatalf("terminate command failed: %v", err)
	}

	var output struct {
		Terminated    bool   `json:"terminated"`
		EffectiveMode string `json:"effective_mode"`
	}
	if err := json.Unmarshal([]byte(out), &output); err != nil {
		t.Fatalf("failed to parse output: %v", err)
	}
	if !output.Terminated {
		t.Error("expected terminated=true")
	}
	if output.EffectiveMode != "default" {
		t.Errorf("expected effective_mode=default, got %s", output.EffectiveMode)
	}
	if rt.Session.IsValid() {
		t.Error("expected invalid session after terminate")
	}
}

// TestCLIAudit tests the audit command.
func TestCLIAudit(t *testing.T) {
	rt := setupRuntime(t)
	rt.Elevate("wrong-credential")

	out, err := runCLI(t, rt, "audit", "--kind=elevation-failure")
	if err != nil {
		t.Fatalf("audit command failed: %v", err)
	}

	var output struct {
		Events []json.RawMessage `json:"events"`
		Total  int               `json:"total"`
	}
	if err := json.Unmarshal([]byte(out), &output); err != nil {
		t.Fatalf("failed to parse output: %v", err)
	}
	if output.Total != 1 {
		t.Errorf("expected 1 elevation-failure event, got %d", output.Total)
	}
}

// TestCLIPrompt tests the prompt command.
func TestCLIPrompt(t *testing.T) {
	rt := setupRuntime(t)

	out, err := runCLI(t, rt, "prompt")
	if err != nil {
		t.Fatalf("prompt command failed: %v", err)
	}
	if !strings.Contains(out, "# Ariadne") {
		t.Error("expected baseline header in default prompt")
	}
	if strings.Contains(out, "Companion register") {
		t.Error("did not expect companion layer in default prompt")
	}

	out, err = runCLI(t, rt, "prompt", "--mode=companion")
	if err != nil {
		t.Fatalf("prompt command failed: %v", err)
	}
	if !strings.Contains(out, "Companion register") {
		t.Error("expected companion layer in companion prompt")
	}
}

// TestIsCLIMode tests subcommand detection.
func TestIsCLIMode(t *testing.T) {
	oldArgs := os.Args
	defer func() { os.Args = oldArgs }()

	tests := []struct {
		name     string
		args     []string
		expected bool
	}{
		{"no args", []string{"arbiter"}, false},
		{"known command", []string{"arbiter", "status"}, true},
		{"subcommanded", []string{"arbiter", "propose", "list"}, true},
		{"help flag", []string{"arbiter", "--help"}, true},
		{"version flag", []string{"arbiter", "-v"}, true},
		{"unknown arg", []string{"arbiter", "bogus"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Args = tt.args
			if got := isCLIMode(); got != tt.expected {
				t.Errorf("isCLIMode() = %v, want %v", got, tt.expected)
			}
		})
	}
}
