package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/arbiter/internal/auth"
	"github.com/hpungsan/arbiter/internal/composer"
	"github.com/hpungsan/arbiter/internal/core"
	"github.com/hpungsan/arbiter/internal/errors"
	"github.com/hpungsan/arbiter/internal/guardrail"
	"github.com/hpungsan/arbiter/internal/mode"
	"github.com/hpungsan/arbiter/internal/proposal"
	"github.com/hpungsan/arbiter/internal/registry"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	rt *core.Runtime
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(rt *core.Runtime) *Handlers {
	return &Handlers{rt: rt}
}

// Request types for each tool

// MessageRequest represents the arguments for message.
type MessageRequest struct {
	Input string `json:"input"`
}

// MemoryQueryRequest represents the arguments for memory_query.
type MemoryQueryRequest struct {
	Query string `json:"query"`
}

// MemoryWriteRequest represents the arguments for memory_write.
type MemoryWriteRequest struct {
	Note string `json:"note"`
}

// ProposalGenerateRequest represents the arguments for proposal_generate.
type ProposalGenerateRequest struct {
	TaskDescription string `json:"task_description"`
}

// ProposalValidateRequest represents the arguments for proposal_validate.
type ProposalValidateRequest struct {
	Proposal proposal.Proposal `json:"proposal"`
}

// ProposalStageRequest represents the arguments for proposal_stage.
type ProposalStageRequest struct {
	Target    string `json:"target"`
	Rationale string `json:"rationale"`
	Content   string `json:"content"`
}

// GentleSuggestionRequest represents the arguments for gentle_suggestion.
type GentleSuggestionRequest struct {
	Context string `json:"context"`
}

// StateOverrideRequest represents the arguments for state_override.
type StateOverrideRequest struct {
	TargetMode string `json:"target_mode"`
	Credential string `json:"credential"`
}

// ElevateRequest represents the arguments for session_elevate.
type ElevateRequest struct {
	Credential string `json:"credential"`
}

// ScreenRequest represents the arguments for output_screen.
type ScreenRequest struct {
	Text string `json:"text"`
}

// Handler implementations

// HandleMessage runs the transition engine over a user message.
func (h *Handlers) HandleMessage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[MessageRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	transition := h.rt.Advance(input.Input)
	return successResult(map[string]any{
		"transition":     transition,
		"effective_mode": h.rt.EffectiveMode(),
	})
}

// HandleMemoryQuery handles the memory_query tool call.
func (h *Handlers) HandleMemoryQuery(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[MemoryQueryRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	if _, err := h.rt.Guard.Check(registry.CapMemoryQuery, h.rt.EffectiveMode(), input); err != nil {
		return errorResult(err), nil
	}

	matches, err := h.rt.Memory.Query(input.Query)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(map[string]any{"matches": matches, "count": len(matches)})
}

// HandleMemoryWrite handles the memory_write tool call.
func (h *Handlers) HandleMemoryWrite(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[MemoryWriteRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	if _, err := h.rt.Guard.Check(registry.CapMemoryWrite, h.rt.EffectiveMode(), input); err != nil {
		return errorResult(err), nil
	}

	if err := h.rt.Memory.Append(input.Note); err != nil {
		return errorResult(err), nil
	}

	return successResult(map[string]any{"written": true})
}

// HandleProposalGenerate handles the proposal_generate tool call.
func (h *Handlers) HandleProposalGenerate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ProposalGenerateRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	if _, err := h.rt.Guard.Check(registry.CapProposalGenerate, h.rt.EffectiveMode(), input); err != nil {
		return errorResult(err), nil
	}

	p, err := h.rt.Proposals.Generate(input.TaskDescription)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(p)
}

// HandleProposalValidate handles the proposal_validate tool call.
func (h *Handlers) HandleProposalValidate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ProposalValidateRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	if _, err := h.rt.Guard.Check(registry.CapProposalValidate, h.rt.EffectiveMode(), input); err != nil {
		return errorResult(err), nil
	}

	return successResult(h.rt.Proposals.Validate(input.Proposal))
}

// HandleProposalStage handles the proposal_stage tool call.
func (h *Handlers) HandleProposalStage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ProposalStageRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	if _, err := h.rt.Guard.Check(registry.CapProposalStage, h.rt.EffectiveMode(), input); err != nil {
		return errorResult(err), nil
	}

	path, err := h.rt.Proposals.Stage(input.Target, input.Rationale, input.Content)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(map[string]any{
		"path":    path,
		"message": "proposal staged; awaiting operator review",
	})
}

// HandleGentleSuggestion handles the gentle_suggestion tool call. The
// produced text goes through the guardrail like any other output.
func (h *Handlers) HandleGentleSuggestion(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[GentleSuggestionRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	current := h.rt.EffectiveMode()
	if _, err := h.rt.Guard.Check(registry.CapGentleSuggestion, current, input); err != nil {
		return errorResult(err), nil
	}

	text := composer.GentleSuggestion(input.Context)
	screened, outcome := h.rt.Guardrail.Screen(text, current)

	return successResult(map[string]any{
		"suggestion": screened,
		"outcome":    outcome,
	})
}

// HandleSystemDiagnostics handles the system_diagnostics tool call.
func (h *Handlers) HandleSystemDiagnostics(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if _, err := h.rt.Guard.Check(registry.CapSystemDiag, h.rt.EffectiveMode(), nil); err != nil {
		return errorResult(err), nil
	}

	return successResult(h.rt.Diag.Snapshot())
}

// HandleStateOverride handles the state_override tool call. The credential
// is re-verified even inside a valid session, and both outcomes are
// recorded in the notes file.
func (h *Handlers) HandleStateOverride(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[StateOverrideRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	if _, err := h.rt.Guard.Check(registry.CapStateOverride, h.rt.EffectiveMode(), nil); err != nil {
		return errorResult(err), nil
	}

	target, err := mode.Parse(input.TargetMode)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(fmt.Sprintf("unknown target mode %q", input.TargetMode))), nil
	}
	if target == mode.Privileged {
		return errorResult(errors.NewInvalidRequest("the privileged mode is entered only via elevation")), nil
	}

	// Pure credential verification: no session side effects, the elevation
	// window is untouched either way.
	if _, err := auth.Elevate(input.Credential, h.rt.Cfg.AdminDigestHex); err != nil {
		h.auditOverride("OVERRIDE_REJECTED", target, "invalid credential")
		return errorResult(errors.NewAuthRejected()), nil
	}

	h.rt.State.Set(target)
	h.auditOverride("OVERRIDE_APPLIED", target, "authorized")

	return successResult(map[string]any{
		"status":  "ok",
		"message": fmt.Sprintf("state override to %q authorized and logged", target),
	})
}

func (h *Handlers) auditOverride(event string, target mode.Mode, outcome string) {
	note := fmt.Sprintf("[admin-audit]\nEVENT: %s\nTARGET_STATE: %s\nOUTCOME: %s", event, target, outcome)
	// Fire-and-forget: a failed note write must not block the override path.
	_ = h.rt.Memory.Append(note)
}

// HandleConstraintAudit handles the constraint_audit tool call.
func (h *Handlers) HandleConstraintAudit(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if _, err := h.rt.Guard.Check(registry.CapConstraintAudit, h.rt.EffectiveMode(), nil); err != nil {
		return errorResult(err), nil
	}

	return successResult(h.rt.Diag.AuditConstraints())
}

// HandleSessionElevate handles the session_elevate tool call.
func (h *Handlers) HandleSessionElevate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ElevateRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	res := h.rt.Elevate(input.Credential)
	if !res.Success {
		return errorResult(errors.NewAuthRejected()), nil
	}

	return successResult(res)
}

// HandleSessionTerminate handles the session_terminate tool call.
func (h *Handlers) HandleSessionTerminate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	h.rt.Session.Terminate()
	return successResult(map[string]any{
		"terminated":     true,
		"effective_mode": h.rt.EffectiveMode(),
	})
}

// HandleSessionStatus handles the session_status tool call.
func (h *Handlers) HandleSessionStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	effective := h.rt.EffectiveMode()
	caps, err := h.rt.Registry.Capabilities(effective)
	if err != nil {
		return errorResult(err), nil
	}

	status := map[string]any{
		"conversational_mode": h.rt.State.Current(),
		"effective_mode":      effective,
		"session_valid":       h.rt.Session.IsValid(),
		"capabilities":        caps,
	}
	if expiry := h.rt.Session.ExpiresAt(); expiry != nil && h.rt.Session.IsValid() {
		status["session_expires_at"] = expiry.UTC().Format(time.RFC3339)
	}

	return successResult(status)
}

// HandleOutputScreen handles the output_screen tool call.
func (h *Handlers) HandleOutputScreen(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ScreenRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	text, outcome := h.rt.Guardrail.Screen(input.Text, h.rt.EffectiveMode())
	return successResult(map[string]any{
		"text":    text,
		"outcome": outcome,
		"blocked": outcome != guardrail.OutcomePass,
	})
}

// HandlePromptCompose handles the prompt_compose tool call.
func (h *Handlers) HandlePromptCompose(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	prompt, err := h.rt.Composer.ComposePrompt(h.rt.EffectiveMode())
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(map[string]any{
		"mode":   h.rt.EffectiveMode(),
		"prompt": prompt,
	})
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Note: Internal error details are not exposed to prevent leaking sensitive info.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	if aErr, ok := err.(*errors.ArbiterError); ok {
		errorObj := map[string]any{
			"code":    aErr.Code,
			"message": aErr.Message,
			"status":  aErr.Status,
		}
		// Only include details for non-internal errors to avoid leaking
		// sensitive info like file paths or SQL errors
		if aErr.Code != errors.ErrInternal && aErr.Details != nil {
			errorObj["details"] = aErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
