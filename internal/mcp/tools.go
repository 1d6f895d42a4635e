package mcp

import "github.com/mark3labs/mcp-go/mcp"

// Tool definitions. Names match the capability names in the registry where
// a tool is capability-gated; the session and mode tools are the governance
// surface itself and are not gated.

var messageToolDef = mcp.NewTool("message",
	mcp.WithDescription("Run a user message through the mode transition engine. Returns the transition record and the mode now in effect. Never enters or exits the privileged mode."),
	mcp.WithString("input",
		mcp.Required(),
		mcp.Description("The user message text"),
	),
)

var memoryQueryToolDef = mcp.NewTool("memory_query",
	mcp.WithDescription("Search the persistent notes file for entries containing the query string (case-insensitive). An empty query returns no results."),
	mcp.WithString("query",
		mcp.Required(),
		mcp.Description("Substring to search for"),
	),
)

var memoryWriteToolDef = mcp.NewTool("memory_write",
	mcp.WithDescription("Append a timestamped note to the persistent notes file. Append-only; existing notes are never modified."),
	mcp.WithString("note",
		mcp.Required(),
		mcp.Description("The note text to append"),
	),
)

var proposalGenerateToolDef = mcp.NewTool("proposal_generate",
	mcp.WithDescription("Decompose a task description into a structured proposal with a three-phase plan, inferred resources, and validation gates."),
	mcp.WithString("task_description",
		mcp.Required(),
		mcp.Description("Free-text description of the work to be done"),
	),
)

var proposalValidateToolDef = mcp.NewTool("proposal_validate",
	mcp.WithDescription("Validate a structured proposal against the proposal schema. Returns a report with errors, warnings, and overall validity."),
	mcp.WithObject("proposal",
		mcp.Required(),
		mcp.Description("A proposal object as produced by proposal_generate"),
	),
)

var proposalStageToolDef = mcp.NewTool("proposal_stage",
	mcp.WithDescription("Stage a configuration change proposal for operator review. The proposal is written to the proposals directory and NEVER applied automatically. Allowed targets: core-identity, operational-baseline, companion-mode, guardrails, state-machine."),
	mcp.WithString("target",
		mcp.Required(),
		mcp.Description("The configuration section the proposal addresses"),
	),
	mcp.WithString("rationale",
		mcp.Required(),
		mcp.Description("Why this change is proposed"),
	),
	mcp.WithString("content",
		mcp.Required(),
		mcp.Description("The proposed new content or patch description"),
	),
)

var gentleSuggestionToolDef = mcp.NewTool("gentle_suggestion",
	mcp.WithDescription("Produce a short supportive suggestion grounded in the given context. Companion mode only; the output is screened before it is returned."),
	mcp.WithString("context",
		mcp.Description("Recent conversational context to ground the suggestion"),
	),
)

var systemDiagnosticsToolDef = mcp.NewTool("system_diagnostics",
	mcp.WithDescription("Collect a health snapshot: state stability, memory stats, capability availability, constraint status, and uptime. Privileged only."),
)

var stateOverrideToolDef = mcp.NewTool("state_override",
	mcp.WithDescription("Force the conversational mode to a target, re-verifying the operator credential. The override is recorded in the notes file. Privileged only; the privileged mode itself cannot be a target."),
	mcp.WithString("target_mode",
		mcp.Required(),
		mcp.Description("The mode to switch to: default or companion"),
	),
	mcp.WithString("credential",
		mcp.Required(),
		mcp.Description("The operator credential, re-verified before the override is applied"),
	),
)

var constraintAuditToolDef = mcp.NewTool("constraint_audit",
	mcp.WithDescription("Audit every declared constraint against the live runtime and report drift. Privileged only."),
)

var sessionElevateToolDef = mcp.NewTool("session_elevate",
	mcp.WithDescription("Present the operator credential to open a timed privileged session. Every attempt is audited; failures reveal nothing about the cause."),
	mcp.WithString("credential",
		mcp.Required(),
		mcp.Description("The operator credential"),
	),
)

var sessionTerminateToolDef = mcp.NewTool("session_terminate",
	mcp.WithDescription("Close the privileged session immediately. Safe to call when no session exists."),
)

var sessionStatusToolDef = mcp.NewTool("session_status",
	mcp.WithDescription("Report the conversational mode, the effective mode, session validity and expiry, and the capabilities available right now."),
)

var outputScreenToolDef = mcp.NewTool("output_screen",
	mcp.WithDescription("Screen generated text against the banned-content and tone lists for the effective mode. Returns the text to show the user and the outcome classification."),
	mcp.WithString("text",
		mcp.Required(),
		mcp.Description("The generated text to screen"),
	),
)

var promptComposeToolDef = mcp.NewTool("prompt_compose",
	mcp.WithDescription("Compose the layered system prompt for the effective mode: context header, baseline layer, plus the companion additive layer or the privileged template."),
)
