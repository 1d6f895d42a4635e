package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hpungsan/arbiter/internal/core"
)

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"message": {
		def:     messageToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleMessage },
	},
	"memory_query": {
		def:     memoryQueryToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleMemoryQuery },
	},
	"memory_write": {
		def:     memoryWriteToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleMemoryWrite },
	},
	"proposal_generate": {
		def:     proposalGenerateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleProposalGenerate },
	},
	"proposal_validate": {
		def:     proposalValidateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleProposalValidate },
	},
	"proposal_stage": {
		def:     proposalStageToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleProposalStage },
	},
	"gentle_suggestion": {
		def:     gentleSuggestionToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleGentleSuggestion },
	},
	"system_diagnostics": {
		def:     systemDiagnosticsToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSystemDiagnostics },
	},
	"state_override": {
		def:     stateOverrideToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleStateOverride },
	},
	"constraint_audit": {
		def:     constraintAuditToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleConstraintAudit },
	},
	"session_elevate": {
		def:     sessionElevateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSessionElevate },
	},
	"session_terminate": {
		def:     sessionTerminateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSessionTerminate },
	},
	"session_status": {
		def:     sessionStatusToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSessionStatus },
	},
	"output_screen": {
		def:     outputScreenToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleOutputScreen },
	},
	"prompt_compose": {
		def:     promptComposeToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandlePromptCompose },
	},
}

// AllToolNames returns a list of all valid tool names.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	return names
}

// ValidateDisabledTools returns a list of unknown tool names from the given list.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// NewServer creates a new MCP server with the governance tools registered.
// Tools listed in the runtime config's DisabledTools are excluded from
// registration.
func NewServer(rt *core.Runtime, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"arbiter",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(rt)

	disabled := make(map[string]bool)
	for _, name := range rt.Cfg.DisabledTools {
		disabled[name] = true
	}

	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// Run starts the MCP server using stdio transport.
func Run(rt *core.Runtime, version string) error {
	s := NewServer(rt, version)
	return server.ServeStdio(s)
}
