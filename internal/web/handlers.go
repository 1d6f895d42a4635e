package web

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hpungsan/arbiter/internal/core"
	"github.com/hpungsan/arbiter/internal/db"
	"github.com/hpungsan/arbiter/internal/errors"
)

// Handlers contains HTTP route handlers for the operator console. The
// console is read-only except for session termination, which is the
// operator's emergency stop.
type Handlers struct {
	rt       *core.Runtime
	renderer *Renderer
}

// HandleStatus handles GET /status — mode, session, and health overview.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	effective := h.rt.EffectiveMode()
	caps, err := h.rt.Registry.Capabilities(effective)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	expiresAt := ""
	if expiry := h.rt.Session.ExpiresAt(); expiry != nil && h.rt.Session.IsValid() {
		expiresAt = expiry.UTC().Format(time.RFC3339)
	}

	snapshot := h.rt.Diag.Snapshot()
	report := h.rt.Diag.AuditConstraints()

	h.renderer.renderPage(w, r, "status", StatusPageData{
		PageData: PageData{
			Title:   "Status",
			Version: h.renderer.version,
			Nav:     "status",
		},
		ConversationalMode: string(h.rt.State.Current()),
		EffectiveMode:      string(effective),
		SessionValid:       h.rt.Session.IsValid(),
		SessionExpiresAt:   expiresAt,
		Capabilities:       caps,
		Snapshot:           snapshot,
		Constraints:        report.Constraints,
		DriftDetected:      report.DriftDetected,
	})
}

// HandleAudit handles GET /audit — the persisted audit trail.
func (h *Handlers) HandleAudit(w http.ResponseWriter, r *http.Request) {
	kind := r.URL.Query().Get("kind")
	limit := parseIntParam(r, "limit", 50)
	offset := parseIntParam(r, "offset", 0)

	entries, err := db.ListEvents(h.rt.DB, kind, limit, offset)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	total, err := db.CountEvents(h.rt.DB, kind)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.renderer.renderPage(w, r, "audit", AuditPageData{
		PageData: PageData{
			Title:   "Audit",
			Version: h.renderer.version,
			Nav:     "audit",
		},
		Entries: toAuditRows(entries),
		Kind:    kind,
		Limit:   limit,
		Offset:  offset,
		Total:   total,
	})
}

// HandleNotes handles GET /notes — the memory notes file rendered as HTML.
func (h *Handlers) HandleNotes(w http.ResponseWriter, r *http.Request) {
	stats := h.rt.Memory.Stat()

	data := NotesPageData{
		PageData: PageData{
			Title:   "Notes",
			Version: h.renderer.version,
			Nav:     "notes",
		},
		NotesExist: stats.NotesExist,
	}

	if stats.NotesExist {
		content, err := h.rt.Memory.Content()
		if err != nil {
			h.renderer.renderError(w, r, err)
			return
		}
		data.RenderedHTML = renderMarkdown(content)
	}

	h.renderer.renderPage(w, r, "notes", data)
}

// HandleProposals handles GET /proposals — staged proposal listing.
func (h *Handlers) HandleProposals(w http.ResponseWriter, r *http.Request) {
	names, err := h.rt.Proposals.List()
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.renderer.renderPage(w, r, "proposals", ProposalsPageData{
		PageData: PageData{
			Title:   "Proposals",
			Version: h.renderer.version,
			Nav:     "proposals",
		},
		Names: names,
	})
}

// HandleProposal handles GET /proposals/{name} — view one staged proposal.
func (h *Handlers) HandleProposal(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("proposal name is required"))
		return
	}

	content, err := h.rt.Proposals.Read(name)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.renderer.renderPage(w, r, "proposal", ProposalPageData{
		PageData: PageData{
			Title:   name,
			Version: h.renderer.version,
			Nav:     "proposals",
		},
		Name:         name,
		RenderedHTML: renderMarkdown(content),
	})
}

// HandleTerminate handles POST /session/terminate — the emergency stop.
func (h *Handlers) HandleTerminate(w http.ResponseWriter, r *http.Request) {
	h.rt.Session.Terminate()

	// HTMX request: redirect via HX-Redirect header
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", "/status")
		w.WriteHeader(http.StatusOK)
		return
	}

	// JSON request
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		renderJSON(w, http.StatusOK, map[string]any{
			"terminated":     true,
			"effective_mode": h.rt.EffectiveMode(),
		})
		return
	}

	// Default: redirect
	http.Redirect(w, r, "/status", http.StatusFound)
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}
