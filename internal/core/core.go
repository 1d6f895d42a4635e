// Package core wires the governance components into one per-process
// runtime shared by the MCP server, the web console, and the CLI.
package core

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/hpungsan/arbiter/internal/audit"
	"github.com/hpungsan/arbiter/internal/auth"
	"github.com/hpungsan/arbiter/internal/composer"
	"github.com/hpungsan/arbiter/internal/config"
	"github.com/hpungsan/arbiter/internal/db"
	"github.com/hpungsan/arbiter/internal/diag"
	"github.com/hpungsan/arbiter/internal/errors"
	"github.com/hpungsan/arbiter/internal/guard"
	"github.com/hpungsan/arbiter/internal/guardrail"
	"github.com/hpungsan/arbiter/internal/memory"
	"github.com/hpungsan/arbiter/internal/mode"
	"github.com/hpungsan/arbiter/internal/proposal"
	"github.com/hpungsan/arbiter/internal/registry"
	"github.com/hpungsan/arbiter/internal/session"
)

// DefaultPromptSections is the built-in prompt layer text, overridable per
// layer via config.
var DefaultPromptSections = map[string]string{
	composer.SectionBaseline: "# Ariadne\n" +
		"You are Ariadne, a task-oriented assistant. Stay precise, stay\n" +
		"grounded, and keep responses scoped to the work at hand.\n",
	composer.SectionCompanionAdditive: "# Companion register\n" +
		"The user has asked for companion mode. Warmth and encouragement\n" +
		"are appropriate here. Task discipline still applies.\n",
	composer.SectionPrivileged: "# Administrative session\n" +
		"An operator session is active. Respond only to diagnostic and\n" +
		"maintenance requests. Do not produce conversational output.\n",
}

// Runtime holds one process's governance components.
type Runtime struct {
	Cfg       *config.Config
	DB        *sql.DB
	Sink      audit.Sink
	State     *mode.State
	Detector  *mode.Detector
	Registry  *registry.Registry
	Session   *session.Manager
	Guard     *guard.Guard
	Guardrail *guardrail.Guardrail
	Composer  *composer.Composer
	Memory    *memory.Store
	Proposals *proposal.Service
	Diag      *diag.Service
}

// New builds a runtime from validated configuration. Construction fails on
// any configuration defect: a malformed stored digest, a capability grant
// that breaks the mode invariants.
func New(baseDir string, cfg *config.Config, database *sql.DB, logger *slog.Logger) (*Runtime, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.AdminDigestHex != "" {
		if err := auth.ValidateDigest(cfg.AdminDigestHex); err != nil {
			return nil, err
		}
	}

	reg, err := registry.NewWithOverrides(cfg.ExtraCapabilities, cfg.DisabledCapabilities)
	if err != nil {
		return nil, err
	}

	sink := audit.NewMultiSink(audit.NewSlogSink(logger), db.NewSink(database, logger))

	sections := composer.MapSource{}
	for name, text := range DefaultPromptSections {
		sections[name] = text
	}
	for name, text := range cfg.PromptSections {
		if _, ok := DefaultPromptSections[name]; !ok {
			return nil, errors.NewConfiguration("unknown prompt section " + name)
		}
		sections[name] = text
	}

	comp := composer.New(sections)
	comp.SetProjectContext(cfg.ProjectContext)

	mem := memory.NewStore(baseDir)
	props := proposal.NewService(baseDir)
	rail := guardrail.NewWithLists(cfg.ExtraBannedPatterns, cfg.ExtraTonePatterns)

	return &Runtime{
		Cfg:       cfg,
		DB:        database,
		Sink:      sink,
		State:     mode.NewState(),
		Detector:  mode.NewDetectorWithLists(cfg.CompanionPhrases, cfg.TaskIndicators),
		Registry:  reg,
		Session:   session.NewManager(sink, session.WithTTL(cfg.SessionTTL())),
		Guard:     guard.New(reg, sink),
		Guardrail: rail,
		Composer:  comp,
		Memory:    mem,
		Proposals: props,
		Diag:      diag.NewService(reg, rail, mem, props),
	}, nil
}

// EffectiveMode is the mode the guard and guardrail consult. A valid
// elevation window overlays the conversational mode with privileged; the
// conversational mode underneath is untouched and reappears when the
// window closes.
func (r *Runtime) EffectiveMode() mode.Mode {
	if r.Session.IsValid() {
		return mode.Privileged
	}
	return r.State.Current()
}

// Advance runs the transition engine over the conversational mode and
// returns the transition record. The detector never sees the privileged
// overlay; elevation and termination are the only privileged boundary
// crossings.
func (r *Runtime) Advance(input string) mode.Transition {
	from := r.State.Current()
	to := r.Detector.Next(input, from)
	if to != from {
		r.State.Set(to)
	}
	return mode.Transition{
		Timestamp:  time.Now().UTC(),
		FromMode:   from,
		ToMode:     to,
		Authorized: true,
	}
}

// Elevate attempts to open the privileged window against the configured
// digest. An empty configured digest fails closed.
func (r *Runtime) Elevate(credential string) session.Result {
	return r.Session.Elevate(credential, r.Cfg.AdminDigestHex)
}
