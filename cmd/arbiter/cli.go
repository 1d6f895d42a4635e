package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/arbiter/internal/core"
	"github.com/hpungsan/arbiter/internal/db"
	"github.com/hpungsan/arbiter/internal/errors"
	"github.com/hpungsan/arbiter/internal/mode"
	"github.com/hpungsan/arbiter/internal/proposal"
	"github.com/hpungsan/arbiter/internal/registry"
	"github.com/hpungsan/arbiter/internal/web"
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp(rt *core.Runtime) *cli.App {
	app := &cli.App{
		Name:    "arbiter",
		Usage:   "Conversational-agent governance core",
		Version: Version,
		Commands: []*cli.Command{
			messageCmd(rt),
			elevateCmd(rt),
			terminateCmd(rt),
			statusCmd(rt),
			screenCmd(rt),
			capabilitiesCmd(rt),
			promptCmd(rt),
			auditCmd(rt),
			noteCmd(rt),
			recallCmd(rt),
			proposeCmd(rt),
			diagCmd(rt),
			serveCmd(rt),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// messageCmd creates the message command.
func messageCmd(rt *core.Runtime) *cli.Command {
	return &cli.Command{
		Name:      "message",
		Usage:     "Route a user message through the mode state machine",
		ArgsUsage: "[text]",
		Action: func(c *cli.Context) error {
			text, err := textArg(c)
			if err != nil {
				return outputError(err)
			}

			transition := rt.Advance(text)
			return outputJSON(map[string]any{
				"transition":     transition,
				"effective_mode": rt.EffectiveMode(),
			})
		},
	}
}

// elevateCmd creates the elevate command.
func elevateCmd(rt *core.Runtime) *cli.Command {
	return &cli.Command{
		Name:  "elevate",
		Usage: "Verify the operator credential and open a privileged session",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "credential", Aliases: []string{"c"}, Usage: "Operator credential (reads stdin when omitted)"},
		},
		Action: func(c *cli.Context) error {
			credential := c.String("credential")
			if credential == "" && stdinHasData() {
				text, err := readStdin()
				if err != nil {
					return outputError(errors.NewInternal(err))
				}
				credential = text
			}
			if credential == "" {
				return outputError(errors.NewInvalidRequest("credential is required"))
			}

			result := rt.Elevate(credential)
			if !result.Success {
				return outputError(errors.NewAuthRejected())
			}
			return outputJSON(result)
		},
	}
}

// terminateCmd creates the terminate command.
func terminateCmd(rt *core.Runtime) *cli.Command {
	return &cli.Command{
		Name:  "terminate",
		Usage: "End the privileged session immediately",
		Action: func(c *cli.Context) error {
			rt.Session.Terminate()
			return outputJSON(map[string]any{
				"terminated":     true,
				"effective_mode": rt.EffectiveMode(),
			})
		},
	}
}

// statusCmd creates the status command.
func statusCmd(rt *core.Runtime) *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show the current mode, session, and capability state",
		Action: func(c *cli.Context) error {
			effective := rt.EffectiveMode()
			caps, err := rt.Registry.Capabilities(effective)
			if err != nil {
				return outputError(err)
			}

			out := map[string]any{
				"conversational_mode": rt.State.Current(),
				"effective_mode":      effective,
				"session_valid":       rt.Session.IsValid(),
				"capabilities":        caps,
			}
			if expiry := rt.Session.ExpiresAt(); expiry != nil {
				out["session_expires_at"] = expiry
			}
			return outputJSON(out)
		},
	}
}

// screenCmd creates the screen command.
func screenCmd(rt *core.Runtime) *cli.Command {
	return &cli.Command{
		Name:      "screen",
		Usage:     "Screen candidate output text against the guardrail",
		ArgsUsage: "[text]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "mode", Aliases: []string{"m"}, Usage: "Screen as this mode instead of the effective mode"},
		},
		Action: func(c *cli.Context) error {
			text, err := textArg(c)
			if err != nil {
				return outputError(err)
			}

			m := rt.EffectiveMode()
			if name := c.String("mode"); name != "" {
				parsed, err := mode.Parse(name)
				if err != nil {
					return outputError(err)
				}
				m = parsed
			}

			screened, outcome := rt.Guardrail.Screen(text, m)
			return outputJSON(map[string]any{
				"output":  screened,
				"outcome": outcome,
				"mode":    m,
			})
		},
	}
}

// capabilitiesCmd creates the capabilities command.
func capabilitiesCmd(rt *core.Runtime) *cli.Command {
	return &cli.Command{
		Name:  "capabilities",
		Usage: "List the capabilities permitted in a mode",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "mode", Aliases: []string{"m"}, Usage: "Mode to inspect (default: effective mode)"},
		},
		Action: func(c *cli.Context) error {
			m := rt.EffectiveMode()
			if name := c.String("mode"); name != "" {
				parsed, err := mode.Parse(name)
				if err != nil {
					return outputError(err)
				}
				m = parsed
			}

			caps, err := rt.Registry.Capabilities(m)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(map[string]any{
				"mode":         m,
				"capabilities": caps,
			})
		},
	}
}

// promptCmd creates the prompt command.
func promptCmd(rt *core.Runtime) *cli.Command {
	return &cli.Command{
		Name:  "prompt",
		Usage: "Print the composed system prompt for a mode",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "mode", Aliases: []string{"m"}, Usage: "Mode to compose for (default: effective mode)"},
		},
		Action: func(c *cli.Context) error {
			m := rt.EffectiveMode()
			if name := c.String("mode"); name != "" {
				parsed, err := mode.Parse(name)
				if err != nil {
					return outputError(err)
				}
				m = parsed
			}

			prompt, err := rt.Composer.ComposePrompt(m)
			if err != nil {
				return outputError(err)
			}
			fmt.Println(prompt)
			return nil
		},
	}
}

// auditCmd creates the audit command.
func auditCmd(rt *core.Runtime) *cli.Command {
	return &cli.Command{
		Name:  "audit",
		Usage: "List audit trail events",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "kind", Aliases: []string{"k"}, Usage: "Filter by event kind"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: 50, Usage: "Maximum events to return"},
			&cli.IntFlag{Name: "offset", Aliases: []string{"o"}, Value: 0, Usage: "Events to skip"},
		},
		Action: func(c *cli.Context) error {
			entries, err := db.ListEvents(rt.DB, c.String("kind"), c.Int("limit"), c.Int("offset"))
			if err != nil {
				return outputError(err)
			}
			total, err := db.CountEvents(rt.DB, c.String("kind"))
			if err != nil {
				return outputError(err)
			}
			return outputJSON(map[string]any{
				"events": entries,
				"total":  total,
			})
		},
	}
}

// noteCmd creates the note command.
func noteCmd(rt *core.Runtime) *cli.Command {
	return &cli.Command{
		Name:      "note",
		Usage:     "Append a note to persistent memory",
		ArgsUsage: "[text]",
		Action: func(c *cli.Context) error {
			text, err := textArg(c)
			if err != nil {
				return outputError(err)
			}

			if _, err := rt.Guard.Check(registry.CapMemoryWrite, rt.EffectiveMode(), nil); err != nil {
				return outputError(err)
			}
			if err := rt.Memory.Append(text); err != nil {
				return outputError(err)
			}
			return outputJSON(map[string]any{"stored": true})
		},
	}
}

// recallCmd creates the recall command.
func recallCmd(rt *core.Runtime) *cli.Command {
	return &cli.Command{
		Name:      "recall",
		Usage:     "Search persistent memory notes",
		ArgsUsage: "<query>",
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return outputError(errors.NewInvalidRequest("query is required"))
			}

			if _, err := rt.Guard.Check(registry.CapMemoryQuery, rt.EffectiveMode(), nil); err != nil {
				return outputError(err)
			}
			matches, err := rt.Memory.Query(strings.Join(c.Args().Slice(), " "))
			if err != nil {
				return outputError(err)
			}
			return outputJSON(map[string]any{
				"matches": matches,
				"count":   len(matches),
			})
		},
	}
}

// proposeCmd creates the propose command with its subcommands.
func proposeCmd(rt *core.Runtime) *cli.Command {
	return &cli.Command{
		Name:  "propose",
		Usage: "Generate, validate, and stage change proposals",
		Subcommands: []*cli.Command{
			{
				Name:      "generate",
				Usage:     "Generate a structured proposal from a task description",
				ArgsUsage: "<description>",
				Action: func(c *cli.Context) error {
					if c.NArg() < 1 {
						return outputError(errors.NewInvalidRequest("task description is required"))
					}
					if _, err := rt.Guard.Check(registry.CapProposalGenerate, rt.EffectiveMode(), nil); err != nil {
						return outputError(err)
					}
					prop, err := rt.Proposals.Generate(strings.Join(c.Args().Slice(), " "))
					if err != nil {
						return outputError(err)
					}
					return outputJSON(prop)
				},
			},
			{
				Name:  "validate",
				Usage: "Validate a proposal (reads proposal JSON from stdin)",
				Action: func(c *cli.Context) error {
					if !stdinHasData() {
						return outputError(errors.NewInvalidRequest("proposal JSON must be piped via stdin"))
					}
					text, err := readStdin()
					if err != nil {
						return outputError(errors.NewInternal(err))
					}
					var prop proposal.Proposal
					if err := json.Unmarshal([]byte(text), &prop); err != nil {
						return outputError(errors.NewInvalidRequest("invalid proposal JSON: " + err.Error()))
					}
					if _, err := rt.Guard.Check(registry.CapProposalValidate, rt.EffectiveMode(), nil); err != nil {
						return outputError(err)
					}
					return outputJSON(rt.Proposals.Validate(prop))
				},
			},
			{
				Name:  "stage",
				Usage: "Stage a configuration change for operator review (reads content from stdin)",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "target", Aliases: []string{"t"}, Required: true, Usage: "Change target"},
					&cli.StringFlag{Name: "rationale", Aliases: []string{"r"}, Required: true, Usage: "Why the change is proposed"},
				},
				Action: func(c *cli.Context) error {
					if !stdinHasData() {
						return outputError(errors.NewInvalidRequest("proposal content must be piped via stdin"))
					}
					content, err := readStdin()
					if err != nil {
						return outputError(errors.NewInternal(err))
					}
					if _, err := rt.Guard.Check(registry.CapProposalStage, rt.EffectiveMode(), nil); err != nil {
						return outputError(err)
					}
					path, err := rt.Proposals.Stage(c.String("target"), c.String("rationale"), content)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(map[string]any{"staged": path})
				},
			},
			{
				Name:  "list",
				Usage: "List staged proposals",
				Action: func(c *cli.Context) error {
					names, err := rt.Proposals.List()
					if err != nil {
						return outputError(err)
					}
					return outputJSON(map[string]any{
						"proposals": names,
						"count":     len(names),
					})
				},
			},
			{
				Name:      "read",
				Usage:     "Print a staged proposal",
				ArgsUsage: "<name>",
				Action: func(c *cli.Context) error {
					if c.NArg() < 1 {
						return outputError(errors.NewInvalidRequest("proposal name is required"))
					}
					content, err := rt.Proposals.Read(c.Args().First())
					if err != nil {
						return outputError(err)
					}
					fmt.Println(content)
					return nil
				},
			},
		},
	}
}

// diagCmd creates the diag command.
func diagCmd(rt *core.Runtime) *cli.Command {
	return &cli.Command{
		Name:  "diag",
		Usage: "Run privileged system diagnostics",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "credential", Aliases: []string{"c"}, Usage: "Operator credential to elevate for this invocation"},
			&cli.BoolFlag{Name: "constraints", Usage: "Audit declared constraints instead of taking a snapshot"},
		},
		Action: func(c *cli.Context) error {
			// Each CLI invocation is a fresh process, so elevation has to
			// happen in-line for the privileged capabilities to be usable.
			if credential := c.String("credential"); credential != "" {
				if result := rt.Elevate(credential); !result.Success {
					return outputError(errors.NewAuthRejected())
				}
			}

			capability := registry.CapSystemDiag
			if c.Bool("constraints") {
				capability = registry.CapConstraintAudit
			}
			if _, err := rt.Guard.Check(capability, rt.EffectiveMode(), nil); err != nil {
				return outputError(err)
			}

			if c.Bool("constraints") {
				return outputJSON(rt.Diag.AuditConstraints())
			}
			return outputJSON(rt.Diag.Snapshot())
		},
	}
}

// serveCmd creates the serve command.
func serveCmd(rt *core.Runtime) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the local web console",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Aliases: []string{"b"}, Value: "127.0.0.1", Usage: "Bind address"},
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Value: 7317, Usage: "Listen port"},
		},
		Action: func(c *cli.Context) error {
			srv := web.NewServer(rt, Version, c.String("bind"), c.Int("port"))
			return web.Run(srv)
		},
	}
}

// Helper functions

// textArg returns the first positional argument, falling back to stdin.
func textArg(c *cli.Context) (string, error) {
	if c.NArg() > 0 {
		return strings.Join(c.Args().Slice(), " "), nil
	}
	if stdinHasData() {
		text, err := readStdin()
		if err != nil {
			return "", errors.NewInternal(err)
		}
		if text != "" {
			return text, nil
		}
	}
	return "", errors.NewInvalidRequest("text is required (argument or stdin)")
}

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if arbErr, ok := err.(*errors.ArbiterError); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", arbErr.Code, arbErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// readStdin reads all content from stdin.
func readStdin() (string, error) {
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
