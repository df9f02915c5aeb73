package admin

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/muesli/reflow/wordwrap"
	"github.com/pixil98/go-revival/internal/lifecycle"
	"github.com/pixil98/go-revival/internal/session"
	"golang.org/x/text/cases"
)

// PermissionAdmin lets a connected participant run console commands.
const PermissionAdmin = "revival.admin"

// OutputWidth is the column console output is wrapped at.
const OutputWidth = 80

// Simulation runs a closure on the goroutine that owns the corpse state.
type Simulation interface {
	Call(ctx context.Context, fn func(context.Context) error) error
}

// Operations is the administrative surface of the revival lifecycle.
type Operations interface {
	List(ctx context.Context) []lifecycle.Summary
	RemoveByName(ctx context.Context, name string) (string, error)
	TeleportTo(ctx context.Context, name string, viewer uuid.UUID) (string, error)
	ForceRevive(ctx context.Context, name string) (string, error)
	Reload(ctx context.Context) error
	Names(prefix string) []string
}

type Sessions interface {
	Get(id uuid.UUID) (*session.Session, bool)
	ByName(name string) (*session.Session, bool)
}

// request is one parsed command line.
type request struct {
	caller uuid.UUID
	args   []string
}

type command struct {
	name     string
	aliases  []string
	usage    string
	summary  string
	minArgs  int
	complete bool
	run      func(ctx context.Context, req request) (string, error)
}

// Console executes operator commands. Callers with uuid.Nil are local
// operators and skip the permission check.
type Console struct {
	sim      Simulation
	ops      Operations
	sessions Sessions

	commands []*command
	byName   map[string]*command
}

func NewConsole(sim Simulation, ops Operations, sessions Sessions) *Console {
	c := &Console{
		sim:      sim,
		ops:      ops,
		sessions: sessions,
		byName:   map[string]*command{},
	}

	c.register(&command{name: "reload", summary: "Reload configuration", run: c.reload})
	c.register(&command{name: "list", summary: "List all corpses", run: c.list})
	c.register(&command{name: "remove", usage: "<player>", summary: "Remove a corpse", minArgs: 1, complete: true, run: c.remove})
	c.register(&command{name: "tp", aliases: []string{"teleport"}, usage: "<player> [viewer]", summary: "Teleport to a corpse", minArgs: 1, complete: true, run: c.teleport})
	c.register(&command{name: "revive", usage: "<player>", summary: "Force revive a player", minArgs: 1, complete: true, run: c.revive})
	c.register(&command{name: "help", summary: "Show this list", run: c.help})

	return c
}

func (c *Console) register(cmd *command) {
	c.commands = append(c.commands, cmd)
	c.byName[cmd.name] = cmd
	for _, a := range cmd.aliases {
		c.byName[a] = cmd
	}
}

// Exec runs one command line and returns its output. Bad input is reported as
// a *UserError.
func (c *Console) Exec(ctx context.Context, caller uuid.UUID, line string) (string, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return c.help(ctx, request{})
	}

	cmd, ok := c.byName[cases.Fold().String(fields[0])]
	if !ok {
		return c.help(ctx, request{})
	}
	req := request{caller: caller, args: fields[1:]}
	if len(req.args) < cmd.minArgs {
		return "", NewUserError(fmt.Sprintf("Usage: %s %s", cmd.name, cmd.usage))
	}

	var out string
	err := c.sim.Call(ctx, func(ctx context.Context) error {
		if !c.allowed(caller) {
			return NewUserError("You don't have permission to use this command.")
		}
		var err error
		out, err = cmd.run(ctx, req)
		return err
	})
	if err != nil {
		return "", err
	}
	return wordwrap.String(out, OutputWidth), nil
}

// Complete lists candidates for the last word of line.
func (c *Console) Complete(ctx context.Context, caller uuid.UUID, line string) []string {
	fields := strings.Fields(line)
	if line == "" || strings.HasSuffix(line, " ") {
		fields = append(fields, "")
	}

	fold := cases.Fold()
	switch len(fields) {
	case 1:
		prefix := fold.String(fields[0])
		var out []string
		for _, cmd := range c.commands {
			if strings.HasPrefix(cmd.name, prefix) {
				out = append(out, cmd.name)
			}
		}
		return out

	case 2:
		cmd, ok := c.byName[fold.String(fields[0])]
		if !ok || !cmd.complete {
			return nil
		}
		var out []string
		err := c.sim.Call(ctx, func(ctx context.Context) error {
			if c.allowed(caller) {
				out = c.ops.Names(fields[1])
			}
			return nil
		})
		if err != nil {
			return nil
		}
		slices.Sort(out)
		return out
	}
	return nil
}

func (c *Console) allowed(caller uuid.UUID) bool {
	if caller == uuid.Nil {
		return true
	}
	s, ok := c.sessions.Get(caller)
	return ok && s.HasPermission(PermissionAdmin)
}

func (c *Console) reload(ctx context.Context, _ request) (string, error) {
	if err := c.ops.Reload(ctx); err != nil {
		return "", fmt.Errorf("reloading: %w", err)
	}
	return "Configuration reloaded.", nil
}

func (c *Console) list(ctx context.Context, _ request) (string, error) {
	summaries := c.ops.List(ctx)
	if len(summaries) == 0 {
		return "No corpses found.", nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "=== Corpses (%d) ===", len(summaries))
	for _, s := range summaries {
		sb.WriteString("\n- ")
		sb.WriteString(s.String())
	}
	return sb.String(), nil
}

func (c *Console) remove(ctx context.Context, req request) (string, error) {
	name, err := c.ops.RemoveByName(ctx, req.args[0])
	if err != nil {
		return "", userFacing(err, req.args[0])
	}
	return "Removed corpse for " + name, nil
}

func (c *Console) teleport(ctx context.Context, req request) (string, error) {
	viewer := req.caller
	if len(req.args) > 1 {
		s, ok := c.sessions.ByName(req.args[1])
		if !ok {
			return "", NewUserError("Player not online: " + req.args[1])
		}
		viewer = s.ID
	}
	if viewer == uuid.Nil {
		return "", NewUserError("Usage: tp <player> <viewer>")
	}

	name, err := c.ops.TeleportTo(ctx, req.args[0], viewer)
	if err != nil {
		return "", userFacing(err, req.args[0])
	}
	return fmt.Sprintf("Teleported to %s's corpse.", name), nil
}

func (c *Console) revive(ctx context.Context, req request) (string, error) {
	name, err := c.ops.ForceRevive(ctx, req.args[0])
	if err != nil {
		return "", userFacing(err, req.args[0])
	}
	return "Force revived " + name, nil
}

func (c *Console) help(_ context.Context, _ request) (string, error) {
	var sb strings.Builder
	sb.WriteString("=== Revival Commands ===")
	for _, cmd := range c.commands {
		sb.WriteString("\n")
		sb.WriteString(cmd.name)
		if cmd.usage != "" {
			sb.WriteString(" " + cmd.usage)
		}
		sb.WriteString(" - " + cmd.summary)
	}
	return sb.String(), nil
}

// userFacing turns lifecycle lookup failures into operator messages.
func userFacing(err error, name string) error {
	switch {
	case errors.Is(err, lifecycle.ErrCorpseNotFound):
		return NewUserError("No corpse found for player: " + name)
	case errors.Is(err, lifecycle.ErrNotOnline):
		return NewUserError("Player not online.")
	}
	return err
}
