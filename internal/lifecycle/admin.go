package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pixil98/go-revival/internal/corpse"
	"github.com/pixil98/go-revival/internal/messages"
	"github.com/pixil98/go-revival/internal/protocol"
	"github.com/pixil98/go-revival/internal/session"
	"github.com/pixil98/go-revival/internal/world"
)

// Summary describes one live corpse for operators.
type Summary struct {
	Name     string
	Location world.Location
	Age      time.Duration
}

func (s Summary) String() string {
	return fmt.Sprintf("%s at %s (%d min ago)", s.Name, s.Location.String(), int(s.Age.Minutes()))
}

// List summarises every live corpse, oldest first.
func (c *Coordinator) List(ctx context.Context) []Summary {
	now := c.now()
	var out []Summary
	for _, cp := range c.registry.All() {
		out = append(out, Summary{
			Name:     cp.Name,
			Location: cp.Location,
			Age:      cp.Age(now),
		})
	}
	return out
}

// RemoveByName deletes a corpse and returns its owner to active play.
func (c *Coordinator) RemoveByName(ctx context.Context, name string) (string, error) {
	cp, err := c.findByName(name)
	if err != nil {
		return "", err
	}

	c.registry.Remove(ctx, cp.Owner)

	if c.sessions.Online(cp.Owner) {
		c.setMode(ctx, cp.Owner, session.ModeActive)
		c.chat(ctx, cp.Owner, messages.AdminRemoved, corpseData(cp))
	}

	slog.InfoContext(ctx, "removed corpse", "name", cp.Name)
	return cp.Name, nil
}

// TeleportTo moves viewer to the named corpse.
func (c *Coordinator) TeleportTo(ctx context.Context, name string, viewer uuid.UUID) (string, error) {
	cp, err := c.findByName(name)
	if err != nil {
		return "", err
	}
	if !c.sessions.Online(viewer) {
		return "", fmt.Errorf("%w: %s", ErrNotOnline, viewer)
	}

	c.teleport(ctx, viewer, cp.Location)
	return cp.Name, nil
}

// ForceRevive revives the named owner with full vitals. Owners who cannot
// receive it now get it on their next respawn or reconnect.
func (c *Coordinator) ForceRevive(ctx context.Context, name string) (string, error) {
	cp, err := c.findByName(name)
	if err != nil {
		return "", err
	}

	owner := cp.Owner
	target := cp.Location

	o, online := c.sessions.Get(owner)
	deliverNow := online && !o.Terminal()
	if !deliverNow {
		c.setTarget(owner, target)
		if online {
			c.setRetraction(owner, cp.Handle())
		}
	}

	c.registry.Remove(ctx, owner)

	if deliverNow {
		var health float64
		c.sessions.Update(owner, func(s *session.Session) {
			health = s.MaxHealth
			s.Health = s.MaxHealth
			s.Food = adminFood
		})
		c.teleport(ctx, owner, target)
		c.setMode(ctx, owner, session.ModeActive)
		c.send(ctx, owner, protocol.Restore{Health: health, Food: adminFood})
		c.chat(ctx, owner, messages.AdminRevived, corpseData(cp))
	}

	slog.InfoContext(ctx, "force revived", "name", cp.Name, "delivered", deliverNow)
	return cp.Name, nil
}

// Reload re-reads settings and rebuilds the corpse set from storage.
func (c *Coordinator) Reload(ctx context.Context) error {
	s, err := LoadSettings(c.settingsPath)
	if err != nil {
		return err
	}
	if err := c.apply(s); err != nil {
		return err
	}

	if err := c.registry.Persist(ctx); err != nil {
		return err
	}
	c.visibility.HideAll(ctx)
	if err := c.registry.Load(ctx); err != nil {
		return err
	}
	for _, cp := range c.registry.All() {
		c.visibility.Show(ctx, cp)
	}

	slog.InfoContext(ctx, "reloaded", "corpses", len(c.registry.All()))
	return nil
}

// Names lists corpse owner names starting with prefix, for completion.
func (c *Coordinator) Names(prefix string) []string {
	var out []string
	for _, cp := range c.registry.All() {
		if strings.HasPrefix(strings.ToLower(cp.Name), strings.ToLower(prefix)) {
			out = append(out, cp.Name)
		}
	}
	return out
}

func (c *Coordinator) findByName(name string) (*corpse.Corpse, error) {
	for _, cp := range c.registry.All() {
		if strings.EqualFold(cp.Name, name) {
			return cp, nil
		}
	}
	return nil, fmt.Errorf("%w for player: %s", ErrCorpseNotFound, name)
}
