package lifecycle

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/pixil98/go-revival/internal/corpse"
	"github.com/pixil98/go-revival/internal/messages"
	"github.com/pixil98/go-revival/internal/protocol"
	"github.com/pixil98/go-revival/internal/session"
	"github.com/pixil98/go-revival/internal/world"
)

// OnJoin registers a connected session and completes anything that was
// waiting for it.
func (c *Coordinator) OnJoin(ctx context.Context, s *session.Session) {
	c.sessions.Join(s)
	id := s.ID

	// Deaths are finished by OnRespawn, which owns the pending records.
	if s.Terminal() {
		slog.InfoContext(ctx, "session joined while dead, waiting for respawn", "name", s.Name)
		c.showAllLater(id, deadJoinShowDelay)
		return
	}

	c.retractLater(id)

	if target, ok := c.takeTarget(id); ok {
		slog.InfoContext(ctx, "delivering revival granted while offline", "name", s.Name, "location", target.String())
		c.send(ctx, id, protocol.Invulnerable{Enabled: true})
		c.setMode(ctx, id, session.ModeActive)
		c.later(id, stateDelay, func(ctx context.Context) {
			c.teleport(ctx, id, target)
			c.restore(ctx, id)
			c.chat(ctx, id, messages.RevivedOffline, messages.Data{Player: s.Name})
			c.later(id, invulnerableFor, func(ctx context.Context) {
				c.send(ctx, id, protocol.Invulnerable{Enabled: false})
			})
		})
		c.showAllLater(id, joinShowDelay)
		return
	}

	c.showAllLater(id, joinShowDelay)

	if own, ok := c.registry.Get(id); ok {
		c.later(id, stateDelay, func(ctx context.Context) {
			c.setMode(ctx, id, session.ModeSpectator)
			c.teleport(ctx, id, own.Location.Add(0, spectatorLift, 0))
			c.chat(ctx, id, messages.DeathCoordinates, corpseData(own))
		})
		return
	}

	if s.Spectating() {
		c.later(id, selfHealDelay, func(ctx context.Context) {
			if _, ok := c.registry.Get(id); ok {
				return
			}
			slog.InfoContext(ctx, "returning spectator without a corpse to active play", "name", s.Name)
			c.setMode(ctx, id, session.ModeActive)
			c.chat(ctx, id, messages.RevivedOffline, messages.Data{Player: s.Name})
		})
	}
}

// OnQuit forgets the session. Pending records survive until the owner returns.
func (c *Coordinator) OnQuit(ctx context.Context, id uuid.UUID) {
	if s, ok := c.sessions.Leave(id); ok {
		slog.DebugContext(ctx, "session left", "name", s.Name)
	}
}

// OnDeath leaves a corpse at the safe position nearest loc. The directory's
// name wins over the reported one; an unknown session still gets a corpse
// when the host named it.
func (c *Coordinator) OnDeath(ctx context.Context, id uuid.UUID, name string, loc world.Location) {
	if s, ok := c.sessions.Get(id); ok {
		name = s.Name
		c.sessions.Update(id, func(s *session.Session) {
			s.Dead = true
			s.Location = loc
		})
	} else if name == "" {
		slog.ErrorContext(ctx, "death reported for unknown session without a name, no corpse left", "session", id, "location", loc.String())
		return
	} else {
		slog.WarnContext(ctx, "death reported for unknown session", "session", id, "name", name)
	}

	if _, ok := c.registry.Get(id); ok {
		c.registry.Remove(ctx, id)
	}

	cp := c.registry.Create(ctx, id, name, loc)
	c.visibility.Show(ctx, cp)

	text := c.render(ctx, messages.DeathCoordinates, corpseData(cp))
	c.later(id, deathMessageDelay, func(ctx context.Context) {
		c.send(ctx, id, protocol.Chat{Text: text})
	})

	slog.InfoContext(ctx, "participant died", "name", name, "death", loc.String(), "corpse", cp.Location.String())
}

// OnRespawn decides where a dead participant comes back. A granted revival
// wins over spectating at the corpse.
func (c *Coordinator) OnRespawn(ctx context.Context, id uuid.UUID) protocol.RespawnDecision {
	c.sessions.Update(id, func(s *session.Session) {
		s.Dead = false
	})

	c.retractLater(id)

	if target, ok := c.takeTarget(id); ok {
		slog.InfoContext(ctx, "respawning revived participant", "session", id, "location", target.String())
		c.sessions.Update(id, func(s *session.Session) {
			s.Mode = session.ModeActive
			s.Location = target
		})
		c.later(id, stateDelay, func(ctx context.Context) {
			c.setMode(ctx, id, session.ModeActive)
			c.restore(ctx, id)
			c.invulnerable(ctx, id)
			c.chat(ctx, id, messages.RevivedRespawn, messages.Data{})
		})
		return protocol.RespawnDecision{Location: &target, Mode: string(session.ModeActive)}
	}

	if own, ok := c.registry.Get(id); ok {
		loc := own.Location.Add(0, spectatorLift, 0)
		c.sessions.Update(id, func(s *session.Session) {
			s.Mode = session.ModeSpectator
			s.Location = loc
		})
		c.later(id, stateDelay, func(ctx context.Context) {
			c.setMode(ctx, id, session.ModeSpectator)
			c.chat(ctx, id, messages.Spectating, corpseData(own))
		})
		return protocol.RespawnDecision{Location: &loc, Mode: string(session.ModeSpectator)}
	}

	return protocol.RespawnDecision{}
}

// OnWorldChange shows the new world's corpses once the client has loaded it.
func (c *Coordinator) OnWorldChange(ctx context.Context, id uuid.UUID, loc world.Location) {
	c.sessions.Update(id, func(s *session.Session) {
		s.Location = loc
	})
	c.showAllLater(id, worldChangeShowDelay)
}

// OnSessionUpdate applies a partial state report from the host.
func (c *Coordinator) OnSessionUpdate(ctx context.Context, id uuid.UUID, st protocol.SessionState) {
	if !c.sessions.Update(id, func(s *session.Session) { applyState(s, st) }) {
		slog.DebugContext(ctx, "update for unknown session", "session", id)
	}
}

// OnBlockUpdate keeps the geometry used for safe placement current.
func (c *Coordinator) OnBlockUpdate(ctx context.Context, u protocol.BlockUpdate) {
	if c.worlds == nil {
		return
	}
	g, ok := c.worlds.Grid(u.World)
	if !ok {
		slog.DebugContext(ctx, "block update for unloaded world", "world", u.World)
		return
	}
	g.Set(world.BlockPos{X: u.X, Y: u.Y, Z: u.Z}, world.ParseMaterial(u.Material))
}

// OnInteract handles a participant using a synthetic entity. Handles that are
// not corpses are ignored.
func (c *Coordinator) OnInteract(ctx context.Context, reviver uuid.UUID, h corpse.Handle) {
	cp, ok := c.visibility.ResolveInteraction(h)
	if !ok {
		return
	}

	// Every attempt starts the cooldown; duplicates inside it are dropped.
	now := c.now()
	if last, ok := c.cooldowns[reviver]; ok && now.Sub(last) < c.cfg.cooldown {
		return
	}
	c.cooldowns[reviver] = now

	r, ok := c.sessions.Get(reviver)
	if !ok {
		return
	}

	data := corpseData(cp)
	data.Reviver = r.Name

	if !r.HasPermission(PermissionRevive) {
		c.chat(ctx, reviver, messages.NoPermission, data)
		return
	}
	if r.Held.Empty() || !c.cfg.items[r.Held.Material] {
		c.chat(ctx, reviver, messages.InvalidItem, data)
		return
	}

	c.revive(ctx, r, cp, data)
}

func (c *Coordinator) revive(ctx context.Context, r *session.Session, cp *corpse.Corpse, data messages.Data) {
	owner := cp.Owner
	target := cp.Location
	h := cp.Handle()

	if c.cfg.settings.ConsumeItem {
		c.send(ctx, r.ID, protocol.ConsumeItem{Material: r.Held.Material, Amount: 1})
		c.sessions.Update(r.ID, func(s *session.Session) {
			s.Held.Amount--
		})
	}

	// Record deliveries before the corpse goes; there is no way back after.
	c.setTarget(owner, target)
	o, online := c.sessions.Get(owner)
	if online && o.Terminal() {
		c.setRetraction(owner, h)
	}

	c.registry.Remove(ctx, owner)

	effect := protocol.Effect{Kind: protocol.EffectTotem, Location: target.Add(0, 1, 0)}
	for _, v := range c.sessions.InWorld(target.World) {
		c.send(ctx, v.ID, effect)
	}

	if online && !o.Terminal() {
		c.teleport(ctx, owner, target)
		c.setMode(ctx, owner, session.ModeActive)
		c.restore(ctx, owner)
		c.chat(ctx, owner, messages.Revived, data)
		c.takeTarget(owner)
	}

	c.chat(ctx, r.ID, messages.RevivedOther, data)
	slog.InfoContext(ctx, "participant revived", "reviver", r.Name, "revived", cp.Name, "location", target.String())
}
