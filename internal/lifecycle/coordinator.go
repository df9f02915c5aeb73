package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pixil98/go-revival/internal/corpse"
	"github.com/pixil98/go-revival/internal/messages"
	"github.com/pixil98/go-revival/internal/protocol"
	"github.com/pixil98/go-revival/internal/session"
	"github.com/pixil98/go-revival/internal/visibility"
	"github.com/pixil98/go-revival/internal/world"
)

// PermissionRevive lets a participant revive others.
const PermissionRevive = "revival.revive"

const (
	deathMessageDelay    = time.Second
	stateDelay           = 50 * time.Millisecond
	pendingRetractDelay  = 250 * time.Millisecond
	invulnerableFor      = 2 * time.Second
	deadJoinShowDelay    = 2 * time.Second
	joinShowDelay        = time.Second
	selfHealDelay        = 500 * time.Millisecond
	worldChangeShowDelay = 500 * time.Millisecond

	spectatorLift     = 1.5
	revivedFood       = 10
	revivedSaturation = 5
	adminFood         = 20
)

type Registry interface {
	Create(ctx context.Context, owner uuid.UUID, name string, requested world.Location) *corpse.Corpse
	Remove(ctx context.Context, owner uuid.UUID) (*corpse.Corpse, bool)
	Get(owner uuid.UUID) (*corpse.Corpse, bool)
	All() []*corpse.Corpse
	Persist(ctx context.Context) error
	Load(ctx context.Context) error
	SetSearchRadius(radius int)
}

type Visibility interface {
	Show(ctx context.Context, c *corpse.Corpse)
	ShowAllTo(ctx context.Context, viewer uuid.UUID)
	HideAll(ctx context.Context)
	Retract(ctx context.Context, viewer uuid.UUID, h corpse.Handle)
	ResolveInteraction(h corpse.Handle) (*corpse.Corpse, bool)
	SetAppearance(a visibility.Appearance)
}

type Sessions interface {
	Join(s *session.Session)
	Leave(id uuid.UUID) (*session.Session, bool)
	Get(id uuid.UUID) (*session.Session, bool)
	Online(id uuid.UUID) bool
	Update(id uuid.UUID, fn func(*session.Session)) bool
	InWorld(world string) []*session.Session
}

type Worlds interface {
	Grid(name string) (*world.Grid, bool)
}

// Coordinator sequences death, spectating, revival and reconnect for every
// owner. It is owned by the simulation goroutine.
type Coordinator struct {
	registry   Registry
	visibility Visibility
	sessions   Sessions
	transport  visibility.Transport
	sched      visibility.Scheduler
	worlds     Worlds

	settingsPath string
	now          func() time.Time
	cfg          *compiled

	pending   map[uuid.UUID]*pending
	cooldowns map[uuid.UUID]time.Time
}

type CoordinatorOpt func(*Coordinator)

// WithSettingsPath sets the file Reload reads settings from.
func WithSettingsPath(path string) CoordinatorOpt {
	return func(c *Coordinator) {
		c.settingsPath = path
	}
}

func WithWorlds(w Worlds) CoordinatorOpt {
	return func(c *Coordinator) {
		c.worlds = w
	}
}

func WithClock(now func() time.Time) CoordinatorOpt {
	return func(c *Coordinator) {
		c.now = now
	}
}

func NewCoordinator(reg Registry, vis Visibility, sessions Sessions, tr visibility.Transport, sched visibility.Scheduler, settings *Settings, opts ...CoordinatorOpt) (*Coordinator, error) {
	c := &Coordinator{
		registry:   reg,
		visibility: vis,
		sessions:   sessions,
		transport:  tr,
		sched:      sched,
		now:        time.Now,
		pending:    map[uuid.UUID]*pending{},
		cooldowns:  map[uuid.UUID]time.Time{},
	}
	for _, opt := range opts {
		opt(c)
	}

	if settings == nil {
		settings = DefaultSettings()
	}
	if err := c.apply(settings); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Coordinator) apply(s *Settings) error {
	cfg, err := compile(s)
	if err != nil {
		return fmt.Errorf("applying settings: %w", err)
	}
	c.cfg = cfg
	c.registry.SetSearchRadius(s.SafeLocationSearchRadius)
	c.visibility.SetAppearance(s.appearance())
	return nil
}

// State reports where owner is in the revival lifecycle.
func (c *Coordinator) State(owner uuid.UUID) State {
	if p, ok := c.pending[owner]; ok && p.target != nil {
		return StateRevivalPendingDelivery
	}
	if _, ok := c.registry.Get(owner); ok {
		return StateAwaitingRevival
	}
	return StateAlive
}

// Tick drops expired interaction cooldowns.
func (c *Coordinator) Tick(ctx context.Context) error {
	now := c.now()
	for id, last := range c.cooldowns {
		if now.Sub(last) >= c.cfg.cooldown {
			delete(c.cooldowns, id)
		}
	}
	return nil
}

// Shutdown persists every corpse and removes them from viewers.
func (c *Coordinator) Shutdown(ctx context.Context) {
	if err := c.registry.Persist(ctx); err != nil {
		slog.ErrorContext(ctx, "failed to persist corpses on shutdown", "error", err)
	}
	c.visibility.HideAll(ctx)
}

func (c *Coordinator) render(ctx context.Context, key messages.Key, data messages.Data) string {
	return c.cfg.catalog.Render(ctx, key, data)
}

func (c *Coordinator) send(ctx context.Context, id uuid.UUID, msgs ...protocol.Message) {
	for _, msg := range msgs {
		if err := c.transport.Send(ctx, id, msg); err != nil {
			slog.WarnContext(ctx, "failed to deliver to session", "session", id, "type", msg.Type(), "error", err)
			return
		}
	}
}

func (c *Coordinator) chat(ctx context.Context, id uuid.UUID, key messages.Key, data messages.Data) {
	c.send(ctx, id, protocol.Chat{Text: c.render(ctx, key, data)})
}

// later runs fn after delay if id is still connected.
func (c *Coordinator) later(id uuid.UUID, delay time.Duration, fn func(ctx context.Context)) {
	c.sched.After(delay, func(ctx context.Context) {
		if !c.sessions.Online(id) {
			return
		}
		fn(ctx)
	})
}

func (c *Coordinator) setMode(ctx context.Context, id uuid.UUID, mode session.Mode) {
	c.sessions.Update(id, func(s *session.Session) {
		s.Mode = mode
	})
	c.send(ctx, id, protocol.GameMode{Mode: string(mode)})
}

func (c *Coordinator) teleport(ctx context.Context, id uuid.UUID, loc world.Location) {
	c.sessions.Update(id, func(s *session.Session) {
		s.Location = loc
	})
	c.send(ctx, id, protocol.Teleport{Location: loc})
}

// restore applies the partial recovery given to revived participants.
func (c *Coordinator) restore(ctx context.Context, id uuid.UUID) {
	var health float64
	c.sessions.Update(id, func(s *session.Session) {
		health = s.MaxHealth / 2
		s.Health = health
		s.Food = revivedFood
	})
	c.send(ctx, id, protocol.Restore{Health: health, Food: revivedFood, Saturation: revivedSaturation})
}

// invulnerable protects id for a short window after revival.
func (c *Coordinator) invulnerable(ctx context.Context, id uuid.UUID) {
	c.send(ctx, id, protocol.Invulnerable{Enabled: true})
	c.later(id, invulnerableFor, func(ctx context.Context) {
		c.send(ctx, id, protocol.Invulnerable{Enabled: false})
	})
}

func (c *Coordinator) showAllLater(id uuid.UUID, delay time.Duration) {
	c.later(id, delay, func(ctx context.Context) {
		c.visibility.ShowAllTo(ctx, id)
	})
}

// retractLater delivers a pending retraction once the session can process it.
func (c *Coordinator) retractLater(id uuid.UUID) {
	h := c.takeRetraction(id)
	if h == corpse.NoHandle {
		return
	}
	c.later(id, pendingRetractDelay, func(ctx context.Context) {
		c.visibility.Retract(ctx, id, h)
	})
}

func corpseData(cp *corpse.Corpse) messages.Data {
	b := cp.Location.Block()
	return messages.Data{
		Player: cp.Name,
		World:  cp.Location.World,
		X:      b.X,
		Y:      b.Y,
		Z:      b.Z,
	}
}
