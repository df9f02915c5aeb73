package lifecycle

import (
	"context"
	"errors"
	"maps"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pixil98/go-revival/internal/corpse"
	"github.com/pixil98/go-revival/internal/identity"
	"github.com/pixil98/go-revival/internal/protocol"
	"github.com/pixil98/go-revival/internal/session"
	"github.com/pixil98/go-revival/internal/visibility"
	"github.com/pixil98/go-revival/internal/world"
	"github.com/pixil98/go-testutil"
)

type memStore struct {
	records map[string]*corpse.Record
}

func (m *memStore) Save(id string, r *corpse.Record) error {
	m.records[id] = r
	return nil
}

func (m *memStore) Delete(id string) error {
	delete(m.records, id)
	return nil
}

func (m *memStore) ReplaceAll(records map[string]*corpse.Record) error {
	m.records = maps.Clone(records)
	return nil
}

func (m *memStore) Reload() error { return nil }

func (m *memStore) GetAll() map[string]*corpse.Record {
	return maps.Clone(m.records)
}

type sent struct {
	to  uuid.UUID
	msg protocol.Message
}

type recorder struct {
	sent []sent
}

func (r *recorder) Send(ctx context.Context, to uuid.UUID, msg protocol.Message) error {
	r.sent = append(r.sent, sent{to: to, msg: msg})
	return nil
}

func messagesOf[T protocol.Message](r *recorder, to uuid.UUID) []T {
	var out []T
	for _, s := range r.sent {
		if s.to != to {
			continue
		}
		if m, ok := s.msg.(T); ok {
			out = append(out, m)
		}
	}
	return out
}

func (r *recorder) chats(to uuid.UUID) []string {
	var out []string
	for _, m := range messagesOf[protocol.Chat](r, to) {
		out = append(out, m.Text)
	}
	return out
}

type scheduler struct {
	delayed []func(context.Context)
}

func (s *scheduler) Post(fn func(context.Context)) {
	fn(context.Background())
}

func (s *scheduler) After(d time.Duration, fn func(context.Context)) {
	s.delayed = append(s.delayed, fn)
}

// flush runs timers until none are left, including ones they schedule.
func (s *scheduler) flush() {
	for len(s.delayed) > 0 {
		delayed := s.delayed
		s.delayed = nil
		for _, fn := range delayed {
			fn(context.Background())
		}
	}
}

type noTextures struct{}

func (noTextures) Lookup(uuid.UUID) (*identity.Descriptor, bool) { return nil, true }

func (noTextures) ResolveAsync(context.Context, uuid.UUID, func(func()), func(*identity.Descriptor)) {
}

type fixture struct {
	store    *memStore
	worlds   *world.Worlds
	registry *corpse.Registry
	sessions *session.Directory
	tr       *recorder
	sched    *scheduler
	coord    *Coordinator
	now      time.Time

	a, b uuid.UUID
}

func newFixture(t *testing.T, settings *Settings, opts ...CoordinatorOpt) *fixture {
	t.Helper()

	f := &fixture{
		store:    &memStore{records: map[string]*corpse.Record{}},
		worlds:   world.NewWorlds(nil),
		sessions: session.NewDirectory(),
		tr:       &recorder{},
		sched:    &scheduler{},
		now:      time.UnixMilli(1_700_000_000_000),
		a:        uuid.New(),
		b:        uuid.New(),
	}
	clock := func() time.Time { return f.now }

	g := world.NewGrid("W", -64, 320, world.Location{X: 0.5, Y: 64, Z: 0.5})
	g.Fill(world.BlockPos{X: -20, Y: 63, Z: -20}, world.BlockPos{X: 20, Y: 63, Z: 20}, world.MaterialStone)
	f.worlds.Add(g)

	f.registry = corpse.NewRegistry(f.store, f.worlds, corpse.WithClock(clock))
	vis := visibility.NewSync(f.registry, f.sessions, noTextures{}, f.tr, f.sched)
	f.registry.Observe(vis)

	opts = append([]CoordinatorOpt{WithClock(clock), WithWorlds(f.worlds)}, opts...)
	coord, err := NewCoordinator(f.registry, vis, f.sessions, f.tr, f.sched, settings, opts...)
	if err != nil {
		t.Fatalf("NewCoordinator: %v", err)
	}
	f.coord = coord
	return f
}

func (f *fixture) join(id uuid.UUID, name string, mutate ...func(*session.Session)) {
	s := &session.Session{
		ID:        id,
		Name:      name,
		Location:  world.Location{World: "W", X: 0.5, Y: 64, Z: 0.5},
		Mode:      session.ModeActive,
		Health:    20,
		MaxHealth: 20,
		Food:      20,
	}
	for _, m := range mutate {
		m(s)
	}
	f.coord.OnJoin(context.Background(), s)
}

func reviverWith(material world.Material, amount int) func(*session.Session) {
	return func(s *session.Session) {
		s.Permissions = []string{PermissionRevive}
		s.Held = session.Item{Material: material, Amount: amount}
	}
}

func (f *fixture) handleOf(t *testing.T, owner uuid.UUID) corpse.Handle {
	t.Helper()
	c, ok := f.registry.Get(owner)
	if !ok {
		t.Fatal("expected a corpse")
	}
	if !c.HasHandle() {
		t.Fatal("expected corpse to be shown")
	}
	return c.Handle()
}

var deathSpot = world.Location{World: "W", X: 10, Y: 64, Z: 10}

func TestCoordinator_ReviveConnectedOwner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.join(f.a, "A")
	f.join(f.b, "B", reviverWith(world.MaterialTotemOfUndying, 2))
	f.sched.flush()

	f.coord.OnDeath(ctx, f.a, "A", deathSpot)
	testutil.AssertEqual(t, "state after death", f.coord.State(f.a), StateAwaitingRevival)

	list := f.coord.List(ctx)
	testutil.AssertEqual(t, "corpses", len(list), 1)
	testutil.AssertEqual(t, "listing", list[0].String(), "A at W: 10,64,10 (0 min ago)")

	decision := f.coord.OnRespawn(ctx, f.a)
	testutil.AssertEqual(t, "respawn mode", decision.Mode, string(session.ModeSpectator))
	testutil.AssertEqual(t, "respawn above corpse", *decision.Location, deathSpot.Add(0, 1.5, 0))
	f.sched.flush()

	chats := f.tr.chats(f.a)
	testutil.AssertEqual(t, "owner messages", len(chats), 2)
	if !strings.Contains(chats[0], "10, 64, 10") || !strings.Contains(chats[0], "W") {
		t.Errorf("death message missing coordinates: %q", chats[0])
	}

	f.coord.OnInteract(ctx, f.b, f.handleOf(t, f.a))

	testutil.AssertEqual(t, "state after revival", f.coord.State(f.a), StateAlive)
	testutil.AssertEqual(t, "corpses left", f.registry.Len(), 0)
	target, retraction := f.coord.Pending(f.a)
	testutil.AssertEqual(t, "pending target", target, false)
	testutil.AssertEqual(t, "pending retraction", retraction, false)

	teleports := messagesOf[protocol.Teleport](f.tr, f.a)
	testutil.AssertEqual(t, "owner teleported", teleports[len(teleports)-1].Location, deathSpot)
	restores := messagesOf[protocol.Restore](f.tr, f.a)
	testutil.AssertEqual(t, "restores", len(restores), 1)
	testutil.AssertEqual(t, "half health", restores[0].Health, 10.0)
	testutil.AssertEqual(t, "food", restores[0].Food, revivedFood)

	a, _ := f.sessions.Get(f.a)
	testutil.AssertEqual(t, "owner mode", a.Mode, session.ModeActive)

	consumed := messagesOf[protocol.ConsumeItem](f.tr, f.b)
	testutil.AssertEqual(t, "items consumed", len(consumed), 1)
	b, _ := f.sessions.Get(f.b)
	testutil.AssertEqual(t, "held amount", b.Held.Amount, 1)

	bChats := f.tr.chats(f.b)
	testutil.AssertEqual(t, "reviver message", bChats[len(bChats)-1], "§aYou revived §eA§a!")

	testutil.AssertEqual(t, "effect to owner", len(messagesOf[protocol.Effect](f.tr, f.a)), 1)
	testutil.AssertEqual(t, "effect to reviver", len(messagesOf[protocol.Effect](f.tr, f.b)), 1)
	testutil.AssertEqual(t, "entity removed for reviver", len(messagesOf[protocol.EntityRemove](f.tr, f.b)), 1)
}

func TestCoordinator_InteractionCooldown(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.join(f.a, "A")
	f.join(f.b, "B", reviverWith(world.MaterialPlayerHead, 3))

	f.coord.OnDeath(ctx, f.a, "A", deathSpot)
	f.coord.OnRespawn(ctx, f.a)
	h := f.handleOf(t, f.a)
	f.coord.OnInteract(ctx, f.b, h)
	f.coord.OnInteract(ctx, f.b, h)
	testutil.AssertEqual(t, "revived", f.coord.State(f.a), StateAlive)

	f.coord.OnDeath(ctx, f.a, "A", deathSpot)
	f.coord.OnRespawn(ctx, f.a)
	f.coord.OnInteract(ctx, f.b, f.handleOf(t, f.a))

	testutil.AssertEqual(t, "dropped inside cooldown", f.coord.State(f.a), StateAwaitingRevival)
	testutil.AssertEqual(t, "items consumed", len(messagesOf[protocol.ConsumeItem](f.tr, f.b)), 1)
	testutil.AssertEqual(t, "reviver messages", len(f.tr.chats(f.b)), 1)

	f.now = f.now.Add(DefaultCooldown)
	if err := f.coord.Tick(ctx); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	testutil.AssertEqual(t, "cooldowns swept", len(f.coord.cooldowns), 0)

	f.coord.OnInteract(ctx, f.b, f.handleOf(t, f.a))
	testutil.AssertEqual(t, "revived after cooldown", f.coord.State(f.a), StateAlive)
	testutil.AssertEqual(t, "items consumed", len(messagesOf[protocol.ConsumeItem](f.tr, f.b)), 2)
}

func TestCoordinator_RejectedAttempts(t *testing.T) {
	tests := map[string]struct {
		reviver func(*session.Session)
		expMsg  string
	}{
		"no permission": {
			reviver: func(s *session.Session) {
				s.Held = session.Item{Material: world.MaterialPlayerHead, Amount: 1}
			},
			expMsg: "permission",
		},
		"wrong item": {
			reviver: reviverWith(world.MaterialDirt, 5),
			expMsg:  "revive A",
		},
		"empty hand": {
			reviver: reviverWith(world.MaterialAir, 0),
			expMsg:  "revive A",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t, nil)
			f.join(f.a, "A")
			f.join(f.b, "B", tt.reviver)

			f.coord.OnDeath(ctx, f.a, "A", deathSpot)
			h := f.handleOf(t, f.a)

			f.coord.OnInteract(ctx, f.b, h)
			f.coord.OnInteract(ctx, f.b, h)

			chats := f.tr.chats(f.b)
			testutil.AssertEqual(t, "messages", len(chats), 1)
			if !strings.Contains(chats[0], tt.expMsg) {
				t.Errorf("message %q does not contain %q", chats[0], tt.expMsg)
			}
			testutil.AssertEqual(t, "corpse kept", f.coord.State(f.a), StateAwaitingRevival)
			testutil.AssertEqual(t, "nothing consumed", len(messagesOf[protocol.ConsumeItem](f.tr, f.b)), 0)
		})
	}
}

func TestCoordinator_ConsumeItemDisabled(t *testing.T) {
	ctx := context.Background()
	s := DefaultSettings()
	s.ConsumeItem = false
	f := newFixture(t, s)
	f.join(f.a, "A")
	f.join(f.b, "B", reviverWith(world.MaterialTotemOfUndying, 1))

	f.coord.OnDeath(ctx, f.a, "A", deathSpot)
	f.coord.OnRespawn(ctx, f.a)
	f.coord.OnInteract(ctx, f.b, f.handleOf(t, f.a))

	testutil.AssertEqual(t, "revived", f.coord.State(f.a), StateAlive)
	testutil.AssertEqual(t, "nothing consumed", len(messagesOf[protocol.ConsumeItem](f.tr, f.b)), 0)
}

func TestCoordinator_ReviveDisconnectedOwner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.join(f.a, "A")
	f.join(f.b, "B", reviverWith(world.MaterialTotemOfUndying, 1))

	f.coord.OnDeath(ctx, f.a, "A", deathSpot)
	f.coord.OnRespawn(ctx, f.a)
	f.sched.flush()
	f.coord.OnQuit(ctx, f.a)

	before := len(messagesOf[protocol.Teleport](f.tr, f.a))
	f.coord.OnInteract(ctx, f.b, f.handleOf(t, f.a))

	testutil.AssertEqual(t, "state", f.coord.State(f.a), StateRevivalPendingDelivery)
	target, retraction := f.coord.Pending(f.a)
	testutil.AssertEqual(t, "pending target", target, true)
	testutil.AssertEqual(t, "pending retraction", retraction, false)
	testutil.AssertEqual(t, "nothing sent to offline owner", len(messagesOf[protocol.Teleport](f.tr, f.a)), before)

	f.join(f.a, "A", func(s *session.Session) {
		s.Mode = session.ModeSpectator
	})
	f.sched.flush()

	testutil.AssertEqual(t, "state after reconnect", f.coord.State(f.a), StateAlive)
	target, retraction = f.coord.Pending(f.a)
	testutil.AssertEqual(t, "target consumed", target, false)
	testutil.AssertEqual(t, "retraction consumed", retraction, false)

	teleports := messagesOf[protocol.Teleport](f.tr, f.a)
	testutil.AssertEqual(t, "delivered once", len(teleports), before+1)
	testutil.AssertEqual(t, "delivered to corpse", teleports[len(teleports)-1].Location, deathSpot)

	inv := messagesOf[protocol.Invulnerable](f.tr, f.a)
	testutil.AssertEqual(t, "invulnerability toggled", len(inv), 2)
	testutil.AssertEqual(t, "invulnerability ends", inv[1].Enabled, false)

	chats := f.tr.chats(f.a)
	testutil.AssertEqual(t, "welcome back", chats[len(chats)-1], "§aYou were revived while offline! Welcome back.")

	// A second reconnect has nothing left to deliver.
	f.coord.OnQuit(ctx, f.a)
	f.join(f.a, "A")
	f.sched.flush()
	testutil.AssertEqual(t, "no second delivery", len(messagesOf[protocol.Teleport](f.tr, f.a)), before+1)
}

func TestCoordinator_DeathOfUnknownSession(t *testing.T) {
	tests := map[string]struct {
		name      string
		expCorpse bool
	}{
		"named by the host": {name: "Alice", expCorpse: true},
		"no name":           {name: ""},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t, nil)

			f.coord.OnDeath(ctx, f.a, tt.name, deathSpot)

			cp, ok := f.registry.Get(f.a)
			testutil.AssertEqual(t, "corpse left", ok, tt.expCorpse)
			if !tt.expCorpse {
				testutil.AssertEqual(t, "state", f.coord.State(f.a), StateAlive)
				return
			}
			testutil.AssertEqual(t, "corpse name", cp.Name, tt.name)
			testutil.AssertEqual(t, "state", f.coord.State(f.a), StateAwaitingRevival)

			// The owner reconnecting later finds the corpse waiting.
			decision := f.coord.OnRespawn(ctx, f.a)
			testutil.AssertEqual(t, "respawn mode", decision.Mode, string(session.ModeSpectator))
		})
	}
}

func TestCoordinator_DeathUsesDirectoryName(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.join(f.a, "A")
	f.sched.flush()

	f.coord.OnDeath(ctx, f.a, "Impostor", deathSpot)

	cp, ok := f.registry.Get(f.a)
	if !ok {
		t.Fatal("expected corpse")
	}
	testutil.AssertEqual(t, "corpse name", cp.Name, "A")
}

func TestCoordinator_ReviveOwnerOnDeathScreen(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.join(f.a, "A")
	f.join(f.b, "B", reviverWith(world.MaterialTotemOfUndying, 1))

	f.coord.OnDeath(ctx, f.a, "A", deathSpot)
	h := f.handleOf(t, f.a)
	f.coord.OnInteract(ctx, f.b, h)

	testutil.AssertEqual(t, "state", f.coord.State(f.a), StateRevivalPendingDelivery)
	target, retraction := f.coord.Pending(f.a)
	testutil.AssertEqual(t, "pending target", target, true)
	testutil.AssertEqual(t, "pending retraction", retraction, true)
	testutil.AssertEqual(t, "no immediate teleport", len(messagesOf[protocol.Teleport](f.tr, f.a)), 0)

	decision := f.coord.OnRespawn(ctx, f.a)
	testutil.AssertEqual(t, "respawn mode", decision.Mode, string(session.ModeActive))
	testutil.AssertEqual(t, "respawn at corpse", *decision.Location, deathSpot)
	f.sched.flush()

	removes := messagesOf[protocol.EntityRemove](f.tr, f.a)
	last := removes[len(removes)-1]
	testutil.AssertEqual(t, "retracted handle", last.Handles[0], int32(h))
	testutil.AssertEqual(t, "state after respawn", f.coord.State(f.a), StateAlive)
	target, retraction = f.coord.Pending(f.a)
	testutil.AssertEqual(t, "target consumed", target, false)
	testutil.AssertEqual(t, "retraction consumed", retraction, false)

	restores := messagesOf[protocol.Restore](f.tr, f.a)
	testutil.AssertEqual(t, "restored", len(restores), 1)
	inv := messagesOf[protocol.Invulnerable](f.tr, f.a)
	testutil.AssertEqual(t, "invulnerability toggled", len(inv), 2)

	// Reconnecting afterwards must not deliver again.
	f.coord.OnQuit(ctx, f.a)
	f.join(f.a, "A")
	f.sched.flush()
	testutil.AssertEqual(t, "single delivery", len(messagesOf[protocol.Restore](f.tr, f.a)), 1)
}

func TestCoordinator_JoinWhileDeadWaitsForRespawn(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.join(f.a, "A")
	f.join(f.b, "B", reviverWith(world.MaterialTotemOfUndying, 1))

	f.coord.OnDeath(ctx, f.a, "A", deathSpot)
	f.coord.OnQuit(ctx, f.a)
	f.coord.OnInteract(ctx, f.b, f.handleOf(t, f.a))

	f.join(f.a, "A", func(s *session.Session) {
		s.Dead = true
	})
	f.sched.flush()
	testutil.AssertEqual(t, "still pending", f.coord.State(f.a), StateRevivalPendingDelivery)

	decision := f.coord.OnRespawn(ctx, f.a)
	testutil.AssertEqual(t, "respawn at corpse", *decision.Location, deathSpot)
	testutil.AssertEqual(t, "state", f.coord.State(f.a), StateAlive)
}

func TestCoordinator_ReconnectWithOwnCorpse(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.join(f.a, "A")

	f.coord.OnDeath(ctx, f.a, "A", deathSpot)
	f.coord.OnQuit(ctx, f.a)
	f.sched.flush()

	f.join(f.a, "A")
	f.sched.flush()

	modes := messagesOf[protocol.GameMode](f.tr, f.a)
	testutil.AssertEqual(t, "forced spectator", modes[len(modes)-1].Mode, string(session.ModeSpectator))
	teleports := messagesOf[protocol.Teleport](f.tr, f.a)
	testutil.AssertEqual(t, "above corpse", teleports[len(teleports)-1].Location, deathSpot.Add(0, 1.5, 0))
	chats := f.tr.chats(f.a)
	if !strings.Contains(chats[len(chats)-1], "10, 64, 10") {
		t.Errorf("expected death coordinates, got %q", chats[len(chats)-1])
	}
	testutil.AssertEqual(t, "own corpse shown", len(messagesOf[protocol.EntityAppear](f.tr, f.a)), 2)
}

func TestCoordinator_SelfHealSpectatorWithoutCorpse(t *testing.T) {
	f := newFixture(t, nil)
	f.join(f.a, "A", func(s *session.Session) {
		s.Mode = session.ModeSpectator
	})
	f.sched.flush()

	modes := messagesOf[protocol.GameMode](f.tr, f.a)
	testutil.AssertEqual(t, "mode changes", len(modes), 1)
	testutil.AssertEqual(t, "active again", modes[0].Mode, string(session.ModeActive))
	a, _ := f.sessions.Get(f.a)
	testutil.AssertEqual(t, "session mode", a.Mode, session.ModeActive)
}

func TestCoordinator_DeathSupersedesCorpse(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.join(f.a, "A")
	f.join(f.b, "B")

	f.coord.OnDeath(ctx, f.a, "A", deathSpot)
	first := f.handleOf(t, f.a)
	f.coord.OnDeath(ctx, f.a, "A", world.Location{World: "W", X: -5, Y: 64, Z: -5})

	testutil.AssertEqual(t, "one corpse", f.registry.Len(), 1)
	c, _ := f.registry.Get(f.a)
	testutil.AssertEqual(t, "latest location", c.Location.X, -5.0)
	removes := messagesOf[protocol.EntityRemove](f.tr, f.b)
	testutil.AssertEqual(t, "old corpse removed", removes[0].Handles[0], int32(first))
}

func TestCoordinator_Admin(t *testing.T) {
	ctx := context.Background()

	t.Run("remove returns owner to play", func(t *testing.T) {
		f := newFixture(t, nil)
		f.join(f.a, "Alice")
		f.coord.OnDeath(ctx, f.a, "A", deathSpot)

		name, err := f.coord.RemoveByName(ctx, "alice")
		if err != nil {
			t.Fatalf("RemoveByName: %v", err)
		}
		testutil.AssertEqual(t, "name", name, "Alice")
		testutil.AssertEqual(t, "state", f.coord.State(f.a), StateAlive)
		modes := messagesOf[protocol.GameMode](f.tr, f.a)
		testutil.AssertEqual(t, "active", modes[len(modes)-1].Mode, string(session.ModeActive))
	})

	t.Run("unknown corpse", func(t *testing.T) {
		f := newFixture(t, nil)
		_, err := f.coord.RemoveByName(ctx, "nobody")
		if !errors.Is(err, ErrCorpseNotFound) {
			t.Errorf("expected ErrCorpseNotFound, got %v", err)
		}
		testutil.AssertErrorContains(t, err, "nobody")
	})

	t.Run("teleport", func(t *testing.T) {
		f := newFixture(t, nil)
		f.join(f.a, "A")
		f.join(f.b, "B")
		f.coord.OnDeath(ctx, f.a, "A", deathSpot)

		if _, err := f.coord.TeleportTo(ctx, "A", f.b); err != nil {
			t.Fatalf("TeleportTo: %v", err)
		}
		tps := messagesOf[protocol.Teleport](f.tr, f.b)
		testutil.AssertEqual(t, "teleported", tps[0].Location, deathSpot)

		_, err := f.coord.TeleportTo(ctx, "A", uuid.New())
		if !errors.Is(err, ErrNotOnline) {
			t.Errorf("expected ErrNotOnline, got %v", err)
		}
	})

	t.Run("force revive online", func(t *testing.T) {
		f := newFixture(t, nil)
		f.join(f.a, "A")
		f.coord.OnDeath(ctx, f.a, "A", deathSpot)
		f.coord.OnRespawn(ctx, f.a)

		if _, err := f.coord.ForceRevive(ctx, "A"); err != nil {
			t.Fatalf("ForceRevive: %v", err)
		}
		restores := messagesOf[protocol.Restore](f.tr, f.a)
		testutil.AssertEqual(t, "full health", restores[0].Health, 20.0)
		testutil.AssertEqual(t, "full food", restores[0].Food, adminFood)
		testutil.AssertEqual(t, "state", f.coord.State(f.a), StateAlive)
	})

	t.Run("force revive offline", func(t *testing.T) {
		f := newFixture(t, nil)
		f.join(f.a, "A")
		f.coord.OnDeath(ctx, f.a, "A", deathSpot)
		f.coord.OnQuit(ctx, f.a)

		if _, err := f.coord.ForceRevive(ctx, "A"); err != nil {
			t.Fatalf("ForceRevive: %v", err)
		}
		testutil.AssertEqual(t, "state", f.coord.State(f.a), StateRevivalPendingDelivery)
	})

	t.Run("names", func(t *testing.T) {
		f := newFixture(t, nil)
		f.join(f.a, "Alice")
		f.join(f.b, "Bob")
		f.coord.OnDeath(ctx, f.a, "A", deathSpot)
		f.coord.OnDeath(ctx, f.b, "B", world.Location{World: "W", X: 1, Y: 64, Z: 1})

		names := f.coord.Names("AL")
		testutil.AssertEqual(t, "matches", len(names), 1)
		testutil.AssertEqual(t, "match", names[0], "Alice")
	})
}

func TestCoordinator_ReloadAndShutdown(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "settings.json")
	settings := `{"safe_location_search_radius": 5, "corpse": {"glowing": true}, "messages": {"revived_other": "brought back {player}"}}`
	if err := os.WriteFile(path, []byte(settings), 0o644); err != nil {
		t.Fatal(err)
	}

	f := newFixture(t, nil, WithSettingsPath(path))
	f.join(f.a, "A")
	f.join(f.b, "B", reviverWith(world.MaterialTotemOfUndying, 1))
	f.coord.OnDeath(ctx, f.a, "A", deathSpot)
	old := f.handleOf(t, f.a)

	if err := f.coord.Reload(ctx); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	testutil.AssertEqual(t, "corpse kept", f.registry.Len(), 1)
	h := f.handleOf(t, f.a)
	removes := messagesOf[protocol.EntityRemove](f.tr, f.b)
	testutil.AssertEqual(t, "old entity removed", removes[0].Handles[0], int32(old))
	poses := messagesOf[protocol.EntityPose](f.tr, f.b)
	testutil.AssertEqual(t, "glowing after reload", poses[len(poses)-1].Glowing, true)
	testutil.AssertEqual(t, "swimming kept from defaults", poses[len(poses)-1].Pose, protocol.PoseSwimming)

	f.coord.OnInteract(ctx, f.b, h)
	chats := f.tr.chats(f.b)
	testutil.AssertEqual(t, "custom message", chats[len(chats)-1], "brought back A")

	f.coord.OnDeath(ctx, f.b, "B", deathSpot)
	f.coord.Shutdown(ctx)
	testutil.AssertEqual(t, "persisted", len(f.store.records), 1)
	c, _ := f.registry.Get(f.b)
	testutil.AssertEqual(t, "hidden", c.HasHandle(), false)
}

func TestCoordinator_ReloadRejectsBadSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	if err := os.WriteFile(path, []byte(`{"cooldown": "soon"}`), 0o644); err != nil {
		t.Fatal(err)
	}

	f := newFixture(t, nil, WithSettingsPath(path))
	err := f.coord.Reload(context.Background())
	testutil.AssertErrorContains(t, err, "cooldown")
}

func TestCoordinator_Updates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.join(f.a, "A")

	dead := true
	f.coord.OnSessionUpdate(ctx, f.a, protocol.SessionState{
		Dead: &dead,
		Held: &protocol.HeldItem{Material: "minecraft:PLAYER_HEAD", Amount: 2},
	})
	a, _ := f.sessions.Get(f.a)
	testutil.AssertEqual(t, "dead", a.Dead, true)
	testutil.AssertEqual(t, "held", a.Held, session.Item{Material: world.MaterialPlayerHead, Amount: 2})
	testutil.AssertEqual(t, "name kept", a.Name, "A")

	f.coord.OnBlockUpdate(ctx, protocol.BlockUpdate{World: "W", X: 10, Y: 63, Z: 10, Material: "lava"})
	g, _ := f.worlds.Grid("W")
	testutil.AssertEqual(t, "block set", g.BlockAt(world.BlockPos{X: 10, Y: 63, Z: 10}), world.MaterialLava)

	f.coord.OnDeath(ctx, f.a, "A", deathSpot)
	c, _ := f.registry.Get(f.a)
	if c.Location == deathSpot {
		t.Error("expected corpse to avoid the lava floor")
	}

	f.coord.OnWorldChange(ctx, f.a, world.Location{World: "nether"})
	a, _ = f.sessions.Get(f.a)
	testutil.AssertEqual(t, "world", a.Location.World, "nether")
}
