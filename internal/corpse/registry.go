package corpse

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/pixil98/go-revival/internal/world"
)

const (
	DefaultSearchRadius = 50

	firstHandle = Handle(math.MaxInt32 - 10000)
)

// Store is the persistence the registry needs, satisfied by every
// storage.Storer[*Record].
type Store interface {
	Save(string, *Record) error
	Delete(string) error
	ReplaceAll(map[string]*Record) error
	Reload() error
	GetAll() map[string]*Record
}

// Observer is told about a corpse after it leaves the registry and before its
// handle is released.
type Observer interface {
	CorpseRemoved(ctx context.Context, c *Corpse)
}

// Registry owns the live corpse set. It is not safe for concurrent use; all
// calls are made from the simulation goroutine.
type Registry struct {
	store     Store
	worlds    world.Provider
	radius    int
	now       func() time.Time
	observers []Observer

	byOwner    map[uuid.UUID]*Corpse
	byHandle   map[Handle]*Corpse
	nextHandle Handle
}

type RegistryOpt func(*Registry)

func WithSearchRadius(r int) RegistryOpt {
	return func(reg *Registry) {
		reg.radius = r
	}
}

func WithClock(now func() time.Time) RegistryOpt {
	return func(reg *Registry) {
		reg.now = now
	}
}

func NewRegistry(store Store, worlds world.Provider, opts ...RegistryOpt) *Registry {
	r := &Registry{
		store:      store,
		worlds:     worlds,
		radius:     DefaultSearchRadius,
		now:        time.Now,
		byOwner:    map[uuid.UUID]*Corpse{},
		byHandle:   map[Handle]*Corpse{},
		nextHandle: firstHandle,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) Observe(o Observer) {
	r.observers = append(r.observers, o)
}

func (r *Registry) SetSearchRadius(radius int) {
	r.radius = radius
}

// Create places a corpse for owner at the nearest safe position to requested.
// Any corpse the owner already has is removed first.
func (r *Registry) Create(ctx context.Context, owner uuid.UUID, name string, requested world.Location) *Corpse {
	if _, ok := r.byOwner[owner]; ok {
		slog.WarnContext(ctx, "superseding existing corpse", "owner", owner, "name", name)
		r.Remove(ctx, owner)
	}

	loc := requested
	if w, ok := r.worlds.World(requested.World); ok {
		var found bool
		loc, found = world.FindSafeLocation(w, requested, r.radius)
		if !found {
			slog.WarnContext(ctx, "no safe location for corpse, using world spawn", "name", name, "requested", requested.String())
		}
	} else {
		slog.WarnContext(ctx, "corpse world is not loaded, using death location", "name", name, "world", requested.World)
	}

	c := &Corpse{
		Owner:     owner,
		Name:      name,
		Location:  loc,
		CreatedAt: r.now(),
	}
	r.byOwner[owner] = c

	if err := r.store.Save(owner.String(), newRecord(c)); err != nil {
		slog.ErrorContext(ctx, "failed to save corpse", "owner", owner, "error", err)
	}

	slog.InfoContext(ctx, "created corpse", "name", name, "location", loc.String())
	return c
}

// Remove deletes the owner's corpse, notifies observers and releases its
// handle.
func (r *Registry) Remove(ctx context.Context, owner uuid.UUID) (*Corpse, bool) {
	c, ok := r.byOwner[owner]
	if !ok {
		return nil, false
	}
	delete(r.byOwner, owner)

	for _, o := range r.observers {
		o.CorpseRemoved(ctx, c)
	}
	r.Detach(c)

	if err := r.store.Delete(owner.String()); err != nil {
		slog.ErrorContext(ctx, "failed to delete corpse", "owner", owner, "error", err)
	}

	return c, true
}

func (r *Registry) Get(owner uuid.UUID) (*Corpse, bool) {
	c, ok := r.byOwner[owner]
	return c, ok
}

func (r *Registry) ByHandle(h Handle) (*Corpse, bool) {
	if h == NoHandle {
		return nil, false
	}
	c, ok := r.byHandle[h]
	return c, ok
}

// All returns every live corpse, oldest first.
func (r *Registry) All() []*Corpse {
	all := make([]*Corpse, 0, len(r.byOwner))
	for _, c := range r.byOwner {
		all = append(all, c)
	}
	slices.SortFunc(all, func(a, b *Corpse) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.Owner.String(), b.Owner.String())
	})
	return all
}

// InWorld returns the live corpses in the named world, oldest first.
func (r *Registry) InWorld(name string) []*Corpse {
	var out []*Corpse
	for _, c := range r.All() {
		if c.Location.World == name {
			out = append(out, c)
		}
	}
	return out
}

func (r *Registry) Len() int {
	return len(r.byOwner)
}

// Attach allocates a handle for c if it does not hold one.
func (r *Registry) Attach(c *Corpse) Handle {
	if c.handle != NoHandle {
		return c.handle
	}
	for {
		h := r.nextHandle
		r.nextHandle--
		if r.nextHandle <= NoHandle {
			r.nextHandle = firstHandle
		}
		if _, used := r.byHandle[h]; !used {
			c.handle = h
			r.byHandle[h] = c
			return h
		}
	}
}

// Detach releases c's handle and returns it. Later ByHandle calls no longer
// resolve to c.
func (r *Registry) Detach(c *Corpse) Handle {
	h := c.handle
	if h == NoHandle {
		return NoHandle
	}
	if r.byHandle[h] == c {
		delete(r.byHandle, h)
	}
	c.handle = NoHandle
	return h
}

// Persist writes the full corpse set.
func (r *Registry) Persist(ctx context.Context) error {
	records := make(map[string]*Record, len(r.byOwner))
	for owner, c := range r.byOwner {
		records[owner.String()] = newRecord(c)
	}
	if err := r.store.ReplaceAll(records); err != nil {
		return fmt.Errorf("persisting corpses: %w", err)
	}
	slog.DebugContext(ctx, "persisted corpses", "count", len(records))
	return nil
}

// Load replaces the in-memory set with the stored one. Loaded corpses hold no
// handle; handles of replaced corpses are released without notifying
// observers.
func (r *Registry) Load(ctx context.Context) error {
	if err := r.store.Reload(); err != nil {
		return fmt.Errorf("loading corpses: %w", err)
	}

	loaded := map[uuid.UUID]*Corpse{}
	for id, rec := range r.store.GetAll() {
		c, err := rec.corpse()
		if err != nil {
			slog.WarnContext(ctx, "skipping unreadable corpse", "id", id, "error", err)
			continue
		}
		loaded[c.Owner] = c
	}

	for _, c := range r.byOwner {
		r.Detach(c)
	}
	r.byOwner = loaded
	r.byHandle = map[Handle]*Corpse{}

	slog.InfoContext(ctx, "loaded corpses", "count", len(loaded))
	return nil
}
