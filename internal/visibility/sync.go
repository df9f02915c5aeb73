package visibility

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pixil98/go-revival/internal/corpse"
	"github.com/pixil98/go-revival/internal/identity"
	"github.com/pixil98/go-revival/internal/protocol"
	"github.com/pixil98/go-revival/internal/session"
)

// DefaultRetractDelay gives clients time to load textures before the
// transient identity is withdrawn.
const DefaultRetractDelay = 2 * time.Second

type Transport interface {
	Send(ctx context.Context, viewer uuid.UUID, msg protocol.Message) error
}

type Scheduler interface {
	Post(fn func(context.Context))
	After(delay time.Duration, fn func(context.Context))
}

type Viewers interface {
	Get(id uuid.UUID) (*session.Session, bool)
	Online(id uuid.UUID) bool
	InWorld(world string) []*session.Session
}

type Resolver interface {
	Lookup(owner uuid.UUID) (*identity.Descriptor, bool)
	ResolveAsync(ctx context.Context, owner uuid.UUID, post func(func()), cb func(*identity.Descriptor))
}

type Registry interface {
	Attach(c *corpse.Corpse) corpse.Handle
	Detach(c *corpse.Corpse) corpse.Handle
	ByHandle(h corpse.Handle) (*corpse.Corpse, bool)
	InWorld(world string) []*corpse.Corpse
	All() []*corpse.Corpse
}

type Appearance struct {
	SwimmingPose bool
	Glowing      bool
}

// display is the synthetic identity shown for one handle.
type display struct {
	id       uuid.UUID
	textures *identity.Descriptor
}

// Sync injects and retracts synthetic corpse entities for each viewer. It is
// owned by the simulation goroutine.
type Sync struct {
	registry     Registry
	viewers      Viewers
	resolver     Resolver
	transport    Transport
	sched        Scheduler
	appearance   Appearance
	retractDelay time.Duration

	displays map[corpse.Handle]*display
}

type SyncOpt func(*Sync)

func WithAppearance(a Appearance) SyncOpt {
	return func(s *Sync) {
		s.appearance = a
	}
}

func WithRetractDelay(d time.Duration) SyncOpt {
	return func(s *Sync) {
		s.retractDelay = d
	}
}

func NewSync(reg Registry, viewers Viewers, res Resolver, tr Transport, sched Scheduler, opts ...SyncOpt) *Sync {
	s := &Sync{
		registry:     reg,
		viewers:      viewers,
		resolver:     res,
		transport:    tr,
		sched:        sched,
		appearance:   Appearance{SwimmingPose: true},
		retractDelay: DefaultRetractDelay,
		displays:     map[corpse.Handle]*display{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Sync) SetAppearance(a Appearance) {
	s.appearance = a
}

// Show makes c visible to every viewer in its world, allocating a handle if
// it has none.
func (s *Sync) Show(ctx context.Context, c *corpse.Corpse) {
	h := s.registry.Attach(c)
	d := s.display(ctx, c, h)

	for _, v := range s.viewers.InWorld(c.Location.World) {
		s.announce(ctx, v.ID, c, h, d)
	}
}

// ShowTo re-announces c to a single viewer.
func (s *Sync) ShowTo(ctx context.Context, c *corpse.Corpse, viewer uuid.UUID) {
	h := s.registry.Attach(c)
	d := s.display(ctx, c, h)
	s.announce(ctx, viewer, c, h, d)
}

// ShowAllTo announces every corpse in the viewer's current world.
func (s *Sync) ShowAllTo(ctx context.Context, viewer uuid.UUID) {
	v, ok := s.viewers.Get(viewer)
	if !ok {
		return
	}
	for _, c := range s.registry.InWorld(v.Location.World) {
		s.ShowTo(ctx, c, viewer)
	}
}

// Hide releases c's handle and removes the entity from every viewer in its
// world. The handle is deregistered before anything is sent.
func (s *Sync) Hide(ctx context.Context, c *corpse.Corpse) {
	h := s.registry.Detach(c)
	if h == corpse.NoHandle {
		return
	}
	delete(s.displays, h)

	msg := protocol.EntityRemove{Handles: []int32{int32(h)}}
	for _, v := range s.viewers.InWorld(c.Location.World) {
		s.send(ctx, v.ID, msg)
	}
}

// CorpseRemoved satisfies corpse.Observer.
func (s *Sync) CorpseRemoved(ctx context.Context, c *corpse.Corpse) {
	s.Hide(ctx, c)
}

func (s *Sync) HideAll(ctx context.Context) {
	for _, c := range s.registry.All() {
		s.Hide(ctx, c)
	}
}

// Retract removes a handle from one viewer's view. It is used for viewers
// that could not process the original removal.
func (s *Sync) Retract(ctx context.Context, viewer uuid.UUID, h corpse.Handle) {
	if h == corpse.NoHandle {
		return
	}
	s.send(ctx, viewer, protocol.EntityRemove{Handles: []int32{int32(h)}})
}

func (s *Sync) ResolveInteraction(h corpse.Handle) (*corpse.Corpse, bool) {
	return s.registry.ByHandle(h)
}

// display returns the synthetic identity for h, creating it on first use.
// Missing textures are resolved in the background and re-announced.
func (s *Sync) display(ctx context.Context, c *corpse.Corpse, h corpse.Handle) *display {
	if d, ok := s.displays[h]; ok {
		return d
	}

	d := &display{id: uuid.New()}
	s.displays[h] = d

	if desc, ok := s.resolver.Lookup(c.Owner); ok {
		d.textures = desc
		return d
	}

	post := func(fn func()) {
		s.sched.Post(func(context.Context) { fn() })
	}
	s.resolver.ResolveAsync(ctx, c.Owner, post, func(desc *identity.Descriptor) {
		if desc == nil || c.Handle() != h || s.displays[h] != d {
			return
		}
		d.textures = desc
		slog.DebugContext(ctx, "re-announcing corpse with resolved textures", "name", c.Name, "handle", h)
		for _, v := range s.viewers.InWorld(c.Location.World) {
			s.announce(ctx, v.ID, c, h, d)
		}
	})

	return d
}

// announce sends the identity, appear and pose frames, then withdraws the
// identity after the retract delay if the viewer is still connected.
func (s *Sync) announce(ctx context.Context, viewer uuid.UUID, c *corpse.Corpse, h corpse.Handle, d *display) {
	pose := protocol.EntityPose{Handle: int32(h), Glowing: s.appearance.Glowing}
	if s.appearance.SwimmingPose {
		pose.Pose = protocol.PoseSwimming
	}

	seq := []protocol.Message{
		protocol.IdentityAnnounce{DisplayID: d.id, Name: c.Name, Listed: true, Textures: d.textures},
		protocol.EntityAppear{Handle: int32(h), DisplayID: d.id, Kind: protocol.KindHumanoid, Location: c.Location},
		pose,
	}
	for _, msg := range seq {
		if !s.send(ctx, viewer, msg) {
			return
		}
	}

	displayID := d.id
	s.sched.After(s.retractDelay, func(ctx context.Context) {
		if !s.viewers.Online(viewer) {
			return
		}
		s.send(ctx, viewer, protocol.IdentityRetract{DisplayIDs: []uuid.UUID{displayID}})
	})
}

func (s *Sync) send(ctx context.Context, viewer uuid.UUID, msg protocol.Message) bool {
	if err := s.transport.Send(ctx, viewer, msg); err != nil {
		slog.WarnContext(ctx, "failed to deliver to viewer", "viewer", viewer, "type", msg.Type(), "error", err)
		return false
	}
	return true
}
