package lifecycle

import (
	"github.com/google/uuid"
	"github.com/pixil98/go-revival/internal/corpse"
	"github.com/pixil98/go-revival/internal/world"
)

type State int

const (
	StateAlive State = iota
	StateAwaitingRevival
	StateRevivalPendingDelivery
)

func (s State) String() string {
	switch s {
	case StateAlive:
		return "alive"
	case StateAwaitingRevival:
		return "awaiting_revival"
	case StateRevivalPendingDelivery:
		return "revival_pending_delivery"
	default:
		return "unknown"
	}
}

// pending holds deliveries for an owner who could not receive them when the
// revival was granted. Both slots are cleared when read.
type pending struct {
	target     *world.Location
	retraction corpse.Handle
}

func (c *Coordinator) slot(owner uuid.UUID) *pending {
	p, ok := c.pending[owner]
	if !ok {
		p = &pending{}
		c.pending[owner] = p
	}
	return p
}

func (c *Coordinator) setTarget(owner uuid.UUID, loc world.Location) {
	c.slot(owner).target = &loc
}

func (c *Coordinator) setRetraction(owner uuid.UUID, h corpse.Handle) {
	if h == corpse.NoHandle {
		return
	}
	c.slot(owner).retraction = h
}

func (c *Coordinator) takeTarget(owner uuid.UUID) (world.Location, bool) {
	p, ok := c.pending[owner]
	if !ok || p.target == nil {
		return world.Location{}, false
	}
	loc := *p.target
	p.target = nil
	c.prune(owner, p)
	return loc, true
}

func (c *Coordinator) takeRetraction(owner uuid.UUID) corpse.Handle {
	p, ok := c.pending[owner]
	if !ok {
		return corpse.NoHandle
	}
	h := p.retraction
	p.retraction = corpse.NoHandle
	c.prune(owner, p)
	return h
}

func (c *Coordinator) prune(owner uuid.UUID, p *pending) {
	if p.target == nil && p.retraction == corpse.NoHandle {
		delete(c.pending, owner)
	}
}

// Pending reports which deliveries are outstanding for owner.
func (c *Coordinator) Pending(owner uuid.UUID) (target bool, retraction bool) {
	p, ok := c.pending[owner]
	if !ok {
		return false, false
	}
	return p.target != nil, p.retraction != corpse.NoHandle
}
