package corpse

import (
	"time"

	"github.com/google/uuid"
	"github.com/pixil98/go-revival/internal/world"
)

// Handle is the process-local id of a corpse's synthetic entity. It is only
// meaningful while the process runs and is never persisted.
type Handle int32

const NoHandle Handle = 0

type Corpse struct {
	Owner     uuid.UUID
	Name      string
	Location  world.Location
	CreatedAt time.Time

	handle Handle
}

func (c *Corpse) Handle() Handle {
	return c.handle
}

func (c *Corpse) HasHandle() bool {
	return c.handle != NoHandle
}

func (c *Corpse) Age(now time.Time) time.Duration {
	return now.Sub(c.CreatedAt)
}
