package corpse

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pixil98/go-errors"
	"github.com/pixil98/go-revival/internal/world"
)

// Record is the persisted form of a corpse.
type Record struct {
	Owner     string  `json:"owner"`
	Name      string  `json:"name"`
	World     string  `json:"world"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Z         float64 `json:"z"`
	Yaw       float32 `json:"yaw"`
	Pitch     float32 `json:"pitch"`
	CreatedAt int64   `json:"created_at"`
}

func (r *Record) Validate() error {
	el := errors.NewErrorList()

	if _, err := uuid.Parse(r.Owner); err != nil {
		el.Add(fmt.Errorf("owner: %w", err))
	}
	if r.Name == "" {
		el.Add(fmt.Errorf("name is required"))
	}
	if r.World == "" {
		el.Add(fmt.Errorf("world is required"))
	}
	if r.CreatedAt <= 0 {
		el.Add(fmt.Errorf("created_at must be set"))
	}

	return el.Err()
}

func newRecord(c *Corpse) *Record {
	return &Record{
		Owner:     c.Owner.String(),
		Name:      c.Name,
		World:     c.Location.World,
		X:         c.Location.X,
		Y:         c.Location.Y,
		Z:         c.Location.Z,
		Yaw:       c.Location.Yaw,
		Pitch:     c.Location.Pitch,
		CreatedAt: c.CreatedAt.UnixMilli(),
	}
}

func (r *Record) corpse() (*Corpse, error) {
	owner, err := uuid.Parse(r.Owner)
	if err != nil {
		return nil, fmt.Errorf("parsing owner: %w", err)
	}
	return &Corpse{
		Owner: owner,
		Name:  r.Name,
		Location: world.Location{
			World: r.World,
			X:     r.X,
			Y:     r.Y,
			Z:     r.Z,
			Yaw:   r.Yaw,
			Pitch: r.Pitch,
		},
		CreatedAt: time.UnixMilli(r.CreatedAt),
	}, nil
}
