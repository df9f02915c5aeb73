package session

import (
	"slices"

	"github.com/google/uuid"
	"github.com/pixil98/go-revival/internal/identity"
	"github.com/pixil98/go-revival/internal/world"
)

type Mode string

const (
	ModeActive    Mode = "active"
	ModeSpectator Mode = "spectator"
)

type Item struct {
	Material world.Material `json:"material"`
	Amount   int            `json:"amount"`
}

func (i Item) Empty() bool {
	return i.Material == "" || i.Material == world.MaterialAir || i.Amount <= 0
}

// Session is the last state the host reported for a connected participant.
type Session struct {
	ID          uuid.UUID            `json:"id"`
	Name        string               `json:"name"`
	Location    world.Location       `json:"location"`
	Mode        Mode                 `json:"mode"`
	Dead        bool                 `json:"dead"`
	Health      float64              `json:"health"`
	MaxHealth   float64              `json:"max_health"`
	Food        int                  `json:"food"`
	Permissions []string             `json:"permissions,omitempty"`
	Held        Item                 `json:"held"`
	Textures    *identity.Descriptor `json:"textures,omitempty"`
}

func (s *Session) HasPermission(p string) bool {
	return slices.Contains(s.Permissions, p)
}

// Terminal reports whether the participant is on the death screen and will
// not process ordinary entity updates.
func (s *Session) Terminal() bool {
	return s.Dead
}

func (s *Session) Spectating() bool {
	return s.Mode == ModeSpectator
}

func (s *Session) clone() *Session {
	c := *s
	c.Permissions = slices.Clone(s.Permissions)
	if s.Textures != nil {
		t := *s.Textures
		c.Textures = &t
	}
	return &c
}
