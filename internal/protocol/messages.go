package protocol

import (
	"github.com/google/uuid"
	"github.com/pixil98/go-revival/internal/identity"
	"github.com/pixil98/go-revival/internal/world"
)

// Type names an outbound frame.
type Type string

const (
	TypeIdentityAnnounce Type = "identity_announce"
	TypeEntityAppear     Type = "entity_appear"
	TypeEntityPose       Type = "entity_pose"
	TypeIdentityRetract  Type = "identity_retract"
	TypeEntityRemove     Type = "entity_remove"

	TypeTeleport     Type = "teleport"
	TypeGameMode     Type = "game_mode"
	TypeRestore      Type = "restore"
	TypeInvulnerable Type = "invulnerable"
	TypeChat         Type = "chat"
	TypeConsumeItem  Type = "consume_item"
	TypeEffect       Type = "effect"
)

// Message is any outbound frame body.
type Message interface {
	Type() Type
}

const (
	KindHumanoid = "humanoid"
	PoseSwimming = "swimming"
	EffectTotem  = "totem"
)

// IdentityAnnounce introduces the display identity of a synthetic entity so
// the client can load its textures.
type IdentityAnnounce struct {
	DisplayID uuid.UUID            `json:"display_id"`
	Name      string               `json:"name"`
	Listed    bool                 `json:"listed"`
	Textures  *identity.Descriptor `json:"textures,omitempty"`
}

func (IdentityAnnounce) Type() Type { return TypeIdentityAnnounce }

type EntityAppear struct {
	Handle    int32          `json:"handle"`
	DisplayID uuid.UUID      `json:"display_id"`
	Kind      string         `json:"kind"`
	Location  world.Location `json:"location"`
}

func (EntityAppear) Type() Type { return TypeEntityAppear }

type EntityPose struct {
	Handle  int32  `json:"handle"`
	Pose    string `json:"pose,omitempty"`
	Glowing bool   `json:"glowing"`
}

func (EntityPose) Type() Type { return TypeEntityPose }

type IdentityRetract struct {
	DisplayIDs []uuid.UUID `json:"display_ids"`
}

func (IdentityRetract) Type() Type { return TypeIdentityRetract }

type EntityRemove struct {
	Handles []int32 `json:"handles"`
}

func (EntityRemove) Type() Type { return TypeEntityRemove }

type Teleport struct {
	Location world.Location `json:"location"`
}

func (Teleport) Type() Type { return TypeTeleport }

type GameMode struct {
	Mode string `json:"mode"`
}

func (GameMode) Type() Type { return TypeGameMode }

// Restore sets vitals. A zero Health leaves health unchanged.
type Restore struct {
	Health     float64 `json:"health,omitempty"`
	Food       int     `json:"food"`
	Saturation float32 `json:"saturation"`
}

func (Restore) Type() Type { return TypeRestore }

type Invulnerable struct {
	Enabled bool `json:"enabled"`
}

func (Invulnerable) Type() Type { return TypeInvulnerable }

type Chat struct {
	Text string `json:"text"`
}

func (Chat) Type() Type { return TypeChat }

type ConsumeItem struct {
	Material world.Material `json:"material"`
	Amount   int            `json:"amount"`
}

func (ConsumeItem) Type() Type { return TypeConsumeItem }

type Effect struct {
	Kind     string         `json:"kind"`
	Location world.Location `json:"location"`
}

func (Effect) Type() Type { return TypeEffect }
