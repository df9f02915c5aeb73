package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/pixil98/go-revival/internal/world"
)

// EventsSubject carries every inbound host event.
const EventsSubject = "revival.events"

type EventType string

const (
	EventJoin          EventType = "join"
	EventQuit          EventType = "quit"
	EventDeath         EventType = "death"
	EventRespawn       EventType = "respawn"
	EventWorldChange   EventType = "world_change"
	EventInteract      EventType = "interact"
	EventSessionUpdate EventType = "session_update"
	EventBlockUpdate   EventType = "block_update"
	EventAdmin         EventType = "admin"
)

// Event is the inbound envelope. Events are always JSON.
type Event struct {
	Type    EventType       `json:"type"`
	Session uuid.UUID       `json:"session"`
	Body    json.RawMessage `json:"body,omitempty"`
}

func (e *Event) Decode(v any) error {
	if len(e.Body) == 0 {
		return fmt.Errorf("%s event has no body", e.Type)
	}
	if err := json.Unmarshal(e.Body, v); err != nil {
		return fmt.Errorf("decoding %s body: %w", e.Type, err)
	}
	return nil
}

func NewEvent(t EventType, session uuid.UUID, body any) (*Event, error) {
	e := &Event{Type: t, Session: session}
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding %s body: %w", t, err)
		}
		e.Body = raw
	}
	return e, nil
}

// SessionState is the body of join and session_update events. Nil fields in
// an update are left unchanged.
type SessionState struct {
	Name        string          `json:"name"`
	Location    *world.Location `json:"location,omitempty"`
	Mode        string          `json:"mode,omitempty"`
	Dead        *bool           `json:"dead,omitempty"`
	Health      *float64        `json:"health,omitempty"`
	MaxHealth   *float64        `json:"max_health,omitempty"`
	Food        *int            `json:"food,omitempty"`
	Permissions []string        `json:"permissions,omitempty"`
	Held        *HeldItem       `json:"held,omitempty"`
	Textures    *Textures       `json:"textures,omitempty"`
}

type HeldItem struct {
	Material string `json:"material"`
	Amount   int    `json:"amount"`
}

type Textures struct {
	Value     string `json:"value"`
	Signature string `json:"signature,omitempty"`
}

// Death reports where a participant died. Name lets the corpse be labelled
// when the session is not known yet.
type Death struct {
	Name     string         `json:"name,omitempty"`
	Location world.Location `json:"location"`
}

type WorldChange struct {
	Location world.Location `json:"location"`
}

type Interact struct {
	Handle int32 `json:"handle"`
}

type BlockUpdate struct {
	World    string `json:"world"`
	X        int    `json:"x"`
	Y        int    `json:"y"`
	Z        int    `json:"z"`
	Material string `json:"material"`
}

// AdminCommand runs Line, or lists completions for it when Complete is set.
type AdminCommand struct {
	Line     string `json:"line"`
	Complete bool   `json:"complete,omitempty"`
}

// Reply is sent for request/reply events.
type Reply struct {
	Error string `json:"error,omitempty"`
	Body  any    `json:"body,omitempty"`
}

// RespawnDecision tells the host where and how a participant respawns.
type RespawnDecision struct {
	Location *world.Location `json:"location,omitempty"`
	Mode     string          `json:"mode,omitempty"`
}

type AdminOutput struct {
	Output      string   `json:"output,omitempty"`
	Completions []string `json:"completions,omitempty"`
}
