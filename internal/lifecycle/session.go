package lifecycle

import (
	"github.com/google/uuid"
	"github.com/pixil98/go-revival/internal/identity"
	"github.com/pixil98/go-revival/internal/protocol"
	"github.com/pixil98/go-revival/internal/session"
	"github.com/pixil98/go-revival/internal/world"
)

// SessionFromState builds the session a join event describes.
func SessionFromState(id uuid.UUID, st protocol.SessionState) *session.Session {
	s := &session.Session{ID: id, Mode: session.ModeActive}
	applyState(s, st)
	return s
}

// applyState copies every field set in st onto s.
func applyState(s *session.Session, st protocol.SessionState) {
	if st.Name != "" {
		s.Name = st.Name
	}
	if st.Location != nil {
		s.Location = *st.Location
	}
	if st.Mode != "" {
		s.Mode = session.Mode(st.Mode)
	}
	if st.Dead != nil {
		s.Dead = *st.Dead
	}
	if st.Health != nil {
		s.Health = *st.Health
	}
	if st.MaxHealth != nil {
		s.MaxHealth = *st.MaxHealth
	}
	if st.Food != nil {
		s.Food = *st.Food
	}
	if st.Permissions != nil {
		s.Permissions = st.Permissions
	}
	if st.Held != nil {
		s.Held = session.Item{Material: world.ParseMaterial(st.Held.Material), Amount: st.Held.Amount}
	}
	if st.Textures != nil {
		s.Textures = &identity.Descriptor{Value: st.Textures.Value, Signature: st.Textures.Signature}
	}
}
