package session

import (
	"cmp"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/pixil98/go-revival/internal/identity"
	"golang.org/x/text/cases"
)

// Directory tracks connected sessions. Values handed out are copies; use
// Update to change a session.
type Directory struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
}

func NewDirectory() *Directory {
	return &Directory{
		sessions: make(map[uuid.UUID]*Session),
	}
}

// Join registers or replaces a session.
func (d *Directory) Join(s *Session) {
	d.mu.Lock()
	defer d.mu.Unlock()

	c := s.clone()
	if c.Mode == "" {
		c.Mode = ModeActive
	}
	d.sessions[s.ID] = c
}

// Leave removes a session and returns its final state.
func (d *Directory) Leave(id uuid.UUID) (*Session, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	s, ok := d.sessions[id]
	if !ok {
		return nil, false
	}
	delete(d.sessions, id)
	return s, true
}

func (d *Directory) Get(id uuid.UUID) (*Session, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	s, ok := d.sessions[id]
	if !ok {
		return nil, false
	}
	return s.clone(), true
}

func (d *Directory) Online(id uuid.UUID) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	_, ok := d.sessions[id]
	return ok
}

// ByName finds a session by case-folded display name.
func (d *Directory) ByName(name string) (*Session, bool) {
	fold := cases.Fold()
	want := fold.String(name)

	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, s := range d.sessions {
		if fold.String(s.Name) == want {
			return s.clone(), true
		}
	}
	return nil, false
}

// Update applies fn to the stored session. It returns false if the session is
// not connected.
func (d *Directory) Update(id uuid.UUID, fn func(*Session)) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	s, ok := d.sessions[id]
	if !ok {
		return false
	}
	fn(s)
	return true
}

// InWorld returns the sessions present in the named world, ordered by name.
func (d *Directory) InWorld(world string) []*Session {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var out []*Session
	for _, s := range d.sessions {
		if s.Location.World == world {
			out = append(out, s.clone())
		}
	}
	slices.SortFunc(out, func(a, b *Session) int { return cmp.Compare(a.Name, b.Name) })
	return out
}

func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.sessions)
}

// Textures satisfies identity.LocalSource.
func (d *Directory) Textures(owner uuid.UUID) (*identity.Descriptor, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	s, ok := d.sessions[owner]
	if !ok || !s.Textures.Valid() {
		return nil, false
	}
	t := *s.Textures
	return &t, true
}
