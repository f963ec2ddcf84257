package train

import "sync/atomic"

// Session holds the train the player is currently driving. It is the only
// state shared between locomotives.
type Session struct {
	active atomic.Pointer[Train]
}

// Active returns the active train, or nil.
func (s *Session) Active() *Train {
	return s.active.Load()
}

// SetActive makes t the active train. A nil t clears it.
func (s *Session) SetActive(t *Train) {
	s.active.Store(t)
}

// ActiveID returns the id of the active train, or "".
func (s *Session) ActiveID() string {
	if t := s.active.Load(); t != nil {
		return t.ID()
	}
	return ""
}

// Release clears the active train if it is t.
func (s *Session) Release(t *Train) {
	s.active.CompareAndSwap(t, nil)
}
