package core

import (
	"sync"

	"github.com/google/uuid"
)

// Session holds the conversation identifier the backend uses to correlate
// successive analyze calls. Exactly one identifier is live at a time.
type Session struct {
	mu  sync.Mutex
	id  string
	gen func() string
}

// NewSession returns a session that mints UUIDv4 identifiers.
func NewSession() *Session {
	return &Session{gen: uuid.NewString}
}

// newSessionWithGenerator is used by tests to control identifiers.
func newSessionWithGenerator(gen func() string) *Session {
	return &Session{gen: gen}
}

// Current returns the live identifier, creating one on first use.
func (s *Session) Current() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.id == "" {
		s.id = s.next("")
	}
	return s.id
}

// Renew discards the live identifier and installs a new one.
// The new identifier always differs from the one it replaces.
func (s *Session) Renew() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.id = s.next(s.id)
	return s.id
}

// Adopt installs a caller-supplied identifier, e.g. one passed on the command
// line to continue an earlier conversation. Empty ids are ignored.
func (s *Session) Adopt(id string) {
	if id == "" {
		return
	}
	s.mu.Lock()
	s.id = id
	s.mu.Unlock()
}

func (s *Session) next(prev string) string {
	gen := s.gen
	if gen == nil {
		gen = uuid.NewString
	}
	for {
		id := gen()
		if id != "" && id != prev {
			return id
		}
	}
}
