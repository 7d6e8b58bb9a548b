package sessions

import (
	"context"
	"sync"
)

// MemoryStore keeps sessions in process memory. Used in tests and single-node
// development runs; state does not survive a restart.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]map[string]string)}
}

func (s *MemoryStore) Load(_ context.Context, id string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == "" {
		return newBag("", nil), nil
	}
	stored, ok := s.sessions[id]
	if !ok {
		return newBag(id, nil), nil
	}
	values := make(map[string]string, len(stored))
	for k, v := range stored {
		values[k] = v
	}
	return newBag(id, values), nil
}

func (s *MemoryStore) Save(_ context.Context, sess Session) error {
	b, ok := sess.(*bag)
	if !ok {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, old := range b.stale {
		delete(s.sessions, old)
	}
	b.stale = nil
	if len(b.values) == 0 {
		delete(s.sessions, b.id)
		return nil
	}
	values := make(map[string]string, len(b.values))
	for k, v := range b.values {
		values[k] = v
	}
	s.sessions[b.id] = values
	return nil
}

// Has reports whether a session with the given identifier is stored.
func (s *MemoryStore) Has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[id]
	return ok
}
