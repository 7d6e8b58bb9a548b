// Package sessions implements the per-request mutable key-value bag backing
// authenticated HTTP sessions. The bag is loaded by middleware at the start
// of a request, mutated through a narrow interface, and persisted at the end.
package sessions

import (
	"context"

	"github.com/google/uuid"
)

// Session is the narrow mutable view handed to services. Implementations are
// not safe for concurrent use; each request owns exactly one Session.
type Session interface {
	// ID returns the current session identifier.
	ID() string

	// Get returns the value stored under key and whether it was present.
	Get(key string) (string, bool)

	// Set stores value under key.
	Set(key, value string)

	// Delete removes key from the bag.
	Delete(key string)

	// Clear removes every key from the bag.
	Clear()

	// Regenerate assigns a fresh identifier while keeping the stored values,
	// invalidating the previous identifier on the next save. Used as a
	// session-fixation defense around privilege changes.
	Regenerate()
}

// Store persists sessions between requests.
type Store interface {
	// Load returns the session with the given identifier, or a fresh empty
	// session when id is empty or unknown.
	Load(ctx context.Context, id string) (Session, error)

	// Save persists the session and removes any identifiers abandoned by
	// Regenerate. An empty session is deleted rather than stored.
	Save(ctx context.Context, s Session) error
}

// bag is the shared Session implementation used by both stores.
type bag struct {
	id     string
	values map[string]string
	stale  []string
}

func newBag(id string, values map[string]string) *bag {
	if id == "" {
		id = uuid.NewString()
	}
	if values == nil {
		values = make(map[string]string)
	}
	return &bag{id: id, values: values}
}

func (b *bag) ID() string { return b.id }

func (b *bag) Get(key string) (string, bool) {
	v, ok := b.values[key]
	return v, ok
}

func (b *bag) Set(key, value string) { b.values[key] = value }

func (b *bag) Delete(key string) { delete(b.values, key) }

func (b *bag) Clear() {
	b.values = make(map[string]string)
}

func (b *bag) Regenerate() {
	b.stale = append(b.stale, b.id)
	b.id = uuid.NewString()
}
