// Package mask replaces PII with reversible opaque tokens and restores it.
package mask

import (
	"sync"

	"github.com/polisai/polis-pii/pkg/domain"
)

// Mapping associates mask tokens with the entities they replaced.
type Mapping map[string]domain.Entity

// Entry is one token of the store in insertion order.
type Entry struct {
	Token  string
	Entity domain.Entity
}

// Store is a session-scoped mask store. One session owns one Store; distinct
// sessions must never share an instance.
type Store struct {
	mu      sync.RWMutex
	entries map[string]domain.Entity
	order   []string
	seq     uint64
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		entries: make(map[string]domain.Entity),
	}
}

// Len returns the number of tokens held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Lookup returns the entity a token stands for.
func (s *Store) Lookup(token string) (domain.Entity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entity, ok := s.entries[token]
	return entity, ok
}

// Entries enumerates the store in insertion order.
func (s *Store) Entries() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Entry, 0, len(s.order))
	for _, token := range s.order {
		out = append(out, Entry{Token: token, Entity: s.entries[token]})
	}
	return out
}

// Mapping returns a copy of every token held by the store.
func (s *Store) Mapping() Mapping {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(Mapping, len(s.entries))
	for token, entity := range s.entries {
		out[token] = entity
	}
	return out
}

func (s *Store) put(token string, entity domain.Entity) {
	if _, exists := s.entries[token]; !exists {
		s.order = append(s.order, token)
	}
	s.entries[token] = entity
}
