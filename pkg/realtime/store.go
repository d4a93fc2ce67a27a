package realtime

import "sync"

// Entry holds one session's state and its broadcaster.
type Entry[T any] struct {
	ID    string
	State T
	hub   *Broadcaster
}

// Hub returns the entry's broadcaster.
func (e *Entry[T]) Hub() *Broadcaster {
	return e.hub
}

// Store manages live sessions and their broadcasters.
type Store[T any] struct {
	mu      sync.RWMutex
	entries map[string]*Entry[T]
}

// NewStore creates an empty store.
func NewStore[T any]() *Store[T] {
	return &Store[T]{
		entries: make(map[string]*Entry[T]),
	}
}

// Create adds a session with the given id and state, and a new Broadcaster.
func (s *Store[T]) Create(id string, state T) *Entry[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := &Entry[T]{ID: id, State: state, hub: NewBroadcaster()}
	s.entries[id] = e
	return e
}

// Get returns the session by ID if it exists.
func (s *Store[T]) Get(id string) (*Entry[T], bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	return e, ok
}

// Delete removes the session and closes its broadcaster. It reports whether
// the session existed.
func (s *Store[T]) Delete(id string) bool {
	s.mu.Lock()
	e, ok := s.entries[id]
	delete(s.entries, id)
	s.mu.Unlock()
	if ok {
		e.hub.Close()
	}
	return ok
}

// Len returns the number of live sessions.
func (s *Store[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// IDs returns the ids of all live sessions.
func (s *Store[T]) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	return ids
}
