// Package theme persists the dark-mode preference. Every backend stores the
// literal string "true" or "false" under the key darkMode.
package theme

import (
	"errors"
	"fmt"
	"sync"
)

// Key is the fixed name the preference is stored under.
const Key = "darkMode"

// ErrInvalidValue is returned when a backend holds something other than
// "true" or "false".
var ErrInvalidValue = errors.New("invalid theme value")

// Store loads and saves the preference. A missing value loads as false.
type Store interface {
	Load() (bool, error)
	Save(dark bool) error
}

// Provider hands out stores scoped to a visitor or user.
type Provider interface {
	For(scope string) Store
}

func encode(dark bool) string {
	if dark {
		return "true"
	}
	return "false"
}

func decode(s string) (bool, error) {
	switch s {
	case "true":
		return true, nil
	case "false":
		return false, nil
	}
	return false, fmt.Errorf("%w: %q", ErrInvalidValue, s)
}

// MemoryStore keeps the preference in memory.
type MemoryStore struct {
	mu    sync.Mutex
	value string
}

// NewMemoryStore returns an empty store, or one preloaded with a raw value
// when raw is non-empty.
func NewMemoryStore(raw string) *MemoryStore {
	return &MemoryStore{value: raw}
}

func (m *MemoryStore) Load() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.value == "" {
		return false, nil
	}
	return decode(m.value)
}

func (m *MemoryStore) Save(dark bool) error {
	m.mu.Lock()
	m.value = encode(dark)
	m.mu.Unlock()
	return nil
}

// Raw returns the stored string.
func (m *MemoryStore) Raw() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.value
}

// MemoryProvider keeps one MemoryStore per scope.
type MemoryProvider struct {
	mu     sync.Mutex
	stores map[string]*MemoryStore
}

func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{stores: make(map[string]*MemoryStore)}
}

func (p *MemoryProvider) For(scope string) Store {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.stores[scope]
	if !ok {
		s = NewMemoryStore("")
		p.stores[scope] = s
	}
	return s
}
