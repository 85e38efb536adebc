package scope

import (
	"context"
	"sync"
)

// MemoryStore keeps grants in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	grants map[string][]string
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{grants: make(map[string][]string)}
}

// GrantedScopes implements Store.
func (m *MemoryStore) GrantedScopes(_ context.Context, callerID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	scopes, ok := m.grants[callerID]
	if !ok {
		return nil, ErrUnknownCaller
	}
	return append([]string(nil), scopes...), nil
}

// Grant replaces the scopes granted by callerID.
func (m *MemoryStore) Grant(_ context.Context, callerID string, scopes ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.grants[callerID] = Normalize(scopes)
	return nil
}

// Revoke forgets callerID.
func (m *MemoryStore) Revoke(_ context.Context, callerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.grants, callerID)
	return nil
}
