package userstate

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory implementation of Store, used by tests and
// single-process deployments. Records are stored and returned as deep
// copies so callers can mutate freely and readers see whole records.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]*UserState
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users: make(map[string]*UserState),
	}
}

func (m *MemoryStore) Get(ctx context.Context, userID string) (*UserState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.users[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return state.Clone(), nil
}

func (m *MemoryStore) GetOrCreate(ctx context.Context, userID string) (*UserState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.users[userID]
	if !ok {
		state = New(userID)
		m.users[userID] = state
	}
	return state.Clone(), nil
}

func (m *MemoryStore) Save(ctx context.Context, state *UserState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.users[state.UserID] = state.Clone()
	return nil
}

func (m *MemoryStore) Count(ctx context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return int64(len(m.users)), nil
}
