package tripwire

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory implementation of Store. The mutex makes
// RecordViolation's roll-increment-flip sequence indivisible.
type MemoryStore struct {
	mu    sync.Mutex
	rules map[string]*State
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rules: make(map[string]*State),
	}
}

func (m *MemoryStore) GetOrInit(ctx context.Context, rule string, now time.Time) (*State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := m.getOrInitLocked(rule, now)
	cp := *st
	return &cp, nil
}

func (m *MemoryStore) RecordViolation(ctx context.Context, rule string, now time.Time, settings Settings) (*State, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := m.getOrInitLocked(rule, now)

	if now.Sub(st.WindowStart) >= settings.Window {
		st.WindowStart = now
		st.ViolationCount = 1
	} else {
		st.ViolationCount++
	}

	tripped := false
	if st.Enabled && st.ViolationCount >= settings.Threshold {
		st.Enabled = false
		st.TrippedAt = now
		tripped = true
	}

	cp := *st
	return &cp, tripped, nil
}

func (m *MemoryStore) Reset(ctx context.Context, rule string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.rules[rule] = &State{
		RuleName:    rule,
		WindowStart: now,
		Enabled:     true,
	}
	return nil
}

func (m *MemoryStore) getOrInitLocked(rule string, now time.Time) *State {
	st, ok := m.rules[rule]
	if !ok {
		st = &State{
			RuleName:    rule,
			WindowStart: now,
			Enabled:     true,
		}
		m.rules[rule] = st
	}
	return st
}
