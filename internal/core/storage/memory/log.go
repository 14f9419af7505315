package memory

import (
	"context"
	"sync"

	v1 "github.com/fenceline-lab/fenceline/internal/api/v1"
	"github.com/fenceline-lab/fenceline/internal/core/storage"
)

// Log is an in-memory implementation of storage.EventLog.
// Positions start at 1 and are gapless. Used by tests and the memory
// store backend for local development.
type Log struct {
	mu     sync.RWMutex
	events []*v1.Event
}

func NewLog() *Log {
	return &Log{}
}

func (l *Log) Append(ctx context.Context, event *v1.Event) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	stored := cloneEvent(event)
	stored.LogPosition = int64(len(l.events)) + 1
	l.events = append(l.events, stored)

	event.LogPosition = stored.LogPosition
	return stored.LogPosition, nil
}

func (l *Log) ReadAfter(ctx context.Context, cursor int64, limit int) ([]*v1.Event, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if cursor < 0 || cursor >= int64(len(l.events)) {
		return nil, nil
	}

	end := cursor + int64(limit)
	if end > int64(len(l.events)) {
		end = int64(len(l.events))
	}

	out := make([]*v1.Event, 0, end-cursor)
	for _, evt := range l.events[cursor:end] {
		out = append(out, cloneEvent(evt))
	}
	return out, nil
}

// Len reports the number of appended events.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.events)
}

func cloneEvent(event *v1.Event) *v1.Event {
	cp := *event
	cp.Properties = make(map[string]interface{}, len(event.Properties))
	for k, v := range event.Properties {
		cp.Properties[k] = v
	}
	return &cp
}

// Cursor is an in-memory implementation of storage.CursorStore.
type Cursor struct {
	mu        sync.Mutex
	position  int64
	committed bool
}

func NewCursor() *Cursor {
	return &Cursor{}
}

func (c *Cursor) Load(ctx context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.committed {
		return 0, storage.ErrCursorMissing
	}
	return c.position, nil
}

func (c *Cursor) Commit(ctx context.Context, position int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.position = position
	c.committed = true
	return nil
}
