package storage

import (
	"context"
	"errors"

	v1 "github.com/fenceline-lab/fenceline/internal/api/v1"
)

// ErrUnavailable marks a storage outage (log, user state, or tripwire
// store unreachable). The consumer treats it as fatal to the current
// attempt: retry with backoff, never advance the cursor past the event.
// Any other error from the pipeline is a processing failure and is
// logged and skipped.
var ErrUnavailable = errors.New("store unavailable")

// ErrCursorMissing is returned by CursorStore.Load before the first
// commit; callers start from position 0 (the beginning of the log).
var ErrCursorMissing = errors.New("consumer cursor not initialized")

// EventLog is the durable, append-only, strictly ordered event sequence.
type EventLog interface {
	// Append persists the event and returns its assigned log position.
	// Positions are strictly increasing and gapless from the log's
	// perspective. The event's LogPosition field is populated on return.
	Append(ctx context.Context, event *v1.Event) (int64, error)

	// ReadAfter fetches up to limit events with log_position > cursor,
	// ordered by log_position ASC. An empty slice means no new events
	// are available; the consumer polls again after its configured
	// interval.
	ReadAfter(ctx context.Context, cursor int64, limit int) ([]*v1.Event, error)
}

// CursorStore persists the single committed read position alongside the
// event log, so a restarted consumer resumes from the last acknowledged
// event. Commit happens strictly after an event's side effects are
// applied (at-least-once semantics).
type CursorStore interface {
	Load(ctx context.Context) (int64, error)
	Commit(ctx context.Context, position int64) error
}
