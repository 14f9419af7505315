// Package consumer drives the event pipeline: it pulls events from the
// log in order, dispatches each through handler → rule engine →
// tripwire, and advances the committed cursor.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	v1 "github.com/fenceline-lab/fenceline/internal/api/v1"
	"github.com/fenceline-lab/fenceline/internal/core/storage"
	"github.com/fenceline-lab/fenceline/internal/handlers"
	"github.com/fenceline-lab/fenceline/internal/rules"
	"github.com/fenceline-lab/fenceline/internal/userstate"
)

// Options tunes the consumer loop.
type Options struct {
	// PollInterval bounds the blocking wait when the log has no new
	// events.
	PollInterval time.Duration

	// BatchSize caps how many events one read fetches. Processing and
	// commit remain strictly per-event.
	BatchSize int

	// RetryBackoff is the initial wait after a store failure; it
	// doubles per consecutive failure up to MaxBackoff.
	RetryBackoff time.Duration
	MaxBackoff   time.Duration
}

func (o Options) normalized() Options {
	if o.PollInterval <= 0 {
		o.PollInterval = time.Second
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 100
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = time.Second
	}
	if o.MaxBackoff < o.RetryBackoff {
		o.MaxBackoff = 30 * time.Second
	}
	return o
}

// Consumer is the single sequential worker: exactly one event is in
// flight through the pipeline at a time, which is what makes per-user
// ordering and tripwire counting deterministic without locking inside
// the pipeline.
type Consumer struct {
	log      storage.EventLog
	cursors  storage.CursorStore
	registry *handlers.Registry
	engine   *rules.Engine
	users    userstate.Store
	opts     Options

	mu      sync.RWMutex
	healthy bool
	lastErr error
}

func New(
	log storage.EventLog,
	cursors storage.CursorStore,
	registry *handlers.Registry,
	engine *rules.Engine,
	users userstate.Store,
	opts Options,
) *Consumer {
	return &Consumer{
		log:      log,
		cursors:  cursors,
		registry: registry,
		engine:   engine,
		users:    users,
		opts:     opts.normalized(),
		healthy:  true,
	}
}

// Run executes the consumption loop until ctx is cancelled. Shutdown is
// cooperative: the in-flight event is fully processed and its cursor
// committed before Run returns, so no event is left applied but
// uncommitted across a clean stop.
func (c *Consumer) Run(ctx context.Context) error {
	cursor, err := c.loadCursor(ctx)
	if err != nil {
		return err
	}

	slog.Info("[Consumer] Starting event consumption",
		"cursor", cursor,
		"poll_interval", c.opts.PollInterval,
		"batch_size", c.opts.BatchSize,
	)

	backoff := c.opts.RetryBackoff

	for {
		select {
		case <-ctx.Done():
			slog.Info("[Consumer] Stopping (context cancelled)", "cursor", cursor)
			return nil
		default:
		}

		events, err := c.log.ReadAfter(ctx, cursor, c.opts.BatchSize)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.setDegraded(err)
			slog.Error("[Consumer] Failed to read events, backing off",
				"cursor", cursor, "backoff", backoff, "error", err)
			if !sleep(ctx, backoff) {
				return nil
			}
			backoff = nextBackoff(backoff, c.opts.MaxBackoff)
			continue
		}

		if len(events) == 0 {
			c.setHealthy()
			backoff = c.opts.RetryBackoff
			if !sleep(ctx, c.opts.PollInterval) {
				return nil
			}
			continue
		}

		advanced, err := c.processBatch(ctx, events)
		if advanced > 0 {
			cursor = advanced
		}
		if err != nil {
			c.setDegraded(err)
			slog.Error("[Consumer] Store failure mid-batch, backing off without advancing",
				"cursor", cursor, "backoff", backoff, "error", err)
			if !sleep(ctx, backoff) {
				return nil
			}
			backoff = nextBackoff(backoff, c.opts.MaxBackoff)
			continue
		}

		c.setHealthy()
		backoff = c.opts.RetryBackoff
	}
}

// processBatch runs events through the pipeline one at a time,
// committing the cursor after each. Returns the highest committed
// position (0 if none) and the store error that interrupted the batch,
// if any. Processing failures in handlers or rules never interrupt: the
// event is logged and committed, and the loop proceeds.
func (c *Consumer) processBatch(ctx context.Context, events []*v1.Event) (int64, error) {
	var committed int64

	for _, evt := range events {
		// Once an event is picked up it is finished and committed even
		// if shutdown begins; cancellation is honored between events.
		eventCtx := context.WithoutCancel(ctx)

		if err := c.dispatch(eventCtx, evt); err != nil {
			if errors.Is(err, storage.ErrUnavailable) {
				return committed, err
			}
			// Processing bug in one event must not halt the pipeline.
			slog.Error("[Consumer] Event processing failed, skipping",
				"event_id", evt.ID,
				"name", evt.Name,
				"log_position", evt.LogPosition,
				"error", err)
		}

		if err := c.cursors.Commit(eventCtx, evt.LogPosition); err != nil {
			return committed, fmt.Errorf("commit cursor at %d: %w", evt.LogPosition, err)
		}
		committed = evt.LogPosition

		if ctx.Err() != nil {
			return committed, nil
		}
	}

	return committed, nil
}

// dispatch runs one event through handler and rules, then persists the
// user's record as a single write so readers never observe the
// handler's counter bump without the rules' flag clears (or vice versa).
func (c *Consumer) dispatch(ctx context.Context, evt *v1.Event) error {
	reg, ok := c.registry.Lookup(evt.Name)
	if !ok {
		// Not an error: unmatched events are committed and ignored.
		slog.Debug("[Consumer] No handler for event, ignoring",
			"name", evt.Name, "log_position", evt.LogPosition)
		return nil
	}

	userID, err := evt.UserID()
	if err != nil {
		// Submission validation should have rejected this; a log entry
		// predating validation is skipped, not fatal.
		return fmt.Errorf("event %s: %w", evt.ID, err)
	}

	state, err := c.users.GetOrCreate(ctx, userID)
	if err != nil {
		return fmt.Errorf("load user %s: %w", userID, err)
	}

	if err := reg.Handler.Handle(evt, state); err != nil {
		return fmt.Errorf("handle %s for user %s: %w", evt.Name, userID, err)
	}

	fired, err := c.engine.Run(ctx, reg.RuleNames, state)
	if err != nil {
		return fmt.Errorf("rules for %s: %w", evt.Name, err)
	}

	if err := c.users.Save(ctx, state); err != nil {
		return fmt.Errorf("save user %s: %w", userID, err)
	}

	slog.Info("[Consumer] Event processed",
		"event_id", evt.ID,
		"name", evt.Name,
		"user_id", userID,
		"log_position", evt.LogPosition,
		"rules_fired", fired,
	)
	return nil
}

func (c *Consumer) loadCursor(ctx context.Context) (int64, error) {
	backoff := c.opts.RetryBackoff

	for {
		cursor, err := c.cursors.Load(ctx)
		if err == nil {
			return cursor, nil
		}
		if errors.Is(err, storage.ErrCursorMissing) {
			return 0, nil
		}
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}

		c.setDegraded(err)
		slog.Error("[Consumer] Failed to load cursor, backing off",
			"backoff", backoff, "error", err)
		if !sleep(ctx, backoff) {
			return 0, ctx.Err()
		}
		backoff = nextBackoff(backoff, c.opts.MaxBackoff)
	}
}

// Healthy reports whether the last interaction with the stores
// succeeded. Surfaced through the health endpoint so operators see a
// paused pipeline.
func (c *Consumer) Healthy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.healthy
}

// LastError returns the store failure currently pausing the pipeline,
// or nil.
func (c *Consumer) LastError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

func (c *Consumer) setHealthy() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.healthy = true
	c.lastErr = nil
}

func (c *Consumer) setDegraded(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.healthy = false
	c.lastErr = err
}

func nextBackoff(current, max time.Duration) time.Duration {
	next := current * 2
	if next > max {
		return max
	}
	return next
}

// sleep waits for d or until ctx is cancelled; returns false on cancel.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
