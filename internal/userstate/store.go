package userstate

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned by Get for a user with no record. The query
// layer maps it to default-allowed; it is not an outage.
var ErrNotFound = errors.New("user not found")

// Store persists per-user state. Save must be atomic with respect to
// concurrent readers: a Get issued while a Save is in flight observes
// either the old or the new record in full, never a torn mix. Both
// implementations get this for free by writing whole records (single-key
// SET in redis, pointer swap under lock in memory).
type Store interface {
	// Get returns the user's record, or ErrNotFound.
	// The query interface uses Get: reads never create state.
	Get(ctx context.Context, userID string) (*UserState, error)

	// GetOrCreate returns the user's record, lazily creating a default
	// one (all features allowed) on first reference. Used by the
	// consumer pipeline.
	GetOrCreate(ctx context.Context, userID string) (*UserState, error)

	// Save writes the whole record.
	Save(ctx context.Context, state *UserState) error

	// Count reports the number of known users.
	Count(ctx context.Context) (int64, error)
}

// StoreType identifies the state store backend.
type StoreType string

const (
	StoreTypeMemory StoreType = "memory"
	StoreTypeRedis  StoreType = "redis"
)

// RedisConfig holds redis connection settings for the user state store.
type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	KeyPrefix   string
	DialTimeout time.Duration
}

// Config selects and configures the store backend.
type Config struct {
	Type  StoreType
	Redis RedisConfig
}

// NewStore creates a Store based on configuration.
func NewStore(cfg Config) (Store, error) {
	switch cfg.Type {
	case StoreTypeMemory, "":
		return NewMemoryStore(), nil
	case StoreTypeRedis:
		return NewRedisStore(cfg.Redis)
	default:
		return nil, fmt.Errorf("unknown user state store type: %s", cfg.Type)
	}
}
