package tripwire

import (
	"context"
	"fmt"
	"time"
)

// Store persists breaker state. RecordViolation is the critical
// operation: the window roll, the count increment and the threshold flip
// must be indivisible so two near-simultaneous violations cannot both
// slip past the threshold. The redis backend runs it as a Lua script;
// the memory backend holds a mutex.
type Store interface {
	// GetOrInit returns the rule's breaker state, lazily materializing
	// an enabled record (fail-open default) on first reference.
	GetOrInit(ctx context.Context, rule string, now time.Time) (*State, error)

	// RecordViolation applies one violation at time now under the given
	// settings and returns the post-update state plus whether this call
	// flipped the breaker to disabled.
	RecordViolation(ctx context.Context, rule string, now time.Time, settings Settings) (*State, bool, error)

	// Reset re-enables the rule and starts a fresh empty window.
	Reset(ctx context.Context, rule string, now time.Time) error
}

// StoreType identifies the tripwire store backend.
type StoreType string

const (
	StoreTypeMemory StoreType = "memory"
	StoreTypeRedis  StoreType = "redis"
)

// RedisConfig holds redis connection settings for the tripwire store.
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
		return nil, fmt.Errorf("unknown tripwire store type: %s", cfg.Type)
	}
}
