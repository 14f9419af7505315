package userstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fenceline-lab/fenceline/internal/core/storage"
	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "fenceline:user:"

// RedisStore implements Store on redis. Each user is one JSON value
// under a prefixed key; SET replaces the whole record in one command, so
// concurrent GETs from the query pool observe either the previous or the
// new record, never a torn write.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisStore connects to redis and verifies reachability.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	dialTimeout := cfg.DialTimeout
	if dialTimeout == 0 {
		dialTimeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	keyPrefix := cfg.KeyPrefix
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}

	return &RedisStore{client: client, keyPrefix: keyPrefix}, nil
}

func (r *RedisStore) key(userID string) string {
	return r.keyPrefix + userID
}

func (r *RedisStore) Get(ctx context.Context, userID string) (*UserState, error) {
	data, err := r.client.Get(ctx, r.key(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, storage.Unavailable(fmt.Errorf("get user %s: %w", userID, err))
	}

	var state UserState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("unmarshal user %s: %w", userID, err)
	}
	return &state, nil
}

func (r *RedisStore) GetOrCreate(ctx context.Context, userID string) (*UserState, error) {
	state, err := r.Get(ctx, userID)
	if err == nil {
		return state, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	state = New(userID)
	if err := r.Save(ctx, state); err != nil {
		return nil, err
	}
	return state, nil
}

func (r *RedisStore) Save(ctx context.Context, state *UserState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal user %s: %w", state.UserID, err)
	}
	if err := r.client.Set(ctx, r.key(state.UserID), data, 0).Err(); err != nil {
		return storage.Unavailable(fmt.Errorf("save user %s: %w", state.UserID, err))
	}
	return nil
}

func (r *RedisStore) Count(ctx context.Context) (int64, error) {
	var total int64
	var cursor uint64
	pattern := r.keyPrefix + "*"

	for {
		keys, nextCursor, err := r.client.Scan(ctx, cursor, pattern, 1000).Result()
		if err != nil {
			return 0, storage.Unavailable(fmt.Errorf("scan users: %w", err))
		}
		total += int64(len(keys))

		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}

	return total, nil
}

// Ping reports store reachability for the health endpoint.
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
