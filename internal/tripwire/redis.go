package tripwire

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/fenceline-lab/fenceline/internal/core/storage"
	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "fenceline:tripwire:"

// recordViolationScript performs window roll + increment + threshold
// flip as one atomic unit on the redis server. Timestamps and durations
// travel as unix milliseconds.
//
// KEYS[1] rule hash key
// ARGV[1] now (ms), ARGV[2] window (ms), ARGV[3] threshold
// Returns {violation_count, enabled, tripped, window_start, tripped_at}.
var recordViolationScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local threshold = tonumber(ARGV[3])

local ws = tonumber(redis.call('HGET', key, 'window_start'))
local count
if (not ws) or (now - ws >= window) then
  ws = now
  count = 1
  redis.call('HSET', key, 'window_start', ws, 'violation_count', 1)
else
  count = redis.call('HINCRBY', key, 'violation_count', 1)
end

local enabled = redis.call('HGET', key, 'enabled')
if not enabled then
  enabled = '1'
  redis.call('HSET', key, 'enabled', 1)
end

local tripped = 0
if enabled == '1' and count >= threshold then
  redis.call('HSET', key, 'enabled', 0, 'tripped_at', now)
  enabled = '0'
  tripped = 1
end

local trippedAt = tonumber(redis.call('HGET', key, 'tripped_at')) or 0
return {count, tonumber(enabled), tripped, ws, trippedAt}
`)

// RedisStore implements Store on redis. Each rule is one hash holding
// violation_count, window_start, enabled and tripped_at.
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

func (r *RedisStore) key(rule string) string {
	return r.keyPrefix + rule
}

func (r *RedisStore) GetOrInit(ctx context.Context, rule string, now time.Time) (*State, error) {
	fields, err := r.client.HGetAll(ctx, r.key(rule)).Result()
	if err != nil {
		return nil, storage.Unavailable(fmt.Errorf("get tripwire %s: %w", rule, err))
	}

	if len(fields) == 0 {
		st := &State{RuleName: rule, WindowStart: now, Enabled: true}
		err := r.client.HSet(ctx, r.key(rule),
			"violation_count", 0,
			"window_start", now.UnixMilli(),
			"enabled", 1,
			"tripped_at", 0,
		).Err()
		if err != nil {
			return nil, storage.Unavailable(fmt.Errorf("init tripwire %s: %w", rule, err))
		}
		return st, nil
	}

	return parseState(rule, fields)
}

func (r *RedisStore) RecordViolation(ctx context.Context, rule string, now time.Time, settings Settings) (*State, bool, error) {
	res, err := recordViolationScript.Run(ctx, r.client,
		[]string{r.key(rule)},
		now.UnixMilli(),
		settings.Window.Milliseconds(),
		settings.Threshold,
	).Int64Slice()
	if err != nil {
		return nil, false, storage.Unavailable(fmt.Errorf("record violation for %s: %w", rule, err))
	}
	if len(res) != 5 {
		return nil, false, fmt.Errorf("record violation for %s: unexpected script reply length %d", rule, len(res))
	}

	st := &State{
		RuleName:       rule,
		ViolationCount: int(res[0]),
		Enabled:        res[1] == 1,
		WindowStart:    time.UnixMilli(res[3]).UTC(),
	}
	if res[4] > 0 {
		st.TrippedAt = time.UnixMilli(res[4]).UTC()
	}
	return st, res[2] == 1, nil
}

func (r *RedisStore) Reset(ctx context.Context, rule string, now time.Time) error {
	err := r.client.HSet(ctx, r.key(rule),
		"violation_count", 0,
		"window_start", now.UnixMilli(),
		"enabled", 1,
		"tripped_at", 0,
	).Err()
	if err != nil {
		return storage.Unavailable(fmt.Errorf("reset tripwire %s: %w", rule, err))
	}
	return nil
}

// Ping reports store reachability for the health endpoint.
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

func parseState(rule string, fields map[string]string) (*State, error) {
	st := &State{RuleName: rule}

	count, err := strconv.Atoi(fields["violation_count"])
	if err != nil {
		return nil, fmt.Errorf("tripwire %s: corrupt violation_count %q", rule, fields["violation_count"])
	}
	st.ViolationCount = count

	ws, err := strconv.ParseInt(fields["window_start"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("tripwire %s: corrupt window_start %q", rule, fields["window_start"])
	}
	st.WindowStart = time.UnixMilli(ws).UTC()

	st.Enabled = fields["enabled"] == "1"

	if raw, ok := fields["tripped_at"]; ok && raw != "" && raw != "0" {
		ta, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("tripwire %s: corrupt tripped_at %q", rule, raw)
		}
		st.TrippedAt = time.UnixMilli(ta).UTC()
	}

	return st, nil
}
