package ratelimiter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// consumeScript refills and consumes a bucket stored as a hash
// {tokens, last}. Times are unix milliseconds supplied by the caller so the
// script stays deterministic.
var consumeScript = redis.NewScript(`
local capacity = tonumber(ARGV[1])
local rate = tonumber(ARGV[2])
local interval = tonumber(ARGV[3])
local now = tonumber(ARGV[4])
local tokens = tonumber(ARGV[5])
local ttl = tonumber(ARGV[6])

local state = redis.call('HMGET', KEYS[1], 'tokens', 'last')
local current = tonumber(state[1])
local last = tonumber(state[2])
if current == nil or last == nil then
  current = capacity
  last = now
end

local elapsed = now - last
if elapsed >= interval then
  local intervals = math.floor(elapsed / interval)
  local cap = math.floor(capacity / rate) + 1
  if intervals > cap then intervals = cap end
  current = math.min(capacity, current + intervals * rate)
  if current == capacity then
    last = now
  else
    last = last + intervals * interval
  end
end

local allowed = 0
if current >= tokens then
  current = current - tokens
  allowed = 1
end

redis.call('HSET', KEYS[1], 'tokens', current, 'last', last)
redis.call('PEXPIRE', KEYS[1], ttl)
return {allowed, current, last + interval}
`)

// RedisStore keeps buckets in Redis so that several instances share quotas.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

// RedisStoreOption configures a RedisStore.
type RedisStoreOption func(*RedisStore)

// WithKeyPrefix namespaces bucket keys.
func WithKeyPrefix(prefix string) RedisStoreOption {
	return func(rs *RedisStore) { rs.prefix = prefix }
}

// WithRedisClock overrides the time source.
func WithRedisClock(now func() time.Time) RedisStoreOption {
	return func(rs *RedisStore) { rs.now = now }
}

// NewRedisStore creates a Redis backed store.
func NewRedisStore(client redis.UniversalClient, opts ...RedisStoreOption) *RedisStore {
	rs := &RedisStore{client: client, prefix: "ratelimit:", now: time.Now}
	for _, opt := range opts {
		opt(rs)
	}
	return rs
}

func (rs *RedisStore) Take(ctx context.Context, key string, tokens int, quota Quota) (Result, error) {
	if tokens < 0 {
		return Result{}, fmt.Errorf("%w: must not be negative, got %d", ErrInvalidTokenCount, tokens)
	}

	ttl := quota.idleTTL() + quota.RefillInterval
	vals, err := consumeScript.Run(ctx, rs.client, []string{rs.prefix + key},
		quota.Capacity,
		quota.RefillRate,
		quota.RefillInterval.Milliseconds(),
		rs.now().UnixMilli(),
		tokens,
		ttl.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return Result{}, errors.Join(ErrStoreUnavailable, err)
	}
	if len(vals) != 3 {
		return Result{}, fmt.Errorf("%w: unexpected script reply %v", ErrStoreUnavailable, vals)
	}

	return Result{
		Allowed:   vals[0] == 1,
		Limit:     quota.Capacity,
		Remaining: int(vals[1]),
		ResetAt:   time.UnixMilli(vals[2]),
	}, nil
}

func (rs *RedisStore) Reset(ctx context.Context, key string) error {
	if err := rs.client.Del(ctx, rs.prefix+key).Err(); err != nil {
		return errors.Join(ErrStoreUnavailable, err)
	}
	return nil
}
