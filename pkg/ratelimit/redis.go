package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const redisKeyPrefix = "ratelimit:"

// slidingWindowScript prunes, counts and conditionally records in one
// server-side step so concurrent callers against the same key cannot
// both pass the last remaining slot.
const slidingWindowScript = `local key = KEYS[1]
local now = tonumber(ARGV[1])
local retention = tonumber(ARGV[2])
local per_minute = tonumber(ARGV[3])
local per_hour = tonumber(ARGV[4])
local member = ARGV[5]

redis.call('ZREMRANGEBYSCORE', key, 0, now - retention)

local remaining = -1

if per_minute > 0 then
  local count = redis.call('ZCOUNT', key, now - 60, now)
  if count >= per_minute then
    local oldest = redis.call('ZRANGEBYSCORE', key, now - 60, now, 'LIMIT', 0, 1, 'WITHSCORES')
    return {1, 0, (tonumber(oldest[2]) + 60) - now}
  end
  remaining = per_minute - count - 1
end

if per_hour > 0 then
  local count = redis.call('ZCOUNT', key, now - 3600, now)
  if count >= per_hour then
    local oldest = redis.call('ZRANGEBYSCORE', key, now - 3600, now, 'LIMIT', 0, 1, 'WITHSCORES')
    return {1, 0, (tonumber(oldest[2]) + 3600) - now}
  end
  local r = per_hour - count - 1
  if remaining < 0 or r < remaining then remaining = r end
end

redis.call('ZADD', key, now, member)
redis.call('EXPIRE', key, retention)
return {0, remaining, 0}`

// RedisStore keeps the sliding window in a Redis sorted set per key, for
// deployments where several engine instances must share limits.
type RedisStore struct {
	redis        *redis.Client
	timeProvider func() time.Time
	uuidProvider func() uuid.UUID
}

type RedisStoreOpts struct {
	TimeProvider func() time.Time
	UuidProvider func() uuid.UUID
}

func NewRedisStore(redisClient *redis.Client, opts *RedisStoreOpts) *RedisStore {
	timeProvider := time.Now
	uuidProvider := uuid.New
	if opts != nil && opts.TimeProvider != nil {
		timeProvider = opts.TimeProvider
	}
	if opts != nil && opts.UuidProvider != nil {
		uuidProvider = opts.UuidProvider
	}
	return &RedisStore{
		redis:        redisClient,
		timeProvider: timeProvider,
		uuidProvider: uuidProvider,
	}
}

func (s *RedisStore) CheckAndRecord(ctx context.Context, key string, limits Limits) (Decision, error) {
	if !limits.Enabled() {
		return Decision{Remaining: -1}, nil
	}

	now := s.timeProvider()
	member := fmt.Sprintf("%d:%s", now.Unix(), s.uuidProvider().String())

	res, err := s.redis.Eval(ctx, slidingWindowScript,
		[]string{redisKeyPrefix + key},
		now.Unix(),
		int(limits.Retention().Seconds()),
		limits.PerMinute,
		limits.PerHour,
		member,
	).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit script failed for key %q: %w", key, err)
	}

	reply, ok := res.([]interface{})
	if !ok || len(reply) != 3 {
		return Decision{}, fmt.Errorf("unexpected rate limit script reply %T", res)
	}
	exceeded, _ := reply[0].(int64)
	remaining, _ := reply[1].(int64)
	retryAfter, _ := reply[2].(int64)

	return Decision{
		Exceeded:   exceeded == 1,
		Remaining:  int(remaining),
		RetryAfter: time.Duration(retryAfter) * time.Second,
	}, nil
}
