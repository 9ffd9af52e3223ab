package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

var windowScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
return {current, ttl}
`)

const redisTimeout = 500 * time.Millisecond

// RedisLimiter shares windows across instances through Redis. When Redis
// fails the in-memory fallback answers so checkout traffic keeps flowing.
type RedisLimiter struct {
	client   redis.Scripter
	window   time.Duration
	prefix   string
	fallback *InMemoryLimiter
	onError  func(error)
}

// NewRedis builds a RedisLimiter. onError may be nil.
func NewRedis(client redis.Scripter, w time.Duration, onError func(error)) *RedisLimiter {
	if w <= 0 {
		w = time.Minute
	}
	return &RedisLimiter{
		client:   client,
		window:   w,
		prefix:   "ff:rl:",
		fallback: NewInMemory(w),
		onError:  onError,
	}
}

// Allow records a hit for key.
func (l *RedisLimiter) Allow(ctx context.Context, key string, limit int) Decision {
	if limit <= 0 {
		limit = 1
	}
	if l.client == nil {
		return l.fallback.Allow(ctx, key, limit)
	}

	ctx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()
	vals, err := windowScript.Run(ctx, l.client, []string{l.prefix + key}, l.window.Milliseconds()).Int64Slice()
	if err != nil || len(vals) < 2 {
		if err != nil && l.onError != nil {
			l.onError(err)
		}
		return l.fallback.Allow(ctx, key, limit)
	}

	ttl := time.Duration(vals[1]) * time.Millisecond
	if ttl < 0 {
		ttl = l.window
	}
	return decide(int(vals[0]), limit, time.Now().UTC().Add(ttl))
}
