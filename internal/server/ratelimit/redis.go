package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// allowScript admits a request only while the counter is below the limit.
// The first admitted request of a window sets the key's expiry, so the window
// starts at that request and the key disappears once it closes.
var allowScript = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
local limit = tonumber(ARGV[1])
if current >= limit then
  return {0, current, redis.call('PTTL', KEYS[1])}
end
current = redis.call('INCR', KEYS[1])
if current == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return {1, current, redis.call('PTTL', KEYS[1])}
`)

// RedisLimiter stores windows in Redis so that several server processes share
// one quota per key. Each decision is a single Lua script, which Redis runs
// atomically.
type RedisLimiter struct {
	rdb redis.Scripter
}

func NewRedisLimiter(rdb redis.Scripter) *RedisLimiter {
	return &RedisLimiter{rdb: rdb}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string, rate Rate) (Decision, error) {
	res, err := allowScript.Run(ctx, l.rdb, []string{key}, rate.Limit, rate.Window.Milliseconds()).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("redis limiter: %w", err)
	}
	if len(res) != 3 {
		return Decision{}, fmt.Errorf("redis limiter: unexpected reply %v", res)
	}

	retryAfter := time.Duration(res[2]) * time.Millisecond
	if res[2] < 0 {
		retryAfter = rate.Window
	}

	remaining := rate.Limit - int(res[1])
	if remaining < 0 {
		remaining = 0
	}

	return Decision{
		Allowed:    res[0] == 1,
		Limit:      rate.Limit,
		Remaining:  remaining,
		RetryAfter: retryAfter,
	}, nil
}

// NewRedisClient parses a redis:// URL and returns a connected client.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis url: %w", err)
	}

	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}
