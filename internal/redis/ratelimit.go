package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

type RateLimitConfig struct {
	MessageLimit  int
	MessageWindow time.Duration
	AuthLimit     int
	AuthWindow    time.Duration
}

func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MessageLimit:  60,
		MessageWindow: time.Minute,
		AuthLimit:     5,
		AuthWindow:    time.Minute,
	}
}

// RateLimiter is a fixed window counter per key.
type RateLimiter struct {
	client *goredis.Client
	config RateLimitConfig
}

type RateLimitResult struct {
	Allowed   bool
	Remaining int
	ResetIn   time.Duration
	Limit     int
}

// Increment and check in one round trip so concurrent requests cannot both
// take the last slot.
var limitScript = goredis.NewScript(`
	local current = tonumber(redis.call('GET', KEYS[1]) or '0')
	local limit = tonumber(ARGV[1])
	local window = tonumber(ARGV[2])
	if current >= limit then
		local ttl = redis.call('TTL', KEYS[1])
		if ttl < 0 then ttl = window end
		return {0, 0, ttl}
	end
	current = redis.call('INCR', KEYS[1])
	if current == 1 then
		redis.call('EXPIRE', KEYS[1], window)
	end
	local ttl = redis.call('TTL', KEYS[1])
	return {1, limit - current, ttl}
`)

func NewRateLimiter(client *goredis.Client, config RateLimitConfig) *RateLimiter {
	return &RateLimiter{client: client, config: config}
}

func (r *RateLimiter) AllowMessage(ctx context.Context, userID string) (*RateLimitResult, error) {
	return r.check(ctx, messageKey(userID), r.config.MessageLimit, r.config.MessageWindow)
}

func (r *RateLimiter) AllowAuth(ctx context.Context, ip string) (*RateLimitResult, error) {
	return r.check(ctx, authKey(ip), r.config.AuthLimit, r.config.AuthWindow)
}

func (r *RateLimiter) ResetAuth(ctx context.Context, ip string) error {
	return r.client.Del(ctx, authKey(ip)).Err()
}

func (r *RateLimiter) check(ctx context.Context, key string, limit int, window time.Duration) (*RateLimitResult, error) {
	if limit <= 0 {
		return &RateLimitResult{Allowed: true, Limit: limit}, nil
	}
	result, err := limitScript.Run(ctx, r.client, []string{key}, limit, int(window.Seconds())).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("rate limit check failed: %w", err)
	}
	if len(result) < 3 {
		return nil, fmt.Errorf("unexpected rate limit result %v", result)
	}
	return &RateLimitResult{
		Allowed:   result[0] == 1,
		Remaining: int(result[1]),
		ResetIn:   time.Duration(result[2]) * time.Second,
		Limit:     limit,
	}, nil
}

func messageKey(userID string) string {
	return fmt.Sprintf("ratelimit:%s:messages", userID)
}

func authKey(ip string) string {
	return fmt.Sprintf("ratelimit:%s:auth", ip)
}
