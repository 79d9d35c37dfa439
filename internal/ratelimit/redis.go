package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// hitScript counts one attempt and returns the count with the window's
// remaining milliseconds. A counter found without a TTL gets one, so a key
// can never outlive its window.
var hitScript = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
	ttl = tonumber(ARGV[1])
end
return {n, ttl}
`)

type RedisLimiter struct {
	client *redis.Client
	cfg    Config
	prefix string
	logger *zap.Logger
}

// NewRedisLimiter creates a fixed-window limiter shared by every API instance
func NewRedisLimiter(client *redis.Client, cfg Config, logger *zap.Logger) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		cfg:    cfg.withDefaults(),
		prefix: "ratelimit:orders",
		logger: logger,
	}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	blockKey := l.blockKey(key)

	ttl, err := l.client.PTTL(ctx, blockKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return Decision{}, fmt.Errorf("redis pttl failed: %w", err)
	}
	if ttl > 0 {
		return Decision{RetryAfter: ttl}, nil
	}

	counterKey := l.counterKey(key)
	res, err := hitScript.Run(ctx, l.client, []string{counterKey}, l.cfg.Window.Milliseconds()).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("redis hit failed: %w", err)
	}

	count := int(res[0])
	if count <= l.cfg.MaxAttempts {
		return Decision{Allowed: true, Remaining: l.cfg.MaxAttempts - count}, nil
	}

	retryAfter := time.Duration(res[1]) * time.Millisecond
	if l.cfg.Block > 0 {
		if err := l.client.Set(ctx, blockKey, 1, l.cfg.Block).Err(); err != nil {
			return Decision{}, fmt.Errorf("redis set failed: %w", err)
		}
		retryAfter = l.cfg.Block
		l.logger.Warn("Client blocked after too many attempts",
			zap.String("key", key),
			zap.Int("attempts", count),
			zap.Duration("block", l.cfg.Block),
		)
	}
	if retryAfter <= 0 {
		retryAfter = l.cfg.Window
	}
	return Decision{RetryAfter: retryAfter}, nil
}

func (l *RedisLimiter) counterKey(key string) string {
	return fmt.Sprintf("%s:count:%s", l.prefix, key)
}

func (l *RedisLimiter) blockKey(key string) string {
	return fmt.Sprintf("%s:block:%s", l.prefix, key)
}

// Ping checks the connection, used at startup to pick a limiter
func Ping(ctx context.Context, client *redis.Client) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return client.Ping(ctx).Err()
}
