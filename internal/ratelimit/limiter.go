// Package ratelimit throttles order creation per client identifier.
package ratelimit

import (
	"context"
	"math"
	"time"
)

// Decision is the outcome of one attempt
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Limiter counts attempts per key
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// Config is the attempt budget. Exceeding MaxAttempts inside Window blocks the
// key for Block.
type Config struct {
	MaxAttempts int
	Window      time.Duration
	Block       time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts < 1 {
		c.MaxAttempts = 60
	}
	if c.Window <= 0 {
		c.Window = time.Minute
	}
	if c.Block < 0 {
		c.Block = 0
	}
	return c
}

// RetryAfterSeconds is the Retry-After header value for d, rounded up and
// never below one second.
func RetryAfterSeconds(d time.Duration) int {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}
