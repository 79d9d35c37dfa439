package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type memoryEntry struct {
	limiter      *rate.Limiter
	blockedUntil time.Time
	last         time.Time
}

// MemoryLimiter is the single-instance fallback when Redis is not configured.
// Each key gets a token bucket refilled at MaxAttempts per Window.
type MemoryLimiter struct {
	cfg     Config
	mu      sync.Mutex
	entries map[string]*memoryEntry
	now     func() time.Time
}

func NewMemoryLimiter(cfg Config) *MemoryLimiter {
	return &MemoryLimiter{
		cfg:     cfg.withDefaults(),
		entries: make(map[string]*memoryEntry),
		now:     time.Now,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e, ok := l.entries[key]
	if !ok {
		every := rate.Every(l.cfg.Window / time.Duration(l.cfg.MaxAttempts))
		e = &memoryEntry{limiter: rate.NewLimiter(every, l.cfg.MaxAttempts)}
		l.entries[key] = e
	}
	e.last = now

	if now.Before(e.blockedUntil) {
		return Decision{RetryAfter: e.blockedUntil.Sub(now)}, nil
	}

	r := e.limiter.ReserveN(now, 1)
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		retryAfter := delay
		if l.cfg.Block > 0 {
			e.blockedUntil = now.Add(l.cfg.Block)
			retryAfter = l.cfg.Block
		}
		return Decision{RetryAfter: retryAfter}, nil
	}

	remaining := int(math.Floor(e.limiter.TokensAt(now)))
	if remaining < 0 {
		remaining = 0
	}
	return Decision{Allowed: true, Remaining: remaining}, nil
}

// Sweep drops keys idle for longer than idle
func (l *MemoryLimiter) Sweep(idle time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.now().Add(-idle)
	for key, e := range l.entries {
		if e.last.Before(cutoff) && !e.blockedUntil.After(l.now()) {
			delete(l.entries, key)
		}
	}
}

// RunSweeper sweeps every interval until ctx is done
func (l *MemoryLimiter) RunSweeper(ctx context.Context, interval, idle time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			l.Sweep(idle)
		}
	}
}
