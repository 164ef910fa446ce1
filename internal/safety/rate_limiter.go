// Package safety holds guards for calls leaving the process
package safety

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// RateLimiter implements token bucket rate limiting
type RateLimiter struct {
	capacity   float64   // Maximum number of tokens
	tokens     float64   // Current number of tokens
	refillRate float64   // Tokens added per second
	lastRefill time.Time // Last time tokens were added
	mutex      sync.Mutex
	name       string
	now        func() time.Time
}

// NewRateLimiter creates a limiter that starts full and refills refillRate tokens per second
func NewRateLimiter(name string, capacity int, refillRate float64) *RateLimiter {
	if capacity < 1 {
		capacity = 1
	}
	if refillRate <= 0 {
		refillRate = 1
	}
	return &RateLimiter{
		capacity:   float64(capacity),
		tokens:     float64(capacity),
		refillRate: refillRate,
		lastRefill: time.Now(),
		name:       name,
		now:        time.Now,
	}
}

// Allow checks if an operation is allowed under the rate limit
func (rl *RateLimiter) Allow() bool {
	return rl.AllowN(1)
}

// AllowN takes n tokens if they are available
func (rl *RateLimiter) AllowN(n int) bool {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	rl.refillTokens()
	if rl.tokens >= float64(n) {
		rl.tokens -= float64(n)
		return true
	}
	return false
}

// Wait blocks until an operation is allowed or ctx is done
func (rl *RateLimiter) Wait(ctx context.Context) error {
	return rl.WaitN(ctx, 1)
}

// WaitN blocks until n tokens are taken or ctx is done
func (rl *RateLimiter) WaitN(ctx context.Context, n int) error {
	if float64(n) > rl.capacity {
		return fmt.Errorf("rate limiter %s: %d tokens exceed capacity %.0f", rl.name, n, rl.capacity)
	}
	for {
		if rl.AllowN(n) {
			return nil
		}

		timer := time.NewTimer(rl.waitTime(n))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// refillTokens adds tokens for the time elapsed since the last refill
func (rl *RateLimiter) refillTokens() {
	now := rl.now()
	elapsed := now.Sub(rl.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	rl.tokens += elapsed * rl.refillRate
	if rl.tokens > rl.capacity {
		rl.tokens = rl.capacity
	}
	rl.lastRefill = now
}

// waitTime is how long until n tokens will be available
func (rl *RateLimiter) waitTime(n int) time.Duration {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	rl.refillTokens()
	missing := float64(n) - rl.tokens
	if missing <= 0 {
		return 0
	}
	return time.Duration(missing/rl.refillRate*float64(time.Second)) + time.Millisecond
}

// Stats returns current statistics about the rate limiter
func (rl *RateLimiter) Stats() RateLimiterStats {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	rl.refillTokens()
	return RateLimiterStats{
		Name:       rl.name,
		Capacity:   int(rl.capacity),
		Tokens:     rl.tokens,
		RefillRate: rl.refillRate,
		LastRefill: rl.lastRefill,
	}
}

// RateLimiterStats holds statistics about a rate limiter
type RateLimiterStats struct {
	Name       string
	Capacity   int
	Tokens     float64
	RefillRate float64
	LastRefill time.Time
}
