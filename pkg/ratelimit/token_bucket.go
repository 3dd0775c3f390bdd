package ratelimit

import (
	"math"
	"sync"
	"time"
)

// TokenBucket allows bursts up to its capacity and refills at a steady rate
type TokenBucket struct {
	capacity   float64
	refillRate float64 // tokens per second
	now        func() time.Time

	mu       sync.Mutex
	tokens   float64
	lastFill time.Time
	lastUsed time.Time
}

// NewTokenBucket creates a full bucket
func NewTokenBucket(capacity, refillRate float64) *TokenBucket {
	return newTokenBucket(capacity, refillRate, time.Now)
}

func newTokenBucket(capacity, refillRate float64, now func() time.Time) *TokenBucket {
	t := now()
	return &TokenBucket{
		capacity:   capacity,
		refillRate: refillRate,
		now:        now,
		tokens:     capacity,
		lastFill:   t,
		lastUsed:   t,
	}
}

// Allow takes one token if available
func (tb *TokenBucket) Allow() bool {
	return tb.AllowN(1)
}

// AllowN takes n tokens if available
func (tb *TokenBucket) AllowN(n float64) bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()
	tb.lastUsed = tb.lastFill

	if tb.tokens < n {
		return false
	}
	tb.tokens -= n
	return true
}

// Available returns the tokens that could be taken right now
func (tb *TokenBucket) Available() float64 {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()
	return tb.tokens
}

// RetryAfter is how long until one token is available
func (tb *TokenBucket) RetryAfter() time.Duration {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()
	if tb.tokens >= 1 {
		return 0
	}
	if tb.refillRate <= 0 {
		return time.Duration(math.MaxInt64)
	}

	return time.Duration((1 - tb.tokens) / tb.refillRate * float64(time.Second))
}

// Reset refills the bucket
func (tb *TokenBucket) Reset() {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.tokens = tb.capacity
	tb.lastFill = tb.now()
}

func (tb *TokenBucket) idleSince() time.Time {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	return tb.lastUsed
}

// refill must be called with mu held
func (tb *TokenBucket) refill() {
	now := tb.now()
	elapsed := now.Sub(tb.lastFill).Seconds()
	tb.lastFill = now

	if elapsed > 0 {
		tb.tokens = min(tb.capacity, tb.tokens+elapsed*tb.refillRate)
	}
}
