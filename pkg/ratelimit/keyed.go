package ratelimit

import (
	"sync"
	"time"
)

// KeyedLimiter keeps one token bucket per key (client address, e-mail) and
// forgets buckets that have been idle for longer than the idle TTL
type KeyedLimiter struct {
	capacity   float64
	refillRate float64
	idleTTL    time.Duration
	now        func() time.Time

	mu      sync.Mutex
	buckets map[string]*TokenBucket

	stopOnce sync.Once
	stop     chan struct{}
}

// NewKeyedLimiter creates a limiter and starts its sweeper. Call Stop to end it.
func NewKeyedLimiter(capacity, refillRate float64, idleTTL time.Duration) *KeyedLimiter {
	l := newKeyedLimiter(capacity, refillRate, idleTTL, time.Now)
	go l.sweepLoop()
	return l
}

func newKeyedLimiter(capacity, refillRate float64, idleTTL time.Duration, now func() time.Time) *KeyedLimiter {
	if idleTTL <= 0 {
		idleTTL = 10 * time.Minute
	}

	return &KeyedLimiter{
		capacity:   capacity,
		refillRate: refillRate,
		idleTTL:    idleTTL,
		now:        now,
		buckets:    make(map[string]*TokenBucket),
		stop:       make(chan struct{}),
	}
}

// Allow takes a token for key. When refused, it also returns how long the
// caller should wait.
func (l *KeyedLimiter) Allow(key string) (bool, time.Duration) {
	b := l.bucket(key)

	if b.Allow() {
		return true, 0
	}
	return false, b.RetryAfter()
}

// Len returns the number of tracked keys
func (l *KeyedLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.buckets)
}

// Sweep drops buckets idle for longer than the TTL and returns how many went
func (l *KeyedLimiter) Sweep() int {
	cutoff := l.now().Add(-l.idleTTL)

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, b := range l.buckets {
		if b.idleSince().Before(cutoff) {
			delete(l.buckets, key)
			removed++
		}
	}
	return removed
}

// Stop ends the sweeper
func (l *KeyedLimiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

func (l *KeyedLimiter) bucket(key string) *TokenBucket {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		b = newTokenBucket(l.capacity, l.refillRate, l.now)
		l.buckets[key] = b
	}
	return b
}

func (l *KeyedLimiter) sweepLoop() {
	ticker := time.NewTicker(l.idleTTL)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.Sweep()
		case <-l.stop:
			return
		}
	}
}
