package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestTokenBucketBurstThenRefill(t *testing.T) {
	c := &clock{t: time.Unix(1_700_000_000, 0)}
	tb := newTokenBucket(2, 1, c.now)

	assert.True(t, tb.Allow())
	assert.True(t, tb.Allow())
	assert.False(t, tb.Allow())
	assert.Equal(t, time.Second, tb.RetryAfter())

	c.advance(500 * time.Millisecond)
	assert.False(t, tb.Allow())

	c.advance(500 * time.Millisecond)
	assert.True(t, tb.Allow())
}

func TestTokenBucketNeverExceedsCapacity(t *testing.T) {
	c := &clock{t: time.Unix(1_700_000_000, 0)}
	tb := newTokenBucket(3, 10, c.now)

	c.advance(time.Hour)
	assert.Equal(t, 3.0, tb.Available())

	require.True(t, tb.AllowN(3))
	tb.Reset()
	assert.Equal(t, 3.0, tb.Available())
}

func TestKeyedLimiterIsolatesKeys(t *testing.T) {
	c := &clock{t: time.Unix(1_700_000_000, 0)}
	l := newKeyedLimiter(1, 0.5, time.Minute, c.now)

	ok, _ := l.Allow("10.0.0.1")
	require.True(t, ok)

	ok, wait := l.Allow("10.0.0.1")
	assert.False(t, ok)
	assert.Equal(t, 2*time.Second, wait)

	ok, _ = l.Allow("10.0.0.2")
	assert.True(t, ok)
}

func TestKeyedLimiterSweepsIdleKeys(t *testing.T) {
	c := &clock{t: time.Unix(1_700_000_000, 0)}
	l := newKeyedLimiter(5, 1, time.Minute, c.now)

	l.Allow("old")
	c.advance(2 * time.Minute)
	l.Allow("fresh")

	assert.Equal(t, 1, l.Sweep())
	assert.Equal(t, 1, l.Len())
}

func TestKeyedLimiterStopIsIdempotent(t *testing.T) {
	l := NewKeyedLimiter(1, 1, time.Minute)
	l.Stop()
	l.Stop()
}
