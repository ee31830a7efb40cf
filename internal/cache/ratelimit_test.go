package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalRateLimiter(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewLocalRateLimiter()
	l.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := l.Allow(ctx, "scan:1.2.3.4", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok, "request %d", i)
	}
	ok, _ := l.Allow(ctx, "scan:1.2.3.4", 3, time.Minute)
	assert.False(t, ok)

	ok, _ = l.Allow(ctx, "scan:5.6.7.8", 3, time.Minute)
	assert.True(t, ok, "keys are independent")

	now = now.Add(20 * time.Second)
	ok, _ = l.Allow(ctx, "scan:1.2.3.4", 3, time.Minute)
	assert.True(t, ok, "one token refills per window/limit")
}

func TestLocalRateLimiterDisabled(t *testing.T) {
	ok, err := NewLocalRateLimiter().Allow(context.Background(), "k", 0, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLocalRateLimiterDropsIdleBuckets(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewLocalRateLimiter()
	l.now = func() time.Time { return now }
	ctx := context.Background()

	for _, ip := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"} {
		_, err := l.Allow(ctx, "scan:"+ip, 2, time.Minute)
		require.NoError(t, err)
	}
	assert.Len(t, l.buckets, 3)

	now = now.Add(30 * time.Second)
	_, _ = l.Allow(ctx, "scan:10.0.0.1", 2, time.Minute)
	now = now.Add(45 * time.Second)
	_, _ = l.Allow(ctx, "scan:10.0.0.4", 2, time.Minute)

	assert.Len(t, l.buckets, 2, "only buckets idle for a full window are dropped")
	assert.Contains(t, l.buckets, "scan:10.0.0.1")
	assert.Contains(t, l.buckets, "scan:10.0.0.4")
}
