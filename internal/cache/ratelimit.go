package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/alanyoungcy/rwadiscovery/internal/domain"
)

// localSweepInterval spaces out scans for idle buckets.
const localSweepInterval = time.Minute

type bucket struct {
	lim    *rate.Limiter
	window time.Duration
	seen   time.Time
}

// LocalRateLimiter is the in-process counterpart of the Redis sliding-window
// limiter. Each key gets a token bucket refilling limit tokens per window.
// A bucket idle for a full window is back at full burst and is dropped.
type LocalRateLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
	now       func() time.Time
}

// NewLocalRateLimiter creates an empty LocalRateLimiter.
func NewLocalRateLimiter() *LocalRateLimiter {
	return &LocalRateLimiter{buckets: make(map[string]*bucket), now: time.Now}
}

// Allow reports whether one more request for key fits in the budget.
func (l *LocalRateLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	if limit <= 0 || window <= 0 {
		return true, nil
	}
	every := rate.Every(window / time.Duration(limit))
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) >= localSweepInterval {
		l.sweep(now)
	}
	b, ok := l.buckets[key]
	if !ok || b.lim.Burst() != limit || b.lim.Limit() != every {
		b = &bucket{lim: rate.NewLimiter(every, limit), window: window}
		l.buckets[key] = b
	}
	b.seen = now
	return b.lim.AllowN(now, 1), nil
}

func (l *LocalRateLimiter) sweep(now time.Time) {
	for k, b := range l.buckets {
		if now.Sub(b.seen) >= b.window {
			delete(l.buckets, k)
		}
	}
	l.lastSweep = now
}

var _ domain.RateLimiter = (*LocalRateLimiter)(nil)
