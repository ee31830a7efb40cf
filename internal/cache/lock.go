package cache

import (
	"context"
	"sync"
	"time"

	"github.com/alanyoungcy/rwadiscovery/internal/domain"
)

// LocalLock is the single-process domain.LockManager used when no Redis is
// configured. Held keys expire after their ttl like the Redis lock does.
type LocalLock struct {
	mu    sync.Mutex
	held  map[string]time.Time
	now   func() time.Time
	token uint64
	owner map[string]uint64
}

// NewLocalLock creates an empty LocalLock.
func NewLocalLock() *LocalLock {
	return &LocalLock{
		held:  make(map[string]time.Time),
		owner: make(map[string]uint64),
		now:   time.Now,
	}
}

// Acquire returns domain.ErrLockHeld while another live holder has key.
func (l *LocalLock) Acquire(_ context.Context, key string, ttl time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if exp, ok := l.held[key]; ok && now.Before(exp) {
		return nil, domain.ErrLockHeld
	}
	l.token++
	tok := l.token
	l.held[key] = now.Add(ttl)
	l.owner[key] = tok

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			if l.owner[key] == tok {
				delete(l.held, key)
				delete(l.owner, key)
			}
		})
	}, nil
}

var _ domain.LockManager = (*LocalLock)(nil)
