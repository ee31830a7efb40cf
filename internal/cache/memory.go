package cache

import (
	"context"
	"math/rand/v2"
	"strings"
	"sync"
	"time"
)

// DefaultSweepProbability is the chance that a Set also sweeps every expired
// entry. Expired entries are otherwise only removed when touched.
const DefaultSweepProbability = 0.01

type entry struct {
	value  []byte
	expiry time.Time // zero means no expiry
}

func (e entry) expired(now time.Time) bool {
	return !e.expiry.IsZero() && !now.Before(e.expiry)
}

// Memory is the in-process Store. It is safe for concurrent use; operations
// on different keys never observe each other beyond the shared mutex.
type Memory struct {
	mu      sync.Mutex
	entries map[string]entry

	now              func() time.Time
	random           func() float64
	sweepProbability float64
}

// Option configures a Memory store.
type Option func(*Memory)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Memory) { m.now = now }
}

// WithSweepProbability sets the per-Set sweep chance, clamped to [0,1].
func WithSweepProbability(p float64) Option {
	return func(m *Memory) {
		switch {
		case p < 0:
			p = 0
		case p > 1:
			p = 1
		}
		m.sweepProbability = p
	}
}

func withRandom(f func() float64) Option {
	return func(m *Memory) { m.random = f }
}

// NewMemory creates an empty in-process store.
func NewMemory(opts ...Option) *Memory {
	m := &Memory{
		entries:          make(map[string]entry),
		now:              time.Now,
		random:           rand.Float64,
		sweepProbability: DefaultSweepProbability,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get returns the live value for key, deleting it first if it has expired.
func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.liveLocked(key)
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, true, nil
}

// Set stores a copy of value. With probability sweepProbability it also
// removes every expired entry.
func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	stored := make([]byte, len(value))
	copy(stored, value)

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	e := entry{value: stored}
	if ttl > 0 {
		e.expiry = now.Add(ttl)
	}
	m.entries[key] = e

	if m.sweepProbability > 0 && m.random() < m.sweepProbability {
		m.sweepLocked(now)
	}
	return nil
}

// Exists treats an expired-but-present entry as absent and deletes it.
func (m *Memory) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.liveLocked(key)
	return ok, nil
}

// Delete removes key.
func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
	return nil
}

// Invalidate removes every key with the given prefix, live or expired.
func (m *Memory) Invalidate(_ context.Context, prefix string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for k := range m.entries {
		if strings.HasPrefix(k, prefix) {
			delete(m.entries, k)
			removed++
		}
	}
	return removed, nil
}

// Sweep removes all expired entries and returns how many were dropped.
func (m *Memory) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sweepLocked(m.now())
}

// Len counts stored entries, including expired ones not yet swept.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *Memory) liveLocked(key string) (entry, bool) {
	e, ok := m.entries[key]
	if !ok {
		return entry{}, false
	}
	if e.expired(m.now()) {
		delete(m.entries, key)
		return entry{}, false
	}
	return e, true
}

func (m *Memory) sweepLocked(now time.Time) int {
	removed := 0
	for k, e := range m.entries {
		if e.expired(now) {
			delete(m.entries, k)
			removed++
		}
	}
	return removed
}

// Compile-time interface check.
var _ Store = (*Memory)(nil)
