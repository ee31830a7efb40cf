// Package cache provides the pipeline's TTL cache: a Store contract with an
// in-process implementation, typed get-or-set helpers that sanitize values
// before storage, and the key/TTL conventions shared by every component.
//
// One Store is created at process start by app.Wire and injected into every
// component that caches; it is never recreated.
package cache

import (
	"context"
	"time"
)

// Store is a key/value store with per-entry expiry. Values are opaque bytes;
// use GetOrSet, Put and Lookup to work with typed values.
type Store interface {
	// Get returns the live value for key. Expired entries are absent.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores value under key for ttl. A non-positive ttl never expires.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Exists reports whether a live entry exists for key.
	Exists(ctx context.Context, key string) (bool, error)
	// Delete removes key if present.
	Delete(ctx context.Context, key string) error
	// Invalidate removes every key starting with prefix and returns how many
	// were removed.
	Invalidate(ctx context.Context, prefix string) (int, error)
}
