package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/rwadiscovery/internal/cache"
)

// scanBatch is the COUNT hint for SCAN during prefix invalidation.
const scanBatch = 500

// Store implements cache.Store on Redis strings. Every key is prefixed with
// the namespace so several deployments can share one database.
//
// Expiry is delegated to Redis (SET PX), which also gives lazy deletion on
// read and background eviction for free.
type Store struct {
	rdb       *redis.Client
	namespace string
}

// NewStore creates a Store. An empty namespace defaults to "rwa:".
func NewStore(c *Client, namespace string) *Store {
	if namespace == "" {
		namespace = "rwa:"
	}
	if !strings.HasSuffix(namespace, ":") {
		namespace += ":"
	}
	return &Store{rdb: c.Underlying(), namespace: namespace}
}

func (s *Store) key(k string) string { return s.namespace + k }

// Get returns the value stored under key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := s.rdb.Get(ctx, s.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis: get %s: %w", key, err)
	}
	return data, true, nil
}

// Set stores value with a millisecond-precision expiry. A non-positive ttl
// stores the key without expiry.
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := s.rdb.Set(ctx, s.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("redis: set %s: %w", key, err)
	}
	return nil
}

// Exists reports whether key is present.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.rdb.Exists(ctx, s.key(key)).Result()
	if err != nil {
		return false, fmt.Errorf("redis: exists %s: %w", key, err)
	}
	return n > 0, nil
}

// Delete removes key.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("redis: delete %s: %w", key, err)
	}
	return nil
}

// Invalidate walks the keyspace with SCAN and deletes every key under prefix.
// Glob metacharacters in the prefix are escaped so only literal prefixes
// match.
func (s *Store) Invalidate(ctx context.Context, prefix string) (int, error) {
	pattern := escapeGlob(s.key(prefix)) + "*"

	removed := 0
	var cursor uint64
	for {
		keys, next, err := s.rdb.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			return removed, fmt.Errorf("redis: scan %s: %w", prefix, err)
		}
		if len(keys) > 0 {
			n, err := s.rdb.Del(ctx, keys...).Result()
			if err != nil {
				return removed, fmt.Errorf("redis: invalidate %s: %w", prefix, err)
			}
			removed += int(n)
		}
		cursor = next
		if cursor == 0 {
			return removed, nil
		}
	}
}

func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\', '^':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Compile-time interface check.
var _ cache.Store = (*Store)(nil)
