package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"
)

// GetOrSet returns the live value cached under key, or invokes produce once,
// stores the sanitized result for ttl and returns it.
//
// Producer errors are returned unchanged and nothing is cached. Concurrent
// misses for the same key are not collapsed: each caller runs produce and the
// last Set wins.
func GetOrSet[T any](ctx context.Context, s Store, key string, ttl time.Duration, produce func(context.Context) (T, error)) (T, error) {
	if v, ok, err := Lookup[T](ctx, s, key); err == nil && ok {
		return v, nil
	}

	v, err := produce(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	// A failed write still returns the produced value; the next call recomputes.
	if err := Put(ctx, s, key, v, ttl); err != nil {
		slog.WarnContext(ctx, "cache write failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
	return v, nil
}

// Lookup decodes the live value under key into T.
func Lookup[T any](ctx context.Context, s Store, key string) (T, bool, error) {
	var v T
	raw, ok, err := s.Get(ctx, key)
	if err != nil {
		return v, false, fmt.Errorf("cache: get %s: %w", key, err)
	}
	if !ok {
		return v, false, nil
	}
	if err := decode(raw, &v); err != nil {
		return v, false, fmt.Errorf("cache: decode %s: %w", key, err)
	}
	return v, true, nil
}

// Put sanitizes v and stores it under key.
func Put(ctx context.Context, s Store, key string, v any, ttl time.Duration) error {
	data, err := Sanitize(v)
	if err != nil {
		return fmt.Errorf("cache: sanitize %s: %w", key, err)
	}
	if err := s.Set(ctx, key, data, ttl); err != nil {
		return fmt.Errorf("cache: set %s: %w", key, err)
	}
	return nil
}

// decode undoes Sanitize. Big integers stored as decimal strings are
// unquoted before a second attempt so *big.Int targets round-trip.
func decode(raw []byte, dst any) error {
	err := json.Unmarshal(raw, dst)
	if err == nil {
		return nil
	}
	var s string
	if json.Unmarshal(raw, &s) != nil {
		return err
	}
	if _, perr := strconv.ParseFloat(s, 64); perr != nil {
		return err
	}
	return json.Unmarshal([]byte(s), dst)
}
