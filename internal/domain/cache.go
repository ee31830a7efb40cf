package domain

import (
	"context"
	"time"
)

// LockManager provides mutual exclusion across processes.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// EventBus fans pipeline events out to live subscribers.
type EventBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// Event channels published by the pipeline.
const (
	ChannelDiscoveryMinted = "discovery.minted"
	ChannelScanCompleted   = "scan.completed"
)

// RateLimiter admits at most limit requests per key within a sliding window.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
