package cache

import (
	"context"
	"sync"

	"github.com/alanyoungcy/rwadiscovery/internal/domain"
)

// LocalBus is an in-process domain.EventBus. Slow subscribers drop messages
// rather than block publishers.
type LocalBus struct {
	mu   sync.RWMutex
	subs map[string][]chan []byte
}

func NewLocalBus() *LocalBus {
	return &LocalBus{subs: make(map[string][]chan []byte)}
}

func (b *LocalBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs[channel] {
		msg := make([]byte, len(payload))
		copy(msg, payload)
		select {
		case ch <- msg:
		default:
		}
	}
	return nil
}

func (b *LocalBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	ch := make(chan []byte, 128)
	b.mu.Lock()
	b.subs[channel] = append(b.subs[channel], ch)
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		defer b.mu.Unlock()
		list := b.subs[channel]
		for i, c := range list {
			if c == ch {
				b.subs[channel] = append(list[:i], list[i+1:]...)
				break
			}
		}
		close(ch)
	}()
	return ch, nil
}

var _ domain.EventBus = (*LocalBus)(nil)
