// Package memory holds in-process store implementations for development and
// tests.
package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/alanyoungcy/rwadiscovery/internal/domain"
)

// CollectionStore keeps user collections in a map.
type CollectionStore struct {
	mu    sync.RWMutex
	cards map[string][]domain.CollectionCard
}

func NewCollectionStore() *CollectionStore {
	return &CollectionStore{cards: make(map[string][]domain.CollectionCard)}
}

func (s *CollectionStore) Get(_ context.Context, address string) ([]domain.CollectionCard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src := s.cards[strings.ToLower(address)]
	out := make([]domain.CollectionCard, len(src))
	copy(out, src)
	return out, nil
}

func (s *CollectionStore) Append(_ context.Context, address string, card domain.CollectionCard) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(address)
	s.cards[key] = append(s.cards[key], card)
	return nil
}

var _ domain.CollectionStore = (*CollectionStore)(nil)
