// Package service holds the read-side services behind the HTTP API: user
// collections and asset listing/lookup.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/rwadiscovery/internal/cache"
	"github.com/alanyoungcy/rwadiscovery/internal/domain"
)

// CollectionService reads and extends per-user card collections.
type CollectionService struct {
	store  domain.CollectionStore
	cache  cache.Store
	ttl    time.Duration
	logger *slog.Logger
}

// NewCollectionService creates a CollectionService.
func NewCollectionService(store domain.CollectionStore, c cache.Store, ttl time.Duration, logger *slog.Logger) *CollectionService {
	return &CollectionService{
		store:  store,
		cache:  c,
		ttl:    ttl,
		logger: logger.With(slog.String("component", "collection_service")),
	}
}

// Cards returns the user's collection, cached under user-cards:{address}.
func (s *CollectionService) Cards(ctx context.Context, address string) ([]domain.CollectionCard, error) {
	addr, err := NormalizeAddress(address)
	if err != nil {
		return nil, err
	}
	cards, err := cache.GetOrSet(ctx, s.cache, cache.UserCardsKey(addr), s.ttl, func(ctx context.Context) ([]domain.CollectionCard, error) {
		return s.store.Get(ctx, addr)
	})
	if err != nil {
		return nil, fmt.Errorf("collection_service: cards %s: %w", addr, err)
	}
	return cards, nil
}

// AddCard appends card to the user's collection and drops the cached copy.
func (s *CollectionService) AddCard(ctx context.Context, address string, card domain.CollectionCard) error {
	addr, err := NormalizeAddress(address)
	if err != nil {
		return err
	}
	if err := s.store.Append(ctx, addr, card); err != nil {
		return fmt.Errorf("collection_service: add card %s: %w", addr, err)
	}
	if _, err := s.cache.Invalidate(ctx, cache.UserCardsKey(addr)); err != nil {
		// Non-fatal: the entry expires on its own.
		s.logger.WarnContext(ctx, "cache invalidate failed",
			slog.String("address", addr),
			slog.String("error", err.Error()),
		)
	}
	return nil
}

// NormalizeAddress lowercases a hex address, rejecting anything else with a
// ValidationError.
func NormalizeAddress(address string) (string, error) {
	if !common.IsHexAddress(address) {
		return "", &domain.ValidationError{Field: "address", Reason: "must be a 20-byte hex address"}
	}
	return strings.ToLower(address), nil
}
