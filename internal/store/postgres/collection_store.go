package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/rwadiscovery/internal/domain"
)

// CollectionStore implements domain.CollectionStore. Each user's cards are
// one JSONB array keyed by lowercase address.
type CollectionStore struct {
	pool *pgxpool.Pool
}

// NewCollectionStore creates a CollectionStore backed by the given pool.
func NewCollectionStore(pool *pgxpool.Pool) *CollectionStore {
	return &CollectionStore{pool: pool}
}

// Get returns the user's cards in insertion order. An unknown address has an
// empty collection.
func (s *CollectionStore) Get(ctx context.Context, address string) ([]domain.CollectionCard, error) {
	const query = `SELECT cards FROM user_collections WHERE address = $1`

	var raw []byte
	err := s.pool.QueryRow(ctx, query, strings.ToLower(address)).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return []domain.CollectionCard{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get collection %s: %w", address, err)
	}

	cards := []domain.CollectionCard{}
	if err := json.Unmarshal(raw, &cards); err != nil {
		return nil, fmt.Errorf("postgres: decode collection %s: %w", address, err)
	}
	return cards, nil
}

// Append adds card to the end of the user's collection in one statement.
func (s *CollectionStore) Append(ctx context.Context, address string, card domain.CollectionCard) error {
	raw, err := json.Marshal([]domain.CollectionCard{card})
	if err != nil {
		return fmt.Errorf("postgres: encode card: %w", err)
	}

	const query = `
		INSERT INTO user_collections (address, cards, updated_at)
		VALUES ($1, $2::jsonb, NOW())
		ON CONFLICT (address) DO UPDATE
		SET cards = user_collections.cards || EXCLUDED.cards,
		    updated_at = NOW()`
	if _, err := s.pool.Exec(ctx, query, strings.ToLower(address), raw); err != nil {
		return fmt.Errorf("postgres: append card for %s: %w", address, err)
	}
	return nil
}

var _ domain.CollectionStore = (*CollectionStore)(nil)
