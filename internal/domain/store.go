package domain

import "context"

// CollectionStore is the opaque per-user blob store for collected cards,
// keyed by lowercase user address.
type CollectionStore interface {
	Get(ctx context.Context, address string) ([]CollectionCard, error)
	Append(ctx context.Context, address string, card CollectionCard) error
}
