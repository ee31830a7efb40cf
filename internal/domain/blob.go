package domain

import (
	"context"
	"io"
)

// BlobWriter uploads data to object storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// MetadataPublisher stores a token metadata document and returns the URL a
// token's tokenURI should point at.
type MetadataPublisher interface {
	Publish(ctx context.Context, path string, document []byte) (string, error)
}
