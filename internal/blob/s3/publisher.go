package s3blob

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/alanyoungcy/rwadiscovery/internal/domain"
)

// Publisher uploads token metadata documents and returns their public URL.
type Publisher struct {
	writer  domain.BlobWriter
	baseURL string
}

// NewPublisher creates a Publisher that writes through w and serves objects
// from baseURL.
func NewPublisher(w domain.BlobWriter, baseURL string) *Publisher {
	return &Publisher{writer: w, baseURL: strings.TrimRight(baseURL, "/")}
}

// Publish stores document at path as JSON.
func (p *Publisher) Publish(ctx context.Context, path string, document []byte) (string, error) {
	path = strings.TrimLeft(path, "/")
	if err := p.writer.Put(ctx, path, bytes.NewReader(document), "application/json"); err != nil {
		return "", fmt.Errorf("s3blob: publish %s: %w", path, err)
	}
	return p.baseURL + "/" + path, nil
}

var _ domain.MetadataPublisher = (*Publisher)(nil)
