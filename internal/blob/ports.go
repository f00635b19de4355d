// Package blob defines the passive attachment store: upload by path, issue a
// retrieval URL, delete by path.
package blob

import (
	"context"
	"io"
)

type Store interface {
	Put(ctx context.Context, path, contentType string, r io.Reader) error
	// URL returns a durable retrieval URL for an uploaded path.
	URL(ctx context.Context, path string) (string, error)
	// Delete removes the blob. Deleting a missing path returns core.ErrNotFound.
	Delete(ctx context.Context, path string) error
}
