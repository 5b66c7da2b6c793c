package documents

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound covers both a missing document and one the caller's org does
// not own. Callers must not be able to tell the difference.
var ErrNotFound = errors.New("document not found or access denied")

// Repository port (persistence)
type Repository interface {
	Save(ctx context.Context, d *Document) error
	// Get fetches by id without an access check. Used on the signed-URL path
	// where the signature itself is the capability.
	Get(ctx context.Context, id DocumentID) (*Document, error)
	// FindAccessible returns the document only when the user is a member of
	// the owning organization; ErrNotFound otherwise.
	FindAccessible(ctx context.Context, id DocumentID, userID string) (*Document, error)
}

// ObjectStore port (file bytes)
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Fetch(ctx context.Context, key string) (io.ReadCloser, error)
}
