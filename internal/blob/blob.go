// Package blob stores receipt binaries and issues time-limited signed
// retrieval URLs for them.
package blob

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound signals a missing object.
var ErrNotFound = errors.New("object not found")

// Object is a stored binary with its declared content type.
type Object struct {
	Key         string
	ContentType string
	Data        []byte
}

// Store is the blob-store port. Keys are slash-separated paths scoped to
// a single configured bucket.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) (*Object, error)

	// SignedURL returns a credential-free retrieval URL that expires
	// after ttl.
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}
