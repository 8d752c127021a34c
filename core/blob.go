package core

import (
	"context"
	"io"
)

// BlobStore keeps uploaded file payloads (images, documents) outside of the database.
type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader, contentType string) error
	Delete(ctx context.Context, key string) error
	URL(key string) string
}
