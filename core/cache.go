package core

import (
	"context"
	"time"
)

// Cache stores JSON-encodable values under string keys with an expiry.
type Cache interface {
	// Get decodes the cached value into dest; ok is false on a miss.
	Get(ctx context.Context, key string, dest interface{}) (ok bool, err error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}
