// Package cache holds short-lived analytics results keyed by organization.
// Values are opaque bytes; callers own the encoding.
package cache

import (
	"context"
	"time"
)

// Store is implemented by Memory and Redis.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}
