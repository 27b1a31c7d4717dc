package cache

import (
	"context"
	"time"
)

// Store holds serialized query results grouped by invalidation tags.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration, tags []string) error
	InvalidateTags(ctx context.Context, tags ...string) error
}

// Invalidator is the write-side view of a Store.
type Invalidator interface {
	InvalidateTags(ctx context.Context, tags ...string) error
}
