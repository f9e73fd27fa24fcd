package providers

import (
	"context"
	"time"
)

// CacheProvider defines the interface for the distributed cache tier. Any
// call may fail or time out; callers treat failures as misses, never as
// request errors.
type CacheProvider interface {
	// Get retrieves a value from cache
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in cache with a TTL
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// GetMulti retrieves several keys in one round trip; absent keys are
	// simply missing from the returned map
	GetMulti(ctx context.Context, keys []string) (map[string][]byte, error)

	// SetMulti stores several values in one round trip under a shared TTL
	SetMulti(ctx context.Context, items map[string][]byte, ttl time.Duration) error

	// Delete removes one or more keys from cache
	Delete(ctx context.Context, keys ...string) error
}
