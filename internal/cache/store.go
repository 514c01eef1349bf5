package cache

import (
	"context"
	"time"
)

// Store is the persistence behind the response cache. Implementations
// must be safe for concurrent use.
type Store interface {
	// Get returns the cached payload, or ok=false on miss or expiry.
	Get(ctx context.Context, key string) (payload []byte, ok bool, err error)
	// Set stores a payload with the given lifetime.
	Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error
	// Delete removes a single entry; absent keys are not an error.
	Delete(ctx context.Context, key string) error
	// Flush drops every entry.
	Flush(ctx context.Context) error
	// Len reports the number of live entries; -1 when unknown.
	Len(ctx context.Context) int
}
