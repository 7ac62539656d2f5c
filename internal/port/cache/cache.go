// Package cache defines the port interface for the read-through cache that
// sits in front of entity reads from the key/value store.
package cache

import (
	"context"
	"time"
)

// Cache is the port interface for byte caching. A miss is reported as
// ok == false with a nil error.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores value. A zero ttl leaves expiry to the backend.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
