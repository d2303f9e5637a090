// Package cartstore provides the keyed document store backing session carts.
// The store is injected into the cart service; there is no package-level
// client.
package cartstore

import (
	"context"
	"time"
)

// Store is a minimal keyed blob store with per-key expiry. Get must return
// (nil, nil) for an absent key so callers can distinguish "no cart yet" from
// a store failure.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	// Set writes the value and resets the key's TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete removes the key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
	// Touch resets the TTL without rewriting the value. Touching an absent
	// key is a no-op.
	Touch(ctx context.Context, key string, ttl time.Duration) error
}
