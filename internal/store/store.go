// Package store provides the shared key-value capability behind rate-limit
// counters and tagged cache entries. The distributed Redis variant is
// preferred; the in-process Memory variant is the explicit degraded fallback
// (instance-local consistency only).
//
// All cross-request mutable state lives behind this interface and is accessed
// only through atomic primitives; callers never read-modify-write across two
// separate store calls.
package store

import (
	"context"
	"time"
)

// Store is the capability handle injected into the limiter and cache at
// construction. Implementations must be safe for concurrent use.
type Store interface {
	// Name identifies the variant ("redis" or "memory") for logs/metrics.
	Name() string

	// Ping verifies connectivity. The memory variant always succeeds.
	Ping(ctx context.Context) error

	// Get returns the value for key, with found=false on miss or expiry.
	Get(ctx context.Context, key string) (value string, found bool, err error)

	// Set writes key with a ttl. ttl <= 0 means no expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Del removes keys. Missing keys are not an error.
	Del(ctx context.Context, keys ...string) error

	// IncrWindow atomically increments the counter at key, starting a window
	// of the given size on first increment. Returns the post-increment count
	// and the time remaining in the window.
	IncrWindow(ctx context.Context, key string, window time.Duration) (count int64, remaining time.Duration, err error)

	// AddTag associates keys with a logical tag.
	AddTag(ctx context.Context, tag string, keys ...string) error

	// InvalidateTag removes every key associated with tag, and the
	// association itself. Deleting more than was associated is safe;
	// deleting less is not.
	InvalidateTag(ctx context.Context, tag string) error
}
