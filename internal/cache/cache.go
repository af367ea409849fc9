package cache

import (
	"context"
	"time"
)

// Store is the contract shared by the in-process and Redis backed caches.
// Every entry carries its own TTL; a ttl of zero falls back to the store
// default. Implementations must treat an expired entry as absent.
type Store[V any] interface {
	// Set inserts or overwrites an entry. Overwriting never fails.
	Set(ctx context.Context, key string, value V, ttl time.Duration) error
	// Get returns the stored value unless the entry has expired, in which
	// case the entry is removed and absent is reported.
	Get(ctx context.Context, key string) (V, bool, error)
	// Has reports presence with the same expiry semantics as Get.
	Has(ctx context.Context, key string) (bool, error)
	// Delete removes the entry and reports whether it existed.
	Delete(ctx context.Context, key string) (bool, error)
	// Clear removes all entries.
	Clear(ctx context.Context) error
	// Len returns the number of stored entries, expired ones included
	// until the next access or sweep removes them.
	Len(ctx context.Context) (int, error)
	// Destroy releases background resources. Safe to call multiple times.
	Destroy() error
}

// GetOrSet returns the cached value when present, otherwise invokes the
// supplier, stores the result under the key and returns it. Two concurrent
// calls for the same missing key may both invoke the supplier: there is no
// single-flight guarantee.
func GetOrSet[V any](ctx context.Context, store Store[V], key string, ttl time.Duration, supplier func(context.Context) (V, error)) (V, error) {
	if value, ok, err := store.Get(ctx, key); err != nil {
		var zero V
		return zero, err
	} else if ok {
		return value, nil
	}
	value, err := supplier(ctx)
	if err != nil {
		var zero V
		return zero, err
	}
	if err := store.Set(ctx, key, value, ttl); err != nil {
		return value, err
	}
	return value, nil
}
