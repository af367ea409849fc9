package cache

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func newTestCache(maxEntries int) *Memory[string] {
	return NewMemory[string](Options{
		DefaultTTL: time.Minute,
		MaxEntries: maxEntries,
		// keep the sweep out of the way so lazy expiry is what is tested
		SweepInterval: time.Hour,
	})
}

func TestMemoryLazyExpiry(t *testing.T) {
	store := newTestCache(10)
	defer store.Destroy()
	ctx := context.Background()

	if err := store.Set(ctx, "k", "v", 100*time.Millisecond); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, ok, _ := store.Get(ctx, "k"); !ok {
		t.Fatalf("expected entry to be present before ttl elapsed")
	}

	time.Sleep(150 * time.Millisecond)

	if _, ok, _ := store.Get(ctx, "k"); ok {
		t.Fatalf("expected entry to expire without waiting for the sweep")
	}
	if ok, _ := store.Has(ctx, "k"); ok {
		t.Fatalf("has should report expired entries as absent")
	}
}

func TestMemoryCapacityEvictsOldestInsertion(t *testing.T) {
	store := newTestCache(2)
	defer store.Destroy()
	ctx := context.Background()

	_ = store.Set(ctx, "a", "1", 0)
	_ = store.Set(ctx, "b", "2", 0)
	// Overwriting "a" must not refresh its insertion position.
	_ = store.Set(ctx, "a", "1'", 0)
	_ = store.Set(ctx, "c", "3", 0)

	if n, _ := store.Len(ctx); n != 2 {
		t.Fatalf("expected 2 entries after eviction, got %d", n)
	}
	if _, ok, _ := store.Get(ctx, "a"); ok {
		t.Fatalf("expected oldest-inserted key a to be evicted")
	}
	for _, key := range []string{"b", "c"} {
		if _, ok, _ := store.Get(ctx, key); !ok {
			t.Fatalf("expected key %s to survive eviction", key)
		}
	}
}

func TestMemoryDeleteAndClear(t *testing.T) {
	store := newTestCache(10)
	defer store.Destroy()
	ctx := context.Background()

	_ = store.Set(ctx, "a", "1", 0)
	_ = store.Set(ctx, "b", "2", 0)

	if existed, _ := store.Delete(ctx, "a"); !existed {
		t.Fatalf("delete should report the entry existed")
	}
	if existed, _ := store.Delete(ctx, "a"); existed {
		t.Fatalf("second delete should report absence")
	}

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if n, _ := store.Len(ctx); n != 0 {
		t.Fatalf("expected empty cache after clear, got %d entries", n)
	}
}

func TestMemoryDestroyIdempotent(t *testing.T) {
	store := newTestCache(10)
	ctx := context.Background()
	_ = store.Set(ctx, "a", "1", 0)

	if err := store.Destroy(); err != nil {
		t.Fatalf("destroy: %v", err)
	}
	if err := store.Destroy(); err != nil {
		t.Fatalf("second destroy should be a no-op: %v", err)
	}
	if n, _ := store.Len(ctx); n != 0 {
		t.Fatalf("destroy should drop all entries, got %d", n)
	}
}

func TestMemorySweepRemovesExpiredEntries(t *testing.T) {
	store := NewMemory[string](Options{
		DefaultTTL:    10 * time.Millisecond,
		MaxEntries:    10,
		SweepInterval: 20 * time.Millisecond,
	})
	defer store.Destroy()
	ctx := context.Background()

	_ = store.Set(ctx, "a", "1", 0)
	_ = store.Set(ctx, "b", "2", 0)

	time.Sleep(80 * time.Millisecond)

	// Len counts stored entries without touching them, so a zero count
	// proves the sweep ran rather than lazy expiry.
	if n, _ := store.Len(ctx); n != 0 {
		t.Fatalf("expected sweep to remove expired entries, got %d", n)
	}
}

func TestMemoryOrderStaysBoundedUnderDeleteChurn(t *testing.T) {
	store := NewMemory[string](Options{
		DefaultTTL:    time.Minute,
		MaxEntries:    100,
		SweepInterval: time.Hour,
	})
	defer store.Destroy()
	ctx := context.Background()

	// A long-lived store below capacity must not retain an insertion
	// reference for every entry it ever saw.
	for i := 0; i < 10000; i++ {
		_ = store.Set(ctx, "k", "v", 0)
		_, _ = store.Delete(ctx, "k")
	}

	store.mu.Lock()
	entries := len(store.entries)
	orderLen := len(store.order)
	store.mu.Unlock()

	if entries != 0 {
		t.Fatalf("expected empty store after churn, got %d entries", entries)
	}
	if orderLen > 8 {
		t.Fatalf("expected stale insertion refs to be compacted, kept %d", orderLen)
	}
}

func TestMemoryOrderStaysBoundedUnderLazyExpiry(t *testing.T) {
	store := NewMemory[string](Options{
		DefaultTTL:    time.Minute,
		MaxEntries:    10000,
		SweepInterval: time.Hour,
	})
	defer store.Destroy()
	ctx := context.Background()

	for i := 0; i < 1000; i++ {
		_ = store.Set(ctx, fmt.Sprintf("k%d", i), "v", time.Nanosecond)
	}
	time.Sleep(5 * time.Millisecond)
	for i := 0; i < 1000; i++ {
		if _, ok, _ := store.Get(ctx, fmt.Sprintf("k%d", i)); ok {
			t.Fatalf("expected key k%d to be expired", i)
		}
	}

	store.mu.Lock()
	orderLen := len(store.order)
	store.mu.Unlock()
	if orderLen >= 1000 {
		t.Fatalf("expected lazy expiry to release insertion refs, kept %d", orderLen)
	}
}

func TestMemoryRejectsUseAfterDestroy(t *testing.T) {
	store := newTestCache(10)
	ctx := context.Background()
	if err := store.Destroy(); err != nil {
		t.Fatalf("destroy: %v", err)
	}

	if err := store.Set(ctx, "k", "v", 0); !errors.Is(err, ErrDestroyed) {
		t.Fatalf("expected ErrDestroyed from set, got %v", err)
	}
	if _, _, err := store.Get(ctx, "k"); !errors.Is(err, ErrDestroyed) {
		t.Fatalf("expected ErrDestroyed from get, got %v", err)
	}
	if _, err := store.Has(ctx, "k"); !errors.Is(err, ErrDestroyed) {
		t.Fatalf("expected ErrDestroyed from has, got %v", err)
	}
}

func TestGetOrSet(t *testing.T) {
	store := newTestCache(10)
	defer store.Destroy()
	ctx := context.Background()

	calls := 0
	supplier := func(context.Context) (string, error) {
		calls++
		return "value", nil
	}

	for i := 0; i < 3; i++ {
		value, err := GetOrSet(ctx, Store[string](store), "k", time.Minute, supplier)
		if err != nil {
			t.Fatalf("get or set: %v", err)
		}
		if value != "value" {
			t.Fatalf("unexpected value %q", value)
		}
	}
	if calls != 1 {
		t.Fatalf("expected supplier to run once, ran %d times", calls)
	}

	boom := errors.New("boom")
	if _, err := GetOrSet(ctx, Store[string](store), "missing", time.Minute, func(context.Context) (string, error) {
		return "", boom
	}); !errors.Is(err, boom) {
		t.Fatalf("expected supplier error to propagate, got %v", err)
	}
	if ok, _ := store.Has(ctx, "missing"); ok {
		t.Fatalf("failed supplier result must not be cached")
	}
}
