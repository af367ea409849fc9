package cache

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrDestroyed is returned by operations on a store whose Destroy has
// already run.
var ErrDestroyed = errors.New("cache: store destroyed")

const (
	// DefaultTTL is applied to entries stored without an explicit TTL.
	DefaultTTL = 5 * time.Minute
	// DefaultMaxEntries bounds the number of entries held in memory.
	DefaultMaxEntries = 1000
	// DefaultSweepInterval is how often the background sweep evicts
	// expired entries regardless of access.
	DefaultSweepInterval = time.Minute
)

// Options configures a Memory store.
type Options struct {
	DefaultTTL    time.Duration
	MaxEntries    int
	SweepInterval time.Duration
}

func (o *Options) applyDefaults() {
	if o.DefaultTTL <= 0 {
		o.DefaultTTL = DefaultTTL
	}
	if o.MaxEntries <= 0 {
		o.MaxEntries = DefaultMaxEntries
	}
	if o.SweepInterval <= 0 {
		o.SweepInterval = DefaultSweepInterval
	}
}

type entry[V any] struct {
	value    V
	storedAt time.Time
	ttl      time.Duration
	seq      uint64
}

func (e entry[V]) expired(now time.Time) bool {
	return now.Sub(e.storedAt) > e.ttl
}

type orderRef struct {
	key string
	seq uint64
}

// Memory is a mutex guarded in-process TTL store. Expiry is checked lazily
// on access; a background sweep additionally removes expired entries on a
// fixed interval. When the store is full the entry with the oldest
// insertion order is evicted, not the least recently used one.
type Memory[V any] struct {
	mu      sync.Mutex
	entries map[string]entry[V]
	// order holds insertion references oldest first. Overwrites keep the
	// original insertion position; stale references are skipped on evict
	// and compacted away once they outnumber the live ones.
	order     []orderRef
	stale     int
	nextSeq   uint64
	opts      Options
	done      chan struct{}
	destroyed bool
}

// NewMemory constructs the store and starts its sweep timer.
func NewMemory[V any](opts Options) *Memory[V] {
	opts.applyDefaults()
	m := &Memory[V]{
		entries: make(map[string]entry[V]),
		opts:    opts,
		done:    make(chan struct{}),
	}
	go m.sweepLoop()
	return m
}

// Set implements Store.
func (m *Memory[V]) Set(_ context.Context, key string, value V, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = m.opts.DefaultTTL
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.destroyed {
		return ErrDestroyed
	}
	if existing, ok := m.entries[key]; ok {
		// Overwrite: refresh value and TTL, keep the insertion position.
		m.entries[key] = entry[V]{value: value, storedAt: time.Now(), ttl: ttl, seq: existing.seq}
		return nil
	}
	if len(m.entries) >= m.opts.MaxEntries {
		m.evictOldestLocked()
	}
	seq := m.nextSeq
	m.nextSeq++
	m.entries[key] = entry[V]{value: value, storedAt: time.Now(), ttl: ttl, seq: seq}
	m.order = append(m.order, orderRef{key: key, seq: seq})
	return nil
}

// Get implements Store.
func (m *Memory[V]) Get(_ context.Context, key string) (V, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var zero V
	if m.destroyed {
		return zero, false, ErrDestroyed
	}
	e, ok := m.entries[key]
	if !ok {
		return zero, false, nil
	}
	if e.expired(time.Now()) {
		m.removeLocked(key)
		return zero, false, nil
	}
	return e.value, true, nil
}

// Has implements Store.
func (m *Memory[V]) Has(ctx context.Context, key string) (bool, error) {
	_, ok, err := m.Get(ctx, key)
	return ok, err
}

// Delete implements Store.
func (m *Memory[V]) Delete(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.entries[key]
	if ok {
		m.removeLocked(key)
	}
	return ok, nil
}

// Clear implements Store.
func (m *Memory[V]) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]entry[V])
	m.order = nil
	m.stale = 0
	return nil
}

// Len implements Store.
func (m *Memory[V]) Len(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries), nil
}

// Destroy stops the sweep timer and drops all entries. Idempotent.
func (m *Memory[V]) Destroy() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.destroyed {
		return nil
	}
	m.destroyed = true
	close(m.done)
	m.entries = make(map[string]entry[V])
	m.order = nil
	m.stale = 0
	return nil
}

func (m *Memory[V]) evictOldestLocked() {
	for len(m.order) > 0 {
		head := m.order[0]
		m.order = m.order[1:]
		current, ok := m.entries[head.key]
		if !ok || current.seq != head.seq {
			// Stale reference: the entry was deleted or expired already.
			if m.stale > 0 {
				m.stale--
			}
			continue
		}
		delete(m.entries, head.key)
		return
	}
}

// removeLocked drops the entry and marks its order reference stale,
// compacting the order slice once stale references outnumber live ones.
// Without the compaction a long-lived store below capacity would retain
// a reference for every insert it ever saw.
func (m *Memory[V]) removeLocked(key string) {
	delete(m.entries, key)
	m.stale++
	if m.stale*2 > len(m.order) {
		m.compactLocked()
	}
}

func (m *Memory[V]) compactLocked() {
	if m.stale == 0 {
		return
	}
	live := make([]orderRef, 0, len(m.entries))
	for _, ref := range m.order {
		if current, ok := m.entries[ref.key]; ok && current.seq == ref.seq {
			live = append(live, ref)
		}
	}
	m.order = live
	m.stale = 0
}

func (m *Memory[V]) sweepLoop() {
	ticker := time.NewTicker(m.opts.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

func (m *Memory[V]) sweep() {
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, e := range m.entries {
		if e.expired(now) {
			delete(m.entries, key)
			m.stale++
		}
	}
	m.compactLocked()
}

var _ Store[string] = (*Memory[string])(nil)
