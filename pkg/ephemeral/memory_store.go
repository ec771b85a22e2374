package ephemeral

import (
	"context"
	"hash/fnv"
	"sync"
	"time"
)

const defaultShards = 32

type entry struct {
	payload   []byte
	expiresAt time.Time
}

type shard struct {
	mu      sync.Mutex
	entries map[string]entry
}

// MemoryStore is a sharded in-process Store. Expired entries are swept
// periodically and whenever a shard reaches its bound; if a shard is still
// full the entry closest to expiry is dropped.
type MemoryStore struct {
	shards      []*shard
	maxPerShard int
	now         func() time.Time

	stopOnce sync.Once
	done     chan struct{}
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*memoryOptions)

type memoryOptions struct {
	maxEntries      int
	cleanupInterval time.Duration
	now             func() time.Time
}

// WithMaxEntries bounds the total number of entries.
func WithMaxEntries(n int) MemoryOption {
	return func(o *memoryOptions) { o.maxEntries = n }
}

// WithCleanupInterval sets how often expired entries are swept. Zero disables the loop.
func WithCleanupInterval(d time.Duration) MemoryOption {
	return func(o *memoryOptions) { o.cleanupInterval = d }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) MemoryOption {
	return func(o *memoryOptions) { o.now = now }
}

// NewMemoryStore creates an in-process store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	o := memoryOptions{maxEntries: 100_000, cleanupInterval: time.Minute, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	m := &MemoryStore{
		shards:      make([]*shard, defaultShards),
		maxPerShard: max(1, o.maxEntries/defaultShards),
		now:         o.now,
		done:        make(chan struct{}),
	}
	for i := range m.shards {
		m.shards[i] = &shard{entries: make(map[string]entry)}
	}

	if o.cleanupInterval > 0 {
		go m.cleanupLoop(o.cleanupInterval)
	}
	return m
}

// NewMemoryStoreFromConfig creates an in-process store from Config.
func NewMemoryStoreFromConfig(cfg Config) *MemoryStore {
	return NewMemoryStore(WithMaxEntries(cfg.MaxEntries), WithCleanupInterval(cfg.CleanupInterval))
}

func (m *MemoryStore) shardFor(key string) *shard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return m.shards[h.Sum32()%uint32(len(m.shards))]
}

func (m *MemoryStore) Put(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	if key == "" {
		return ErrEmptyKey
	}
	if ttl <= 0 {
		return ErrInvalidTTL
	}

	now := m.now()
	data := make([]byte, len(payload))
	copy(data, payload)

	s := m.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[key]; !exists && len(s.entries) >= m.maxPerShard {
		s.sweep(now)
		if len(s.entries) >= m.maxPerShard {
			s.evictSoonest()
		}
	}

	s.entries[key] = entry{payload: data, expiresAt: now.Add(ttl)}
	return nil
}

func (m *MemoryStore) Take(ctx context.Context, key string) ([]byte, error) {
	s := m.shardFor(key)
	s.mu.Lock()
	e, ok := s.entries[key]
	if ok {
		delete(s.entries, key)
	}
	s.mu.Unlock()

	if !ok || !m.now().Before(e.expiresAt) {
		return nil, ErrNotFound
	}
	return e.payload, nil
}

// Len returns the number of stored entries, expired ones included.
func (m *MemoryStore) Len() int {
	n := 0
	for _, s := range m.shards {
		s.mu.Lock()
		n += len(s.entries)
		s.mu.Unlock()
	}
	return n
}

// Sweep removes expired entries and returns how many were dropped.
func (m *MemoryStore) Sweep() int {
	now := m.now()
	removed := 0
	for _, s := range m.shards {
		s.mu.Lock()
		removed += s.sweep(now)
		s.mu.Unlock()
	}
	return removed
}

// Close stops the cleanup loop. Safe to call multiple times.
func (m *MemoryStore) Close() {
	m.stopOnce.Do(func() { close(m.done) })
}

func (m *MemoryStore) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.Sweep()
		case <-m.done:
			return
		}
	}
}

// Must be called with the shard lock held.
func (s *shard) sweep(now time.Time) int {
	removed := 0
	for k, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, k)
			removed++
		}
	}
	return removed
}

// Must be called with the shard lock held.
func (s *shard) evictSoonest() {
	var victim string
	var soonest time.Time
	for k, e := range s.entries {
		if victim == "" || e.expiresAt.Before(soonest) {
			victim, soonest = k, e.expiresAt
		}
	}
	delete(s.entries, victim)
}
