package ratelimiter

import (
	"container/list"
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"
)

const (
	defaultShards         = 32
	defaultMaxBuckets     = 100_000
	defaultCleanupEvery   = 5 * time.Minute
	defaultStaleThreshold = time.Hour
	// evictScan bounds how far from the tail a full shard looks for a
	// reclaimable bucket.
	evictScan = 64
)

// bucket represents a token bucket state.
type bucket struct {
	key        string
	tokens     int
	lastRefill time.Time
	lastAccess time.Time // used by cleanup to identify stale buckets
	fullAt     time.Time // from this instant the bucket equals a fresh one
}

// settle records when b will be back at capacity if left alone.
func (b *bucket) settle(q Quota) {
	missing := q.Capacity - b.tokens
	if missing <= 0 {
		b.fullAt = b.lastRefill
		return
	}
	intervals := (missing + q.RefillRate - 1) / q.RefillRate
	b.fullAt = b.lastRefill.Add(time.Duration(intervals) * q.RefillInterval)
}

func (b *bucket) reclaimable(now time.Time) bool {
	return !now.Before(b.fullAt)
}

type shard struct {
	mu      sync.Mutex
	buckets map[string]*list.Element
	order   *list.List // front = most recently accessed
}

// MemoryStore is a sharded in-memory Store. Each shard is bounded. When a
// shard is full it reclaims a bucket that has refilled to capacity, oldest
// access first; if none has, the new key is denied rather than forgetting a
// depleted bucket. A background loop drops refilled buckets idle longer than
// the stale threshold.
type MemoryStore struct {
	shards         []*shard
	maxPerShard    int
	cleanupEvery   time.Duration
	staleThreshold time.Duration
	now            func() time.Time

	stopOnce    sync.Once
	stopCleanup chan struct{}
}

// MemoryStoreOption configures a MemoryStore.
type MemoryStoreOption func(*MemoryStore)

// WithCleanupInterval sets the cleanup interval for removing stale buckets.
// Set to 0 to disable automatic cleanup.
func WithCleanupInterval(interval time.Duration) MemoryStoreOption {
	return func(ms *MemoryStore) { ms.cleanupEvery = interval }
}

// WithStaleThreshold sets how long a bucket may stay untouched before cleanup drops it.
func WithStaleThreshold(d time.Duration) MemoryStoreOption {
	return func(ms *MemoryStore) { ms.staleThreshold = d }
}

// WithMaxBuckets bounds the total number of buckets across all shards.
func WithMaxBuckets(n int) MemoryStoreOption {
	return func(ms *MemoryStore) {
		if n > 0 {
			ms.maxPerShard = max(1, n/len(ms.shards))
		}
	}
}

// WithMemoryClock overrides the time source.
func WithMemoryClock(now func() time.Time) MemoryStoreOption {
	return func(ms *MemoryStore) { ms.now = now }
}

// NewMemoryStore creates a new in-memory store with optional cleanup.
func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	ms := &MemoryStore{
		shards:         make([]*shard, defaultShards),
		maxPerShard:    defaultMaxBuckets / defaultShards,
		cleanupEvery:   defaultCleanupEvery,
		staleThreshold: defaultStaleThreshold,
		now:            time.Now,
		stopCleanup:    make(chan struct{}),
	}
	for i := range ms.shards {
		ms.shards[i] = &shard{buckets: make(map[string]*list.Element), order: list.New()}
	}

	for _, opt := range opts {
		opt(ms)
	}

	if ms.cleanupEvery > 0 {
		go ms.cleanup()
	}
	return ms
}

func (ms *MemoryStore) shardFor(key string) *shard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return ms.shards[h.Sum32()%uint32(len(ms.shards))]
}

// Take attempts to consume tokens from the bucket.
func (ms *MemoryStore) Take(ctx context.Context, key string, tokens int, quota Quota) (Result, error) {
	if tokens < 0 {
		return Result{}, fmt.Errorf("%w: must not be negative, got %d", ErrInvalidTokenCount, tokens)
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	s := ms.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	now := ms.now()
	var b *bucket
	if elem, ok := s.buckets[key]; ok {
		s.order.MoveToFront(elem)
		b = elem.Value.(*bucket)
	} else {
		if s.order.Len() >= ms.maxPerShard && !ms.reclaim(s, now) {
			memoryOverflowDenials.Inc()
			return Result{Limit: quota.Capacity, ResetAt: now.Add(quota.RefillInterval)}, nil
		}
		b = &bucket{key: key, tokens: quota.Capacity, lastRefill: now}
		s.buckets[key] = s.order.PushFront(b)
	}

	refill(b, quota, now)
	b.lastAccess = now

	res := Result{Limit: quota.Capacity, ResetAt: b.lastRefill.Add(quota.RefillInterval)}
	if b.tokens >= tokens {
		b.tokens -= tokens
		res.Allowed = true
	}
	res.Remaining = b.tokens
	b.settle(quota)
	return res, nil
}

// refill adds whole elapsed intervals of tokens. Partial intervals carry
// over so that frequent polling does not delay refills.
func refill(b *bucket, quota Quota, now time.Time) {
	elapsed := now.Sub(b.lastRefill)
	if elapsed < quota.RefillInterval {
		return
	}

	// Cap intervals to prevent integer overflow for long idle periods.
	maxIntervals := int64(quota.Capacity/quota.RefillRate + 1)
	intervals := min(int64(elapsed/quota.RefillInterval), maxIntervals)

	b.tokens = min(b.tokens+int(intervals)*quota.RefillRate, quota.Capacity)
	if b.tokens == quota.Capacity {
		b.lastRefill = now
	} else {
		b.lastRefill = b.lastRefill.Add(time.Duration(intervals) * quota.RefillInterval)
	}
}

// reclaim frees room for one bucket by evicting the least recently accessed
// bucket that has refilled to capacity. Must be called with the shard lock
// held.
func (ms *MemoryStore) reclaim(s *shard, now time.Time) bool {
	freed := false
	elem := s.order.Back()
	for i := 0; elem != nil && i < evictScan && s.order.Len() >= ms.maxPerShard; i++ {
		prev := elem.Prev()
		if b := elem.Value.(*bucket); b.reclaimable(now) {
			s.order.Remove(elem)
			delete(s.buckets, b.key)
			memoryEvictions.Inc()
			freed = true
		}
		elem = prev
	}
	return freed && s.order.Len() < ms.maxPerShard
}

func (ms *MemoryStore) Reset(ctx context.Context, key string) error {
	s := ms.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	if elem, ok := s.buckets[key]; ok {
		s.order.Remove(elem)
		delete(s.buckets, key)
	}
	return nil
}

// Len returns the number of tracked buckets.
func (ms *MemoryStore) Len() int {
	n := 0
	for _, s := range ms.shards {
		s.mu.Lock()
		n += s.order.Len()
		s.mu.Unlock()
	}
	return n
}

func (ms *MemoryStore) cleanup() {
	ticker := time.NewTicker(ms.cleanupEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ms.RemoveStale()
		case <-ms.stopCleanup:
			return
		}
	}
}

// RemoveStale drops refilled buckets not accessed within the stale
// threshold. Shards are ordered by access so each walk stops at the first
// recently accessed bucket.
func (ms *MemoryStore) RemoveStale() int {
	now := ms.now()
	cutoff := now.Add(-ms.staleThreshold)
	removed := 0
	for _, s := range ms.shards {
		s.mu.Lock()
		for elem := s.order.Back(); elem != nil; {
			b := elem.Value.(*bucket)
			if !b.lastAccess.Before(cutoff) {
				break
			}
			prev := elem.Prev()
			if b.reclaimable(now) {
				s.order.Remove(elem)
				delete(s.buckets, b.key)
				removed++
			}
			elem = prev
		}
		s.mu.Unlock()
	}
	return removed
}

// Close stops the cleanup goroutine. Safe to call multiple times.
func (ms *MemoryStore) Close() {
	ms.stopOnce.Do(func() { close(ms.stopCleanup) })
}
