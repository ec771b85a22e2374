package cache

import (
	"hash/maphash"
	"time"
)

// Sharded spreads string keys over several independent LRU caches so that
// concurrent readers rarely contend on the same lock.
type Sharded[V any] struct {
	seed   maphash.Seed
	shards []*LRU[string, V]
}

// NewSharded creates a cache holding about capacity entries across shards.
// Entries expire ttl after being written.
func NewSharded[V any](shards, capacity int, ttl time.Duration, now func() time.Time) *Sharded[V] {
	if shards <= 0 {
		shards = 16
	}
	perShard := max(1, capacity/shards)

	s := &Sharded[V]{seed: maphash.MakeSeed(), shards: make([]*LRU[string, V], shards)}
	for i := range s.shards {
		s.shards[i] = NewLRU[string, V](perShard, ttl, now)
	}
	return s
}

func (s *Sharded[V]) shard(key string) *LRU[string, V] {
	return s.shards[maphash.String(s.seed, key)%uint64(len(s.shards))]
}

func (s *Sharded[V]) Get(key string) (V, bool) { return s.shard(key).Get(key) }

func (s *Sharded[V]) Put(key string, value V) { s.shard(key).Put(key, value) }

func (s *Sharded[V]) Remove(key string) { s.shard(key).Remove(key) }

// Len returns the total number of entries across shards.
func (s *Sharded[V]) Len() int {
	n := 0
	for _, c := range s.shards {
		n += c.Len()
	}
	return n
}
