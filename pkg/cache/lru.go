package cache

import (
	"container/list"
	"sync"
	"time"
)

type item[K comparable, V any] struct {
	key     K
	val     V
	written time.Time
}

// LRU is a fixed-capacity cache guarded by a single mutex. When ttl is set,
// entries older than ttl are treated as absent and dropped on access.
type LRU[K comparable, V any] struct {
	mu    sync.Mutex
	cap   int
	ttl   time.Duration
	now   func() time.Time
	index map[K]*list.Element
	order *list.List // front is most recently used
}

// NewLRU panics if capacity is not positive. A nil now uses time.Now.
func NewLRU[K comparable, V any](capacity int, ttl time.Duration, now func() time.Time) *LRU[K, V] {
	if capacity <= 0 {
		panic("cache: capacity must be positive")
	}
	if now == nil {
		now = time.Now
	}
	return &LRU[K, V]{
		cap:   capacity,
		ttl:   ttl,
		now:   now,
		index: make(map[K]*list.Element, capacity),
		order: list.New(),
	}
}

func (c *LRU[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.index[key]
	if !ok {
		var zero V
		return zero, false
	}
	it := el.Value.(*item[K, V])
	if c.stale(it) {
		c.drop(el)
		var zero V
		return zero, false
	}
	c.order.MoveToFront(el)
	return it.val, true
}

// Put stores value under key and restarts its ttl. It reports whether key
// was already present.
func (c *LRU[K, V]) Put(key K, value V) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if el, ok := c.index[key]; ok {
		it := el.Value.(*item[K, V])
		it.val, it.written = value, now
		c.order.MoveToFront(el)
		return true
	}

	c.index[key] = c.order.PushFront(&item[K, V]{key: key, val: value, written: now})
	for c.order.Len() > c.cap {
		c.drop(c.order.Back())
	}
	return false
}

// Remove reports whether key was present.
func (c *LRU[K, V]) Remove(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.index[key]
	if ok {
		c.drop(el)
	}
	return ok
}

// Len counts stored entries, stale ones included until they are read.
func (c *LRU[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *LRU[K, V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.index)
	c.order.Init()
}

func (c *LRU[K, V]) stale(it *item[K, V]) bool {
	return c.ttl > 0 && c.now().Sub(it.written) >= c.ttl
}

func (c *LRU[K, V]) drop(el *list.Element) {
	c.order.Remove(el)
	delete(c.index, el.Value.(*item[K, V]).key)
}
