// Package cache provides in-memory LRU caches with optional expiry.
//
// LRU is a single-lock generic cache that evicts the least recently used
// entry at capacity and, when given a ttl, drops entries a fixed
// time after they were written. Sharded spreads string keys across several
// LRU instances for read-heavy concurrent use, such as resolving the
// user behind every authenticated request.
//
//	users := cache.NewSharded[User](16, 10_000, 5*time.Minute, time.Now)
//	users.Put(id, u)
//	if u, ok := users.Get(id); ok { ... }
//
// Caches are never authoritative; callers invalidate entries with Remove
// when the underlying record changes.
package cache
