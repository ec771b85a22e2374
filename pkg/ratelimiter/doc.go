// Package ratelimiter enforces token bucket quotas for authentication
// endpoints across two independent keyspaces: the client IP address and the
// normalized email address.
//
// Endpoints are grouped into quota classes (login, register, oauth, general).
// Each class has a Policy with an IP quota and an optional email quota.
// Limiter.Allow checks the IP bucket first and then the email bucket; either
// rejection blocks the request. A rejected check never consumes a token, so
// remaining counts never go negative.
//
// # Stores
//
// MemoryStore shards buckets by FNV hash, bounds each shard with LRU
// eviction and sweeps idle buckets in the background. RedisStore runs the
// same algorithm in a Lua script so several instances share quotas.
//
// # Usage
//
//	store := ratelimiter.NewMemoryStore()
//	defer store.Close()
//
//	limiter, err := ratelimiter.New(store, ratelimiter.WithDisabled(cfg.Disabled))
//	if err != nil {
//		return err
//	}
//
//	r.With(ratelimiter.Middleware(limiter, ratelimiter.ClassLogin)).
//		Post("/auth/login", handler)
//
// Rejections answer 429 with a Retry-After header and the JSON body
//
//	{"error": "Rate limit exceeded for your IP address. Please try again later.", "retry_after": "42"}
package ratelimiter
