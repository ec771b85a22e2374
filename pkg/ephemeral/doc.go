// Package ephemeral stores short-lived, single-use state: OAuth CSRF state,
// pending account links, passkey ceremony sessions and password reset
// tokens.
//
// Every entry has a TTL and is consumed by Take, which removes it atomically
// with the read. A second Take, or a Take after expiry, returns ErrNotFound.
// Keys are namespaced by Purpose so a token minted for one flow cannot be
// redeemed by another.
//
//	states := ephemeral.NewTyped[oauthState](store, ephemeral.PurposeState, ephemeral.StateTTL)
//	_ = states.Put(ctx, token, oauthState{Nonce: nonce})
//	st, err := states.Take(ctx, token)
//
// MemoryStore serves single instance deployments; RedisStore shares state
// across instances.
package ephemeral
