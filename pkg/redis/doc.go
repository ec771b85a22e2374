// Package redis connects to Redis with retries and exposes a health check.
//
// The client it returns backs the distributed rate limiter store and the
// ephemeral state store:
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	limiterStore := ratelimiter.NewRedisStore(client)
//	stateStore := ephemeral.NewRedisStore(client, "authcore:")
package redis
