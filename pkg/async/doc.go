// Package async bounds the concurrency of expensive work such as password
// hashing.
//
//	pool := async.NewPool(0) // GOMAXPROCS slots
//	defer pool.Close()
//
//	hash, err := async.Run(ctx, pool, func(ctx context.Context) (string, error) {
//	    return expensiveHash(password)
//	})
//
// Run returns the callback's error, ctx.Err() when the context ends before a
// slot frees up, or ErrPoolClosed after Close.
package async
