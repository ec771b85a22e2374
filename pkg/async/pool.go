package async

import (
	"context"
	"errors"
	"runtime"
	"sync"

	"golang.org/x/sync/semaphore"
)

var ErrPoolClosed = errors.New("async: pool is closed")

// Pool limits how many callers run CPU-heavy work at once. Work runs on the
// calling goroutine once a slot is free.
type Pool struct {
	slots *semaphore.Weighted

	mu       sync.RWMutex
	closed   bool
	inflight sync.WaitGroup
}

// NewPool allows size concurrent jobs. A non-positive size means
// runtime.GOMAXPROCS(0).
func NewPool(size int) *Pool {
	if size <= 0 {
		size = runtime.GOMAXPROCS(0)
	}
	return &Pool{slots: semaphore.NewWeighted(int64(size))}
}

// Close rejects new jobs and waits for admitted ones. It is safe to call
// more than once.
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.inflight.Wait()
}

func (p *Pool) admit() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}
	p.inflight.Add(1)
	return true
}

// Run waits for a free slot and calls fn. If ctx ends while waiting, fn is
// not called and ctx.Err() is returned.
func Run[U any](ctx context.Context, p *Pool, fn func(context.Context) (U, error)) (U, error) {
	var zero U
	if !p.admit() {
		return zero, ErrPoolClosed
	}
	defer p.inflight.Done()

	if err := p.slots.Acquire(ctx, 1); err != nil {
		return zero, err
	}
	defer p.slots.Release(1)

	if err := ctx.Err(); err != nil {
		return zero, err
	}
	return fn(ctx)
}
