// Package blocking bounds the amount of CPU-heavy work (compression,
// decompression, rendering) that may run at once, so a burst of large
// entries cannot starve every other request of processor time.
package blocking

import (
	"context"
	"runtime"

	"golang.org/x/sync/semaphore"
)

// Pool admits at most a fixed number of concurrent jobs.
type Pool struct {
	sem  *semaphore.Weighted
	size int64
}

// NewPool returns a Pool admitting size concurrent jobs. A size <= 0 selects
// GOMAXPROCS.
func NewPool(size int) *Pool {
	if size <= 0 {
		size = runtime.GOMAXPROCS(0)
	}
	return &Pool{sem: semaphore.NewWeighted(int64(size)), size: int64(size)}
}

// Size reports the number of slots.
func (p *Pool) Size() int { return int(p.size) }

// Do waits for a free slot and runs fn in it. Waiting honours ctx; once fn
// has started it runs to completion.
func Do[T any](ctx context.Context, p *Pool, fn func() (T, error)) (T, error) {
	var zero T
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return zero, err
	}
	defer p.sem.Release(1)

	return fn()
}
