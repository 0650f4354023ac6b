package ingest

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// WorkerPool bounds the number of files stored concurrently. A pool is never
// resized in place: the pipeline swaps in a new pool and running jobs finish
// on the one they started with.
type WorkerPool struct {
	sem  *semaphore.Weighted
	size int
}

// NewWorkerPool creates a pool of n workers, minimum one
func NewWorkerPool(n int) *WorkerPool {
	if n <= 0 {
		n = 1
	}
	return &WorkerPool{
		sem:  semaphore.NewWeighted(int64(n)),
		size: n,
	}
}

// Size returns the number of workers
func (p *WorkerPool) Size() int {
	return p.size
}

// Acquire blocks until a worker is free or ctx is done
func (p *WorkerPool) Acquire(ctx context.Context) error {
	return p.sem.Acquire(ctx, 1)
}

// Release returns a worker to the pool
func (p *WorkerPool) Release() {
	p.sem.Release(1)
}
