package ingest

import (
	"errors"
	"sync"
	"sync/atomic"
)

// ErrJobInProgress is returned when a project already has a running job
var ErrJobInProgress = errors.New("ingestion already in progress for project")

// IndexLock provides non-blocking lock semantics using atomic operations.
type IndexLock struct {
	state atomic.Int32 // 0 = unlocked, 1 = locked
}

// TryAcquire attempts to acquire the lock without blocking.
func (l *IndexLock) TryAcquire() bool {
	return l.state.CompareAndSwap(0, 1)
}

// Release releases the lock.
// Must only be called by the holder.
func (l *IndexLock) Release() {
	l.state.Store(0)
}

// projectLocks hands out one IndexLock per project id
type projectLocks struct {
	locks sync.Map // project id -> *IndexLock
}

func (p *projectLocks) tryAcquire(projectID string) bool {
	v, _ := p.locks.LoadOrStore(projectID, &IndexLock{})
	return v.(*IndexLock).TryAcquire()
}

func (p *projectLocks) release(projectID string) {
	if v, ok := p.locks.Load(projectID); ok {
		v.(*IndexLock).Release()
	}
}
