package ingest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/codeingest/pkg/types"
)

func finishedJob(id string, completedAt time.Time) *Job {
	job := NewJob(id, "proj", "/src")
	job.start()
	job.complete()
	job.completedAt = completedAt
	return job
}

func TestJob_Lifecycle(t *testing.T) {
	job := NewJob("j1", "proj", "/src")
	assert.Equal(t, JobPending, job.Status())

	job.start()
	job.setTotal(3)
	job.record(fileOutcome{path: "a.py", strategy: types.StrategyRegex, chunks: 2})
	job.record(fileOutcome{path: "b.py", strategy: types.StrategyLines, chunks: 1, skipped: true})
	job.record(fileOutcome{path: "c.py", errMsg: "c.py: boom"})
	job.complete()

	snap := job.Snapshot()
	assert.Equal(t, JobCompleted, snap.Status)
	assert.Equal(t, 3, snap.TotalFiles)
	assert.Equal(t, 3, snap.ProcessedFiles)
	assert.Equal(t, 2, snap.SuccessfulFiles)
	assert.Equal(t, 1, snap.FailedFiles)
	assert.Equal(t, 1, snap.SkippedFiles)
	assert.Equal(t, 3, snap.TotalChunks)
	assert.Equal(t, map[string]int{"regex": 1, "lines": 1}, snap.StrategiesUsed)
	assert.Equal(t, []string{"c.py: boom"}, snap.Errors)
	assert.GreaterOrEqual(t, snap.Duration(), time.Duration(0))
}

func TestJob_TerminalStatesAreFinal(t *testing.T) {
	job := NewJob("j1", "proj", "/src")
	job.start()
	job.complete()
	job.fail(errors.New("late failure"))

	snap := job.Snapshot()
	assert.Equal(t, JobCompleted, snap.Status)
	assert.Empty(t, snap.Errors)

	failed := NewJob("j2", "proj", "/src")
	failed.start()
	failed.fail(errors.New("scan failed"))
	failed.complete()
	assert.Equal(t, JobFailed, failed.Status())
}

func TestJob_SnapshotIsACopy(t *testing.T) {
	job := NewJob("j1", "proj", "/src")
	job.start()
	job.record(fileOutcome{path: "a.py", errMsg: "a.py: x", strategy: types.StrategyRegex})

	snap := job.Snapshot()
	snap.Errors[0] = "changed"
	snap.StrategiesUsed["regex"] = 99

	again := job.Snapshot()
	assert.Equal(t, "a.py: x", again.Errors[0])
	assert.Equal(t, 1, again.StrategiesUsed["regex"])
	assert.Nil(t, again.CompletedAt)
}

func TestJobStore_GetAndList(t *testing.T) {
	s := NewJobStore(0, 0)

	_, err := s.Get("missing")
	assert.ErrorIs(t, err, ErrJobNotFound)

	first := NewJob("a", "proj", "/src")
	second := NewJob("b", "proj", "/src")
	second.createdAt = first.createdAt.Add(time.Second)
	s.Put(first)
	s.Put(second)

	got, err := s.Get("a")
	require.NoError(t, err)
	assert.Same(t, first, got)

	list := s.List()
	require.Len(t, list, 2)
	assert.Equal(t, "b", list[0].JobID)
	assert.Equal(t, "a", list[1].JobID)
}

func TestJobStore_EvictsByRetention(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s := NewJobStore(time.Hour, 100)
	s.now = func() time.Time { return now }

	s.Put(finishedJob("old", now.Add(-2*time.Hour)))
	s.Put(finishedJob("recent", now.Add(-10*time.Minute)))

	running := NewJob("running", "proj", "/src")
	running.start()
	s.Put(running)

	assert.Equal(t, 1, s.Evict())
	_, err := s.Get("old")
	assert.ErrorIs(t, err, ErrJobNotFound)
	_, err = s.Get("recent")
	assert.NoError(t, err)
	_, err = s.Get("running")
	assert.NoError(t, err)
}

func TestJobStore_CapsTotal(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s := NewJobStore(time.Hour, 3)
	s.now = func() time.Time { return now }

	for i := 0; i < 5; i++ {
		s.Put(finishedJob(fmt.Sprintf("job-%d", i), now.Add(time.Duration(i-10)*time.Minute)))
	}
	running := NewJob("running", "proj", "/src")
	running.start()
	s.Put(running)

	assert.Equal(t, 3, s.Evict())
	assert.Equal(t, 3, s.Len())

	// The newest terminal jobs and the running job survive
	for _, id := range []string{"job-3", "job-4", "running"} {
		_, err := s.Get(id)
		assert.NoError(t, err, id)
	}
}

func TestJobStore_RunStopsOnCancel(t *testing.T) {
	s := NewJobStore(time.Millisecond, 100)
	s.Put(finishedJob("old", time.Now().Add(-time.Hour)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx, 5*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool { return s.Len() == 0 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop")
	}
}

func TestWorkerPool(t *testing.T) {
	assert.Equal(t, 1, NewWorkerPool(0).Size())

	pool := NewWorkerPool(1)
	require.NoError(t, pool.Acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.Error(t, pool.Acquire(ctx))

	pool.Release()
	assert.NoError(t, pool.Acquire(context.Background()))
	pool.Release()
}

func TestIndexLock(t *testing.T) {
	var lock IndexLock
	assert.True(t, lock.TryAcquire())
	assert.False(t, lock.TryAcquire())
	lock.Release()
	assert.True(t, lock.TryAcquire())

	var locks projectLocks
	assert.True(t, locks.tryAcquire("a"))
	assert.False(t, locks.tryAcquire("a"))
	assert.True(t, locks.tryAcquire("b"))
	locks.release("a")
	assert.True(t, locks.tryAcquire("a"))
}
