package ingest

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrJobNotFound is returned for an unknown job id
var ErrJobNotFound = errors.New("job not found")

const (
	DefaultJobRetention    = time.Hour
	DefaultMaxJobs         = 100
	DefaultJanitorInterval = 5 * time.Minute
)

// JobStore holds jobs for status polling and evicts old terminal ones
type JobStore struct {
	mu        sync.RWMutex
	jobs      map[string]*Job
	retention time.Duration
	maxJobs   int
	now       func() time.Time
}

// NewJobStore creates a store. Non-positive values select the defaults.
func NewJobStore(retention time.Duration, maxJobs int) *JobStore {
	if retention <= 0 {
		retention = DefaultJobRetention
	}
	if maxJobs <= 0 {
		maxJobs = DefaultMaxJobs
	}
	return &JobStore{
		jobs:      make(map[string]*Job),
		retention: retention,
		maxJobs:   maxJobs,
		now:       time.Now,
	}
}

// Put registers a job
func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

// Get returns the job with the given id
func (s *JobStore) Get(id string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return job, nil
}

// Len returns the number of retained jobs
func (s *JobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

// List returns snapshots of every job, newest first
func (s *JobStore) List() []JobSnapshot {
	s.mu.RLock()
	snaps := make([]JobSnapshot, 0, len(s.jobs))
	for _, job := range s.jobs {
		snaps = append(snaps, job.Snapshot())
	}
	s.mu.RUnlock()

	sort.Slice(snaps, func(i, j int) bool {
		if snaps[i].CreatedAt.Equal(snaps[j].CreatedAt) {
			return snaps[i].JobID < snaps[j].JobID
		}
		return snaps[i].CreatedAt.After(snaps[j].CreatedAt)
	})
	return snaps
}

// Evict removes terminal jobs completed longer than the retention period
// ago, then the oldest terminal jobs while more than maxJobs remain.
// Running jobs are never evicted. Returns the number removed.
func (s *JobStore) Evict() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-s.retention)
	removed := 0

	type terminal struct {
		id   string
		done time.Time
	}
	var remaining []terminal

	for id, job := range s.jobs {
		done, ok := job.terminalSince()
		if !ok {
			continue
		}
		if done.Before(cutoff) {
			delete(s.jobs, id)
			removed++
			continue
		}
		remaining = append(remaining, terminal{id: id, done: done})
	}

	if excess := len(s.jobs) - s.maxJobs; excess > 0 {
		sort.Slice(remaining, func(i, j int) bool {
			return remaining[i].done.Before(remaining[j].done)
		})
		for i := 0; i < excess && i < len(remaining); i++ {
			delete(s.jobs, remaining[i].id)
			removed++
		}
	}
	return removed
}

// Run evicts on every tick until ctx is cancelled
func (s *JobStore) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultJanitorInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Evict()
		}
	}
}
