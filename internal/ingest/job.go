package ingest

import (
	"sync"
	"time"

	"github.com/dshills/codeingest/pkg/types"
)

// JobStatus is the lifecycle state of an ingestion job
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// IsTerminal returns true for completed and failed
func (s JobStatus) IsTerminal() bool {
	return s == JobCompleted || s == JobFailed
}

// Job is one project ingestion. It is written by the pipeline and read
// concurrently by status callers through Snapshot.
type Job struct {
	ID          string
	ProjectID   string
	ProjectPath string

	mu              sync.RWMutex
	status          JobStatus
	totalFiles      int
	processedFiles  int
	successfulFiles int
	failedFiles     int
	skippedFiles    int
	totalChunks     int
	strategies      map[types.Strategy]int
	errors          []string
	createdAt       time.Time
	startedAt       time.Time
	completedAt     time.Time
}

// JobSnapshot is a consistent copy of a job's state
type JobSnapshot struct {
	JobID           string         `json:"job_id"`
	ProjectID       string         `json:"project_id"`
	ProjectPath     string         `json:"project_path"`
	Status          JobStatus      `json:"status"`
	TotalFiles      int            `json:"total_files"`
	ProcessedFiles  int            `json:"processed_files"`
	SuccessfulFiles int            `json:"successful_files"`
	FailedFiles     int            `json:"failed_files"`
	SkippedFiles    int            `json:"skipped_files"`
	TotalChunks     int            `json:"total_chunks"`
	StrategiesUsed  map[string]int `json:"strategies_used"`
	Errors          []string       `json:"errors"`
	CreatedAt       time.Time      `json:"created_at"`
	StartedAt       *time.Time     `json:"started_at,omitempty"`
	CompletedAt     *time.Time     `json:"completed_at,omitempty"`
}

// Duration returns the time between start and completion, or zero
func (s *JobSnapshot) Duration() time.Duration {
	if s.StartedAt == nil || s.CompletedAt == nil {
		return 0
	}
	return s.CompletedAt.Sub(*s.StartedAt)
}

// NewJob creates a pending job
func NewJob(id, projectID, projectPath string) *Job {
	return &Job{
		ID:          id,
		ProjectID:   projectID,
		ProjectPath: projectPath,
		status:      JobPending,
		strategies:  make(map[types.Strategy]int),
		errors:      make([]string, 0),
		createdAt:   time.Now().UTC(),
	}
}

// Status returns the current status
func (j *Job) Status() JobStatus {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.status
}

func (j *Job) start() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status = JobProcessing
	j.startedAt = time.Now().UTC()
}

func (j *Job) setTotal(n int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.totalFiles = n
}

// record applies one file's outcome to the counters
func (j *Job) record(o fileOutcome) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.processedFiles++
	if o.failed() {
		j.failedFiles++
		j.errors = append(j.errors, o.errMsg)
	} else {
		j.successfulFiles++
	}
	if o.skipped {
		j.skippedFiles++
	}
	j.totalChunks += o.chunks
	if o.strategy != "" {
		j.strategies[o.strategy]++
	}
}

func (j *Job) complete() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status.IsTerminal() {
		return
	}
	j.status = JobCompleted
	j.completedAt = time.Now().UTC()
}

func (j *Job) fail(err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status.IsTerminal() {
		return
	}
	j.status = JobFailed
	j.errors = append(j.errors, err.Error())
	j.completedAt = time.Now().UTC()
}

// terminalSince returns the completion time if the job is terminal
func (j *Job) terminalSince() (time.Time, bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.completedAt, j.status.IsTerminal()
}

// Snapshot returns a copy of the job state safe to hold after the call
func (j *Job) Snapshot() JobSnapshot {
	j.mu.RLock()
	defer j.mu.RUnlock()

	strategies := make(map[string]int, len(j.strategies))
	for s, n := range j.strategies {
		strategies[string(s)] = n
	}

	snap := JobSnapshot{
		JobID:           j.ID,
		ProjectID:       j.ProjectID,
		ProjectPath:     j.ProjectPath,
		Status:          j.status,
		TotalFiles:      j.totalFiles,
		ProcessedFiles:  j.processedFiles,
		SuccessfulFiles: j.successfulFiles,
		FailedFiles:     j.failedFiles,
		SkippedFiles:    j.skippedFiles,
		TotalChunks:     j.totalChunks,
		StrategiesUsed:  strategies,
		Errors:          append([]string(nil), j.errors...),
		CreatedAt:       j.createdAt,
	}
	if !j.startedAt.IsZero() {
		t := j.startedAt
		snap.StartedAt = &t
	}
	if !j.completedAt.IsZero() {
		t := j.completedAt
		snap.CompletedAt = &t
	}
	return snap
}
