package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/codeingest/internal/parser"
	"github.com/dshills/codeingest/internal/scanner"
	"github.com/dshills/codeingest/internal/storage"
	"github.com/dshills/codeingest/pkg/types"
)

var (
	// ErrInvalidRequest is returned when a request is missing required fields
	ErrInvalidRequest = errors.New("invalid ingestion request")

	// ErrClosed is returned for jobs submitted after Close
	ErrClosed = errors.New("pipeline closed")
)

// Config contains pipeline settings
type Config struct {
	MaxWorkers    int           // Concurrent store workers (default: 4)
	BatchSize     int           // Files per batch (default: 10)
	StoreTimeout  time.Duration // Deadline for storing one file's chunks (default: 30s)
	SkipUnchanged bool          // Skip files whose ledger hash matches
}

// DefaultConfig returns the default pipeline settings
func DefaultConfig() Config {
	return Config{
		MaxWorkers:   4,
		BatchSize:    10,
		StoreTimeout: 30 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxWorkers <= 0 {
		c.MaxWorkers = d.MaxWorkers
	}
	if c.BatchSize <= 0 {
		c.BatchSize = d.BatchSize
	}
	if c.StoreTimeout <= 0 {
		c.StoreTimeout = d.StoreTimeout
	}
	return c
}

// SubmitRequest starts ingestion of a project
type SubmitRequest struct {
	ProjectPath string `json:"project_path"`
	ProjectID   string `json:"project_id"`
	MaxWorkers  int    `json:"max_workers,omitempty"` // resizes the pool when set
}

func (r SubmitRequest) validate() error {
	if r.ProjectPath == "" || r.ProjectID == "" {
		return fmt.Errorf("%w: project_path and project_id are required", ErrInvalidRequest)
	}
	if r.MaxWorkers < 0 {
		return fmt.Errorf("%w: max_workers must be positive", ErrInvalidRequest)
	}
	return nil
}

// CapabilitiesInfo describes the parsing strategies usable in this process
type CapabilitiesInfo struct {
	AdvancedParserAvailable bool     `json:"advanced_parser_available"`
	SupportedStrategies     []string `json:"supported_strategies"`
	Reason                  string   `json:"reason,omitempty"`
}

// SubmitResponse is returned when a job has been accepted
type SubmitResponse struct {
	JobID        string           `json:"job_id"`
	Capabilities CapabilitiesInfo `json:"capabilities"`
}

// FileRequest ingests a single file supplied inline
type FileRequest struct {
	Content   string `json:"content"`
	FilePath  string `json:"file_path"`
	ProjectID string `json:"project_id"`
}

// FileResponse reports the outcome of a single-file ingestion
type FileResponse struct {
	ChunksCount  int      `json:"chunks_count"`
	StrategyUsed string   `json:"strategy_used"`
	Errors       []string `json:"errors"`
}

// Pipeline runs ingestion jobs against a VectorIndex and a Ledger
type Pipeline struct {
	parser  *parser.Parser
	scanner *scanner.Scanner
	index   storage.VectorIndex
	ledger  storage.Ledger
	jobs    *JobStore
	config  Config
	logger  *slog.Logger
	newID   func() string

	pool  atomic.Pointer[WorkerPool]
	locks projectLocks

	// background jobs run under ctx so Close can stop them
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithScanner replaces the default scanner
func WithScanner(s *scanner.Scanner) Option {
	return func(p *Pipeline) {
		p.scanner = s
	}
}

// WithJobStore shares a job store with the pipeline
func WithJobStore(js *JobStore) Option {
	return func(p *Pipeline) {
		if js != nil {
			p.jobs = js
		}
	}
}

// WithLogger sets the pipeline's logger
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithIDGenerator replaces uuid job ids
func WithIDGenerator(fn func() string) Option {
	return func(p *Pipeline) {
		if fn != nil {
			p.newID = fn
		}
	}
}

// New creates a Pipeline
func New(pr *parser.Parser, index storage.VectorIndex, ledger storage.Ledger, cfg Config, opts ...Option) *Pipeline {
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pipeline{
		parser: pr,
		index:  index,
		ledger: ledger,
		config: cfg.withDefaults(),
		logger: slog.Default(),
		newID:  uuid.NewString,
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.jobs == nil {
		p.jobs = NewJobStore(0, 0)
	}
	if p.scanner == nil {
		p.scanner = scanner.New(pr, scanner.WithLogger(p.logger))
	}
	p.pool.Store(NewWorkerPool(p.config.MaxWorkers))
	return p
}

// Capabilities reports the parser's strategy availability
func (p *Pipeline) Capabilities() CapabilitiesInfo {
	caps := p.parser.Capabilities()
	return CapabilitiesInfo{
		AdvancedParserAvailable: caps.AdvancedAvailable(),
		SupportedStrategies:     types.StrategyNames(caps.AvailableStrategies()),
		Reason:                  caps.Reason(),
	}
}

// PoolSize returns the size of the current worker pool
func (p *Pipeline) PoolSize() int {
	return p.pool.Load().Size()
}

// Resize swaps in a pool of n workers. Jobs already running keep the pool
// they started with.
func (p *Pipeline) Resize(n int) {
	if n <= 0 || n == p.PoolSize() {
		return
	}
	old := p.pool.Swap(NewWorkerPool(n))
	p.logger.Info("worker pool resized", "from", old.Size(), "to", n)
}

// Jobs returns snapshots of every retained job, newest first
func (p *Pipeline) Jobs() []JobSnapshot {
	return p.jobs.List()
}

// Status returns the current state of a job
func (p *Pipeline) Status(jobID string) (*JobSnapshot, error) {
	job, err := p.jobs.Get(jobID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", err, jobID)
	}
	snap := job.Snapshot()
	return &snap, nil
}

// Submit registers a job and runs it in the background
func (p *Pipeline) Submit(ctx context.Context, req SubmitRequest) (*SubmitResponse, error) {
	job, err := p.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.locks.release(job.ProjectID)
		_ = p.Run(p.ctx, job)
	}()

	return &SubmitResponse{
		JobID:        job.ID,
		Capabilities: p.Capabilities(),
	}, nil
}

// Ingest registers a job and runs it to completion before returning
func (p *Pipeline) Ingest(ctx context.Context, req SubmitRequest) (*JobSnapshot, error) {
	job, err := p.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	defer p.locks.release(job.ProjectID)

	runErr := p.Run(ctx, job)
	snap := job.Snapshot()
	return &snap, runErr
}

func (p *Pipeline) prepare(ctx context.Context, req SubmitRequest) (*Job, error) {
	if p.ctx.Err() != nil {
		return nil, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := req.validate(); err != nil {
		return nil, err
	}
	if !p.locks.tryAcquire(req.ProjectID) {
		return nil, fmt.Errorf("%w: %s", ErrJobInProgress, req.ProjectID)
	}
	if req.MaxWorkers > 0 {
		p.Resize(req.MaxWorkers)
	}

	job := NewJob(p.newID(), req.ProjectID, req.ProjectPath)
	p.jobs.Put(job)
	p.logger.Info("ingestion job submitted",
		"job_id", job.ID,
		"project_id", job.ProjectID,
		"path", job.ProjectPath)
	return job, nil
}

// Run executes a job. The returned error is the orchestration failure that
// moved the job to failed, or nil when it completed.
func (p *Pipeline) Run(ctx context.Context, job *Job) (err error) {
	pool := p.pool.Load()
	job.start()
	p.logger.Info("ingestion job started", "job_id", job.ID, "workers", pool.Size())

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("ingestion panicked: %v", r)
		}
		if err != nil {
			job.fail(err)
			p.logger.Error("ingestion job failed", "job_id", job.ID, "error", err)
			return
		}
		job.complete()
		snap := job.Snapshot()
		p.logger.Info("ingestion job completed",
			"job_id", job.ID,
			"files", snap.ProcessedFiles,
			"failed", snap.FailedFiles,
			"chunks", snap.TotalChunks,
			"duration", snap.Duration())
	}()

	results, err := p.scanner.Scan(ctx, job.ProjectPath)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}
	job.setTotal(len(results))

	for start := 0; start < len(results); start += p.config.BatchSize {
		end := min(start+p.config.BatchSize, len(results))
		batch := results[start:end]

		outcomes, err := p.storeBatch(ctx, pool, job.ProjectID, batch)
		if err != nil {
			return fmt.Errorf("batch at file %d interrupted: %w", start, err)
		}
		p.recordBatch(ctx, job, outcomes)
	}
	return nil
}

// fileOutcome is the result of storing one scanned file
type fileOutcome struct {
	path     string
	hash     string
	strategy types.Strategy
	chunks   int
	skipped  bool
	errMsg   string // "<path>: <message>" when the file failed
}

func (o fileOutcome) failed() bool {
	return o.errMsg != ""
}

// storeBatch stores every file of a batch through the pool and waits for
// all of them. Only cancellation of ctx is returned as an error.
func (p *Pipeline) storeBatch(ctx context.Context, pool *WorkerPool, projectID string, batch []scanner.Result) ([]fileOutcome, error) {
	outcomes := make([]fileOutcome, len(batch))
	var g errgroup.Group

	for i := range batch {
		if err := pool.Acquire(ctx); err != nil {
			_ = g.Wait()
			return nil, err
		}
		g.Go(func() error {
			defer pool.Release()
			outcomes[i] = p.storeResult(ctx, projectID, &batch[i])
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return outcomes, nil
}

// storeResult turns one scan result into an outcome, storing its chunks
func (p *Pipeline) storeResult(ctx context.Context, projectID string, r *scanner.Result) fileOutcome {
	out := fileOutcome{path: r.Path}

	if r.Failed() {
		out.errMsg = strings.Join(r.Errors, "; ")
		if out.errMsg == "" {
			out.errMsg = fmt.Sprintf("%s: unreadable file", r.Path)
		}
		return out
	}

	meta := r.Metadata
	out.hash = meta.ContentHash
	out.strategy = meta.StrategyUsed

	previous := p.previousEntry(ctx, projectID, meta.FilePath)
	if p.config.SkipUnchanged && unchanged(previous, meta) {
		out.skipped = true
		return out
	}

	if err := p.dropStaleChunks(ctx, projectID, previous, meta); err != nil {
		p.logger.Warn("failed to remove stale chunks", "path", r.Path, "error", err)
		out.errMsg = fmt.Sprintf("%s: %v", r.Path, err)
		return out
	}

	stored, err := p.storeChunks(ctx, projectID, r.Chunks)
	out.chunks = stored
	if err != nil {
		p.logger.Warn("failed to store chunks", "path", r.Path, "error", err)
		out.errMsg = fmt.Sprintf("%s: %v", r.Path, err)
		return out
	}

	if parser.IsFallback(meta) {
		out.errMsg = fmt.Sprintf("%s: %s", r.Path, strings.Join(meta.Errors, "; "))
	}
	return out
}

// previousEntry returns the ledger entry of the file, or nil if there is none
func (p *Pipeline) previousEntry(ctx context.Context, projectID, filePath string) *storage.LedgerEntry {
	entry, err := p.ledger.GetFileStatus(ctx, projectID, filePath)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			p.logger.Debug("ledger lookup failed", "path", filePath, "error", err)
		}
		return nil
	}
	return entry
}

// unchanged reports whether the ledger already holds this content as indexed
func unchanged(previous *storage.LedgerEntry, meta *types.FileMetadata) bool {
	return previous != nil &&
		previous.Status == storage.StatusIndexed &&
		previous.ContentHash == meta.ContentHash
}

// dropStaleChunks removes the chunks of an earlier version of the file.
// Chunk ids derive from content, so a changed file would otherwise leave its
// old chunks behind.
func (p *Pipeline) dropStaleChunks(ctx context.Context, projectID string, previous *storage.LedgerEntry, meta *types.FileMetadata) error {
	if previous == nil || previous.ContentHash == meta.ContentHash {
		return nil
	}
	sctx, cancel := context.WithTimeout(ctx, p.config.StoreTimeout)
	defer cancel()
	if err := p.index.DeleteFile(sctx, projectID, meta.FilePath); err != nil {
		return fmt.Errorf("failed to remove previous chunks: %w", err)
	}
	return nil
}

// storeChunks adds chunks to the index under the store timeout
func (p *Pipeline) storeChunks(ctx context.Context, projectID string, chunks []types.Chunk) (int, error) {
	sctx, cancel := context.WithTimeout(ctx, p.config.StoreTimeout)
	defer cancel()

	for i, chunk := range chunks {
		if _, err := p.index.AddChunk(sctx, projectID, chunk); err != nil {
			return i, fmt.Errorf("failed to store chunk %s: %w", chunk.ID, err)
		}
	}
	return len(chunks), nil
}

// recordBatch writes ledger entries and job counters for a finished batch
func (p *Pipeline) recordBatch(ctx context.Context, job *Job, outcomes []fileOutcome) {
	for _, o := range outcomes {
		if !o.skipped {
			if err := p.updateLedger(ctx, job.ProjectID, o); err != nil {
				p.logger.Warn("failed to update ledger", "path", o.path, "error", err)
				if !o.failed() {
					o.errMsg = fmt.Sprintf("%s: ledger update failed: %v", o.path, err)
				}
			}
		}
		job.record(o)
	}
}

func (p *Pipeline) updateLedger(ctx context.Context, projectID string, o fileOutcome) error {
	entry := &storage.LedgerEntry{
		ProjectID:   projectID,
		FilePath:    o.path,
		ContentHash: o.hash,
		Status:      storage.StatusIndexed,
		ChunkCount:  o.chunks,
	}
	if o.failed() {
		entry.Status = storage.StatusError
		entry.LastError = o.errMsg
	}
	return p.ledger.UpsertFileStatus(ctx, entry)
}

// IngestFile parses and stores one file synchronously
func (p *Pipeline) IngestFile(ctx context.Context, req FileRequest) (*FileResponse, error) {
	if req.FilePath == "" || req.ProjectID == "" {
		return nil, fmt.Errorf("%w: file_path and project_id are required", ErrInvalidRequest)
	}

	meta, chunks := p.parser.Parse(req.FilePath, []byte(req.Content))
	resp := &FileResponse{
		StrategyUsed: string(meta.StrategyUsed),
		Errors:       append([]string{}, meta.Errors...),
	}

	out := fileOutcome{
		path:     req.FilePath,
		hash:     meta.ContentHash,
		strategy: meta.StrategyUsed,
	}

	previous := p.previousEntry(ctx, req.ProjectID, meta.FilePath)
	if err := p.dropStaleChunks(ctx, req.ProjectID, previous, meta); err != nil {
		out.errMsg = fmt.Sprintf("%s: %v", req.FilePath, err)
		resp.Errors = append(resp.Errors, err.Error())
		if err := p.updateLedger(ctx, req.ProjectID, out); err != nil {
			resp.Errors = append(resp.Errors, fmt.Sprintf("ledger update failed: %v", err))
		}
		return resp, nil
	}

	stored, err := p.storeChunks(ctx, req.ProjectID, chunks)
	out.chunks = stored
	resp.ChunksCount = stored
	switch {
	case err != nil:
		out.errMsg = fmt.Sprintf("%s: %v", req.FilePath, err)
		resp.Errors = append(resp.Errors, err.Error())
	case parser.IsFallback(meta):
		out.errMsg = fmt.Sprintf("%s: %s", req.FilePath, strings.Join(meta.Errors, "; "))
	}

	if err := p.updateLedger(ctx, req.ProjectID, out); err != nil {
		resp.Errors = append(resp.Errors, fmt.Sprintf("ledger update failed: %v", err))
	}
	return resp, nil
}

// DeleteProject removes a project's chunks from the index and its entries
// from the ledger. It fails with ErrJobInProgress while a job runs for the
// project.
func (p *Pipeline) DeleteProject(ctx context.Context, projectID string) error {
	if projectID == "" {
		return fmt.Errorf("%w: project_id is required", ErrInvalidRequest)
	}
	if !p.locks.tryAcquire(projectID) {
		return fmt.Errorf("%w: %s", ErrJobInProgress, projectID)
	}
	defer p.locks.release(projectID)

	if err := p.index.DeleteProject(ctx, projectID); err != nil {
		return fmt.Errorf("failed to delete indexed chunks: %w", err)
	}
	if err := p.ledger.ClearProject(ctx, projectID); err != nil {
		return fmt.Errorf("failed to clear ledger: %w", err)
	}
	p.logger.Info("project deleted", "project_id", projectID)
	return nil
}

// Close stops background jobs and waits for them to finish
func (p *Pipeline) Close() error {
	p.cancel()
	p.wg.Wait()
	return nil
}

// Wait blocks until every background job has finished
func (p *Pipeline) Wait() {
	p.wg.Wait()
}
