package storage

import (
	"context"
	"errors"
	"time"

	"github.com/dshills/codeingest/pkg/types"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")

	// ErrInvalidStatus is returned for a ledger status outside indexed|pending|error
	ErrInvalidStatus = errors.New("invalid file status")

	// ErrMissingKey is returned when a project id or file path is empty
	ErrMissingKey = errors.New("project id and file path are required")
)

// FileStatus is the ingestion state of one file in the ledger
type FileStatus string

const (
	StatusIndexed FileStatus = "indexed"
	StatusPending FileStatus = "pending"
	StatusError   FileStatus = "error"
)

// Validate checks the status is one of the known values
func (s FileStatus) Validate() error {
	switch s {
	case StatusIndexed, StatusPending, StatusError:
		return nil
	}
	return ErrInvalidStatus
}

// LedgerEntry is the durable record of one (project, file) pair
type LedgerEntry struct {
	ProjectID     string
	FilePath      string
	ContentHash   string
	Status        FileStatus
	ChunkCount    int
	LastIndexedAt time.Time // zero until the file is first indexed
	LastError     string
	UpdatedAt     time.Time
}

// ProjectStats summarises ledger coverage for a project
type ProjectStats struct {
	TotalFiles   int `json:"total_files"`
	IndexedFiles int `json:"indexed_files"`
	ErrorFiles   int `json:"error_files"`
	TotalChunks  int `json:"total_chunks"`
}

// Ledger records per-file ingestion state
type Ledger interface {
	// UpsertFileStatus creates or replaces the entry keyed by (ProjectID, FilePath)
	UpsertFileStatus(ctx context.Context, entry *LedgerEntry) error

	// GetFileStatus returns ErrNotFound if the file was never recorded
	GetFileStatus(ctx context.Context, projectID, filePath string) (*LedgerEntry, error)

	ProjectStats(ctx context.Context, projectID string) (*ProjectStats, error)

	// RecentFiles lists indexed files, most recently indexed first
	RecentFiles(ctx context.Context, projectID string, limit int) ([]*LedgerEntry, error)

	// ClearProject removes every ledger entry of a project
	ClearProject(ctx context.Context, projectID string) error
}

// VectorIndex stores chunks per project and answers similarity queries
type VectorIndex interface {
	// AddChunk stores a chunk, overwriting any chunk with the same id
	AddChunk(ctx context.Context, projectID string, chunk types.Chunk) (string, error)

	// QuerySimilar returns at most k chunks ordered by descending score
	QuerySimilar(ctx context.Context, projectID, text string, k int) ([]types.SimilarChunk, error)

	// DeleteFile removes every chunk a file contributed to the project
	DeleteFile(ctx context.Context, projectID, filePath string) error

	// DeleteProject removes every chunk stored for a project
	DeleteProject(ctx context.Context, projectID string) error
}

// StoredChunk is a chunk row together with its embedding
type StoredChunk struct {
	ProjectID string
	Chunk     types.Chunk
	Vector    []float32
}

// VectorResult is a chunk id with its similarity to a query vector
type VectorResult struct {
	ChunkID         string
	SimilarityScore float64
}
