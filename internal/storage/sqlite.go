package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dshills/codeingest/pkg/types"
)

// SQLiteStorage implements Ledger and the chunk vector store on one SQLite database
type SQLiteStorage struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// SQLite benefits from a single writer; also keeps :memory: on one connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage opens (or creates) the database at dbPath and applies migrations
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// withTx runs fn inside a transaction, committing only if fn succeeds
func (s *SQLiteStorage) withTx(ctx context.Context, fn func(q querier) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Ledger operations

// UpsertFileStatus creates or updates the ledger entry for (ProjectID, FilePath).
// LastIndexedAt only moves forward when the new status is indexed.
func (s *SQLiteStorage) UpsertFileStatus(ctx context.Context, entry *LedgerEntry) error {
	if entry.ProjectID == "" || entry.FilePath == "" {
		return ErrMissingKey
	}
	if err := entry.Status.Validate(); err != nil {
		return fmt.Errorf("%w: %q", err, entry.Status)
	}

	now := time.Now().UTC()
	var indexedAt interface{}
	if entry.Status == StatusIndexed {
		indexedAt = now
	}
	var lastError interface{}
	if entry.LastError != "" {
		lastError = entry.LastError
	}

	query := `
		INSERT INTO file_index_status (
			project_id, file_path, content_hash, status, chunk_count,
			last_indexed_at, last_error, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(project_id, file_path) DO UPDATE SET
			content_hash = excluded.content_hash,
			status = excluded.status,
			chunk_count = excluded.chunk_count,
			last_indexed_at = COALESCE(excluded.last_indexed_at, file_index_status.last_indexed_at),
			last_error = excluded.last_error,
			updated_at = excluded.updated_at
	`
	_, err := s.db.ExecContext(ctx, query,
		entry.ProjectID, entry.FilePath, entry.ContentHash, string(entry.Status), entry.ChunkCount,
		indexedAt, lastError, now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert file status: %w", err)
	}

	entry.UpdatedAt = now
	if entry.Status == StatusIndexed {
		entry.LastIndexedAt = now
	}
	return nil
}

// GetFileStatus retrieves the ledger entry for a file
func (s *SQLiteStorage) GetFileStatus(ctx context.Context, projectID, filePath string) (*LedgerEntry, error) {
	query := `
		SELECT project_id, file_path, content_hash, status, chunk_count,
			last_indexed_at, last_error, updated_at
		FROM file_index_status
		WHERE project_id = ? AND file_path = ?
	`
	entry, err := scanLedgerEntry(s.db.QueryRowContext(ctx, query, projectID, filePath))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get file status: %w", err)
	}
	return entry, nil
}

// ProjectStats counts ledger entries by status and sums chunk counts
func (s *SQLiteStorage) ProjectStats(ctx context.Context, projectID string) (*ProjectStats, error) {
	query := `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN status = 'indexed' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'error' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(chunk_count), 0)
		FROM file_index_status
		WHERE project_id = ?
	`
	stats := &ProjectStats{}
	err := s.db.QueryRowContext(ctx, query, projectID).Scan(
		&stats.TotalFiles, &stats.IndexedFiles, &stats.ErrorFiles, &stats.TotalChunks)
	if err != nil {
		return nil, fmt.Errorf("failed to compute project stats: %w", err)
	}
	return stats, nil
}

// RecentFiles lists indexed files ordered by last indexed time, newest first
func (s *SQLiteStorage) RecentFiles(ctx context.Context, projectID string, limit int) ([]*LedgerEntry, error) {
	if limit <= 0 {
		limit = 10
	}

	query := `
		SELECT project_id, file_path, content_hash, status, chunk_count,
			last_indexed_at, last_error, updated_at
		FROM file_index_status
		WHERE project_id = ? AND status = 'indexed'
		ORDER BY last_indexed_at DESC, file_path ASC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, projectID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent files: %w", err)
	}
	defer func() { _ = rows.Close() }()

	entries := make([]*LedgerEntry, 0, limit)
	for rows.Next() {
		entry, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanLedgerEntry(row rowScanner) (*LedgerEntry, error) {
	var (
		entry     LedgerEntry
		status    string
		indexedAt sql.NullTime
		lastError sql.NullString
	)
	err := row.Scan(
		&entry.ProjectID, &entry.FilePath, &entry.ContentHash, &status, &entry.ChunkCount,
		&indexedAt, &lastError, &entry.UpdatedAt)
	if err != nil {
		return nil, err
	}
	entry.Status = FileStatus(status)
	if indexedAt.Valid {
		entry.LastIndexedAt = indexedAt.Time
	}
	if lastError.Valid {
		entry.LastError = lastError.String
	}
	return &entry, nil
}

// Chunk operations

// UpsertChunk stores a chunk and its vector keyed by (projectID, chunk.ID)
func (s *SQLiteStorage) UpsertChunk(ctx context.Context, projectID string, chunk types.Chunk, vector []float32) error {
	if projectID == "" {
		return ErrMissingKey
	}
	if err := chunk.Validate(); err != nil {
		return fmt.Errorf("invalid chunk: %w", err)
	}

	metadata, err := json.Marshal(chunk.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode chunk metadata: %w", err)
	}

	now := time.Now().UTC()
	query := `
		INSERT INTO chunks (
			project_id, chunk_id, file_path, content, metadata,
			start_line, end_line, strategy, vector, dimension, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(project_id, chunk_id) DO UPDATE SET
			file_path = excluded.file_path,
			content = excluded.content,
			metadata = excluded.metadata,
			start_line = excluded.start_line,
			end_line = excluded.end_line,
			strategy = excluded.strategy,
			vector = excluded.vector,
			dimension = excluded.dimension,
			updated_at = excluded.updated_at
	`
	_, err = s.db.ExecContext(ctx, query,
		projectID, chunk.ID, chunk.FilePath(), chunk.Content, string(metadata),
		chunk.StartLine, chunk.EndLine, string(chunk.Strategy),
		serializeVector(vector), len(vector), now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert chunk: %w", err)
	}
	return nil
}

// GetChunk retrieves a stored chunk
func (s *SQLiteStorage) GetChunk(ctx context.Context, projectID, chunkID string) (*StoredChunk, error) {
	chunks, err := s.GetChunks(ctx, projectID, []string{chunkID})
	if err != nil {
		return nil, err
	}
	stored, ok := chunks[chunkID]
	if !ok {
		return nil, ErrNotFound
	}
	return stored, nil
}

// GetChunks retrieves several chunks by id. Missing ids are absent from the result.
func (s *SQLiteStorage) GetChunks(ctx context.Context, projectID string, chunkIDs []string) (map[string]*StoredChunk, error) {
	result := make(map[string]*StoredChunk, len(chunkIDs))
	if len(chunkIDs) == 0 {
		return result, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(chunkIDs)), ",")
	query := `
		SELECT chunk_id, content, metadata, start_line, end_line, strategy, vector
		FROM chunks
		WHERE project_id = ? AND chunk_id IN (` + placeholders + `)`

	args := make([]interface{}, 0, len(chunkIDs)+1)
	args = append(args, projectID)
	for _, id := range chunkIDs {
		args = append(args, id)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get chunks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			chunk    types.Chunk
			metadata string
			strategy string
			blob     []byte
		)
		if err := rows.Scan(&chunk.ID, &chunk.Content, &metadata,
			&chunk.StartLine, &chunk.EndLine, &strategy, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		if err := json.Unmarshal([]byte(metadata), &chunk.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata for chunk %s: %w", chunk.ID, err)
		}
		chunk.Strategy = types.Strategy(strategy)
		result[chunk.ID] = &StoredChunk{
			ProjectID: projectID,
			Chunk:     chunk,
			Vector:    deserializeVector(blob),
		}
	}
	return result, rows.Err()
}

// CountChunks returns the number of chunks stored for a project
func (s *SQLiteStorage) CountChunks(ctx context.Context, projectID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks WHERE project_id = ?", projectID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return count, nil
}

// DeleteChunks removes every chunk of a project, leaving the ledger untouched
func (s *SQLiteStorage) DeleteChunks(ctx context.Context, projectID string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM chunks WHERE project_id = ?", projectID); err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}
	return nil
}

// DeleteFileChunks removes the chunks of one file
func (s *SQLiteStorage) DeleteFileChunks(ctx context.Context, projectID, filePath string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM chunks WHERE project_id = ? AND file_path = ?", projectID, filePath)
	if err != nil {
		return fmt.Errorf("failed to delete chunks of %s: %w", filePath, err)
	}
	return nil
}

// ClearProject removes every ledger entry of a project
func (s *SQLiteStorage) ClearProject(ctx context.Context, projectID string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM file_index_status WHERE project_id = ?", projectID); err != nil {
		return fmt.Errorf("failed to delete ledger entries: %w", err)
	}
	return nil
}

// DeleteProject removes every chunk and ledger entry for a project
func (s *SQLiteStorage) DeleteProject(ctx context.Context, projectID string) error {
	return s.withTx(ctx, func(q querier) error {
		if _, err := q.ExecContext(ctx, "DELETE FROM chunks WHERE project_id = ?", projectID); err != nil {
			return fmt.Errorf("failed to delete chunks: %w", err)
		}
		if _, err := q.ExecContext(ctx, "DELETE FROM file_index_status WHERE project_id = ?", projectID); err != nil {
			return fmt.Errorf("failed to delete ledger entries: %w", err)
		}
		return nil
	})
}
