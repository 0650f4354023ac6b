package storage

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
)

// SearchVector returns the chunks of a project most similar to vector.
// Only chunks whose embedding has the same dimension are considered.
func (s *SQLiteStorage) SearchVector(ctx context.Context, projectID string, vector []float32, limit int) ([]VectorResult, error) {
	if limit <= 0 || len(vector) == 0 {
		return []VectorResult{}, nil
	}
	if VectorExtensionAvailable {
		return searchVectorOptimized(ctx, s.db, projectID, vector, limit)
	}
	return searchVectorFallback(ctx, s.db, projectID, vector, limit)
}

// searchVectorOptimized ranks candidates inside SQLite with sqlite-vec
func searchVectorOptimized(ctx context.Context, db *sql.DB, projectID string, queryVector []float32, limit int) ([]VectorResult, error) {
	// vec_distance_cosine returns a distance; 1 - distance is the similarity
	query := `
		SELECT chunk_id, 1.0 - vec_distance_cosine(vector, ?) AS similarity
		FROM chunks
		WHERE project_id = ? AND dimension = ?
		ORDER BY similarity DESC, chunk_id ASC
		LIMIT ?
	`
	rows, err := db.QueryContext(ctx, query, serializeVector(queryVector), projectID, len(queryVector), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to execute vector search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	results := make([]VectorResult, 0, limit)
	for rows.Next() {
		var result VectorResult
		if err := rows.Scan(&result.ChunkID, &result.SimilarityScore); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		results = append(results, result)
	}
	return results, rows.Err()
}

// searchVectorFallback loads every candidate embedding and ranks in Go
func searchVectorFallback(ctx context.Context, db *sql.DB, projectID string, queryVector []float32, limit int) ([]VectorResult, error) {
	query := `
		SELECT chunk_id, vector
		FROM chunks
		WHERE project_id = ? AND dimension = ?
	`
	rows, err := db.QueryContext(ctx, query, projectID, len(queryVector))
	if err != nil {
		return nil, fmt.Errorf("failed to query embeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	candidates := make([]candidate, 0, 256)
	for rows.Next() {
		var (
			chunkID string
			blob    []byte
		)
		if err := rows.Scan(&chunkID, &blob); err != nil {
			return nil, err
		}
		vector := deserializeVector(blob)
		if len(vector) != len(queryVector) {
			continue
		}
		candidates = append(candidates, candidate{chunkID: chunkID, score: cosineSimilarity(queryVector, vector)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sortCandidates(candidates)
	if limit > len(candidates) {
		limit = len(candidates)
	}

	results := make([]VectorResult, limit)
	for i := 0; i < limit; i++ {
		results[i] = VectorResult{ChunkID: candidates[i].chunkID, SimilarityScore: candidates[i].score}
	}
	return results, nil
}

// serializeVector converts a float32 slice to a byte blob (little-endian)
func serializeVector(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

// deserializeVector converts a byte blob back to a float32 slice
func deserializeVector(blob []byte) []float32 {
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vector
}

// cosineSimilarity computes the cosine similarity between two vectors
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

type candidate struct {
	chunkID string
	score   float64
}

// sortCandidates orders by descending score, ties by chunk id
func sortCandidates(candidates []candidate) {
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].chunkID < candidates[j].chunkID
	})
}
