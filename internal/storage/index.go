package storage

import (
	"context"
	"fmt"

	"github.com/dshills/codeingest/internal/embedder"
	"github.com/dshills/codeingest/pkg/types"
)

// EmbeddingIndex is the VectorIndex backed by SQLite chunk rows and an Embedder
type EmbeddingIndex struct {
	store    *SQLiteStorage
	embedder embedder.Embedder
}

// NewEmbeddingIndex creates a VectorIndex that embeds chunk text with e
func NewEmbeddingIndex(store *SQLiteStorage, e embedder.Embedder) *EmbeddingIndex {
	return &EmbeddingIndex{store: store, embedder: e}
}

// AddChunk embeds the chunk content and upserts it
func (x *EmbeddingIndex) AddChunk(ctx context.Context, projectID string, chunk types.Chunk) (string, error) {
	var vector []float32
	if chunk.Content != "" {
		v, err := x.embedder.Embed(ctx, chunk.Content)
		if err != nil {
			return "", fmt.Errorf("failed to embed chunk %s: %w", chunk.ID, err)
		}
		vector = v
	}

	if err := x.store.UpsertChunk(ctx, projectID, chunk, vector); err != nil {
		return "", err
	}
	return chunk.ID, nil
}

// QuerySimilar embeds text and returns the k nearest chunks with scores in [0, 1]
func (x *EmbeddingIndex) QuerySimilar(ctx context.Context, projectID, text string, k int) ([]types.SimilarChunk, error) {
	if text == "" || k <= 0 {
		return []types.SimilarChunk{}, nil
	}

	vector, err := x.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	hits, err := x.store.SearchVector(ctx, projectID, vector, k)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.ChunkID
	}
	chunks, err := x.store.GetChunks(ctx, projectID, ids)
	if err != nil {
		return nil, err
	}

	results := make([]types.SimilarChunk, 0, len(hits))
	for _, h := range hits {
		stored, ok := chunks[h.ChunkID]
		if !ok {
			continue
		}
		results = append(results, types.SimilarChunk{
			ChunkID:  h.ChunkID,
			Content:  stored.Chunk.Content,
			Metadata: stored.Chunk.Metadata,
			Score:    clampScore(h.SimilarityScore),
		})
	}
	return results, nil
}

// DeleteFile removes the chunks of one file
func (x *EmbeddingIndex) DeleteFile(ctx context.Context, projectID, filePath string) error {
	return x.store.DeleteFileChunks(ctx, projectID, filePath)
}

// DeleteProject removes all chunks of the project. Ledger rows are left to
// the Ledger.
func (x *EmbeddingIndex) DeleteProject(ctx context.Context, projectID string) error {
	return x.store.DeleteChunks(ctx, projectID)
}

func clampScore(s float64) float64 {
	switch {
	case s < 0:
		return 0
	case s > 1:
		return 1
	default:
		return s
	}
}
