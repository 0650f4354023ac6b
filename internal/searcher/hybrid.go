package searcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/dshills/codeingest/internal/storage"
	"github.com/dshills/codeingest/pkg/types"
)

// DefaultRRFConstant is the k in 1/(k + rank)
const DefaultRRFConstant = 60.0

// candidateFactor widens each sub-query so fusion sees overlap beyond the top k
const candidateFactor = 2

// Hybrid is a storage.VectorIndex backed by a semantic and a keyword index
type Hybrid struct {
	vector storage.VectorIndex
	text   storage.VectorIndex
	k      float64
	logger *slog.Logger
}

// Option configures a Hybrid
type Option func(*Hybrid)

// WithRRFConstant overrides the fusion constant; non-positive values are ignored
func WithRRFConstant(k float64) Option {
	return func(h *Hybrid) {
		if k > 0 {
			h.k = k
		}
	}
}

// WithLogger sets the logger used to report degraded queries
func WithLogger(logger *slog.Logger) Option {
	return func(h *Hybrid) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewHybrid combines vector and text into one index
func NewHybrid(vector, text storage.VectorIndex, opts ...Option) *Hybrid {
	h := &Hybrid{vector: vector, text: text, k: DefaultRRFConstant, logger: slog.Default()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

var _ storage.VectorIndex = (*Hybrid)(nil)

// AddChunk writes the chunk to both indexes. A chunk missing from either
// index is an error; re-adding is idempotent so a retry repairs it.
func (h *Hybrid) AddChunk(ctx context.Context, projectID string, chunk types.Chunk) (string, error) {
	id, err := h.vector.AddChunk(ctx, projectID, chunk)
	if err != nil {
		return "", fmt.Errorf("vector index: %w", err)
	}
	if _, err := h.text.AddChunk(ctx, projectID, chunk); err != nil {
		return "", fmt.Errorf("keyword index: %w", err)
	}
	return id, nil
}

// queryResult holds results from one concurrent sub-query
type queryResult struct {
	chunks []types.SimilarChunk
	err    error
}

func runQuery(ctx context.Context, idx storage.VectorIndex, projectID, text string, k int, out chan<- queryResult) {
	var res queryResult
	res.chunks, res.err = idx.QuerySimilar(ctx, projectID, text, k)
	select {
	case out <- res:
	case <-ctx.Done():
	}
}

// QuerySimilar runs both sub-queries and returns at most k fused results
func (h *Hybrid) QuerySimilar(ctx context.Context, projectID, text string, k int) ([]types.SimilarChunk, error) {
	if k <= 0 {
		return []types.SimilarChunk{}, nil
	}

	vectorChan := make(chan queryResult, 1)
	textChan := make(chan queryResult, 1)

	go runQuery(ctx, h.vector, projectID, text, k*candidateFactor, vectorChan)
	go runQuery(ctx, h.text, projectID, text, k*candidateFactor, textChan)

	var vectorRes, textRes queryResult
	var vectorDone, textDone bool
	for !vectorDone || !textDone {
		select {
		case vectorRes = <-vectorChan:
			vectorDone = true
		case textRes = <-textChan:
			textDone = true
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if vectorRes.err != nil && textRes.err != nil {
		return nil, fmt.Errorf("both searches failed: vector=%w, text=%w", vectorRes.err, textRes.err)
	}
	if vectorRes.err != nil {
		h.logger.WarnContext(ctx, "vector search failed, using keyword results only",
			"project_id", projectID, "error", vectorRes.err)
	}
	if textRes.err != nil {
		h.logger.WarnContext(ctx, "keyword search failed, using vector results only",
			"project_id", projectID, "error", textRes.err)
	}

	fused := fuse(h.k, vectorRes.chunks, textRes.chunks)
	if len(fused) > k {
		fused = fused[:k]
	}
	return fused, nil
}

// fuse merges rankings with Reciprocal Rank Fusion
func fuse(k float64, rankings ...[]types.SimilarChunk) []types.SimilarChunk {
	scores := make(map[string]float64)
	chunks := make(map[string]types.SimilarChunk)

	for _, ranking := range rankings {
		for rank, c := range ranking {
			scores[c.ChunkID] += 1.0 / (k + float64(rank+1))
			if _, ok := chunks[c.ChunkID]; !ok {
				chunks[c.ChunkID] = c
			}
		}
	}

	maxScore := float64(len(rankings)) / (k + 1)
	results := make([]types.SimilarChunk, 0, len(scores))
	for id, score := range scores {
		c := chunks[id]
		c.Score = score / maxScore
		results = append(results, c)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ChunkID < results[j].ChunkID
	})
	return results
}

// DeleteFile removes the file's chunks from both indexes
func (h *Hybrid) DeleteFile(ctx context.Context, projectID, filePath string) error {
	return errors.Join(
		h.vector.DeleteFile(ctx, projectID, filePath),
		h.text.DeleteFile(ctx, projectID, filePath),
	)
}

// DeleteProject clears the project from both indexes
func (h *Hybrid) DeleteProject(ctx context.Context, projectID string) error {
	return errors.Join(
		h.vector.DeleteProject(ctx, projectID),
		h.text.DeleteProject(ctx, projectID),
	)
}
