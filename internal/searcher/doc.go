// Package searcher fuses two chunk indexes into a single hybrid index.
//
// A Hybrid writes every chunk to a semantic index and a keyword index and
// answers similarity queries by running both concurrently and merging the
// rankings with Reciprocal Rank Fusion (RRF):
//
//	RRF(d) = Σ 1/(k + rank(d))
//
// Either query may fail; the other's ranking is used alone. Only when both
// fail does QuerySimilar return an error.
//
// # Basic Usage
//
//	h := searcher.NewHybrid(storage.NewEmbeddingIndex(store, emb), keyword.New(dir))
//
//	results, err := h.QuerySimilar(ctx, "my-project", "parse config file", 10)
//	for _, r := range results {
//	    fmt.Printf("%s (score: %.2f)\n", r.ChunkID, r.Score)
//	}
//
// Scores are the fused RRF value divided by its maximum, 2/(k+1), so a
// chunk ranked first by both indexes scores 1.
package searcher
