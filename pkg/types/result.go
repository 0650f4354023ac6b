package types

// SimilarChunk is one result of a similarity query against an index
type SimilarChunk struct {
	ChunkID  string
	Content  string
	Metadata map[string]string
	Score    float64 // higher is more similar, normalized to [0, 1]
}
