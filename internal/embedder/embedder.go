package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"

	lru "github.com/hashicorp/golang-lru/v2"
)

var (
	ErrEmptyText         = errors.New("text cannot be empty")
	ErrInvalidInput      = errors.New("invalid input")
	ErrProviderFailed    = errors.New("embedding provider failed")
	ErrUnsupportedModel  = errors.New("unsupported provider")
	ErrBatchTooLarge     = errors.New("batch size exceeds limit")
	ErrNoProviderEnabled = errors.New("no embedding provider configured")
)

// Embedder produces fixed-dimension vectors for text
type Embedder interface {
	// Embed returns the vector for one text
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns one vector per text, in input order
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	Dimension() int
	Provider() string
	Model() string
	Close() error
}

// Cache is an LRU of vectors keyed by text hash
type Cache struct {
	cache *lru.Cache[string, []float32]
}

// NewCache creates a cache holding at most maxLen vectors
func NewCache(maxLen int) *Cache {
	if maxLen <= 0 {
		maxLen = 10000
	}
	cache, err := lru.New[string, []float32](maxLen)
	if err != nil {
		cache, _ = lru.New[string, []float32](10000)
	}
	return &Cache{cache: cache}
}

// Get returns a copy of the cached vector so callers cannot mutate the entry
func (c *Cache) Get(hash string) ([]float32, bool) {
	v, ok := c.cache.Get(hash)
	if !ok {
		return nil, false
	}
	out := make([]float32, len(v))
	copy(out, v)
	return out, true
}

// Set stores a vector, evicting the least recently used entry when full
func (c *Cache) Set(hash string, v []float32) {
	c.cache.Add(hash, v)
}

// Size returns the number of cached vectors
func (c *Cache) Size() int {
	return c.cache.Len()
}

// Clear empties the cache
func (c *Cache) Clear() {
	c.cache.Purge()
}

// ComputeHash computes the SHA-256 of text, used as the cache key
func ComputeHash(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}

// CachedEmbedder serves repeated texts from a Cache
type CachedEmbedder struct {
	Embedder
	cache *Cache
}

// WithCache wraps e so repeated texts skip the provider
func WithCache(e Embedder, cache *Cache) *CachedEmbedder {
	return &CachedEmbedder{Embedder: e, cache: cache}
}

// Embed returns the cached vector or asks the wrapped provider
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	hash := ComputeHash(text)
	if v, ok := c.cache.Get(hash); ok {
		return v, nil
	}
	v, err := c.Embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Set(hash, v)
	return v, nil
}

// EmbedBatch only sends cache misses to the wrapped provider
func (c *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := validateBatch(texts); err != nil {
		return nil, err
	}

	out := make([][]float32, len(texts))
	var (
		missTexts []string
		missIdx   []int
	)
	for i, text := range texts {
		if v, ok := c.cache.Get(ComputeHash(text)); ok {
			out[i] = v
			continue
		}
		missTexts = append(missTexts, text)
		missIdx = append(missIdx, i)
	}
	if len(missTexts) == 0 {
		return out, nil
	}

	vectors, err := c.Embedder.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(missTexts) {
		return nil, fmt.Errorf("%w: got %d vectors for %d texts", ErrProviderFailed, len(vectors), len(missTexts))
	}
	for j, v := range vectors {
		out[missIdx[j]] = v
		c.cache.Set(ComputeHash(missTexts[j]), v)
	}
	return out, nil
}

// CacheSize returns the number of cached vectors
func (c *CachedEmbedder) CacheSize() int {
	return c.cache.Size()
}

func validateBatch(texts []string) error {
	if len(texts) == 0 {
		return fmt.Errorf("%w: no texts provided", ErrInvalidInput)
	}
	for i, text := range texts {
		if text == "" {
			return fmt.Errorf("%w: text at index %d is empty", ErrInvalidInput, i)
		}
	}
	return nil
}

// NormalizeVector scales v to unit length. A zero vector is returned unchanged.
func NormalizeVector(v []float32) []float32 {
	var sum float64
	for _, val := range v {
		sum += float64(val) * float64(val)
	}
	if sum == 0 {
		return v
	}

	norm := float32(math.Sqrt(sum))
	out := make([]float32, len(v))
	for i, val := range v {
		out[i] = val / norm
	}
	return out
}
