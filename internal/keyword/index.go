// Package keyword is a VectorIndex backed by bleve full-text indexes, one
// per project. Similarity is BM25 relevance of the query against chunk text.
package keyword

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/blevesearch/bleve/v2"
	keywordanalyzer "github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/dshills/codeingest/pkg/types"
)

const (
	// IndexSuffix is the suffix for index directories
	IndexSuffix = ".bleve"

	FieldContent     = "content"
	FieldFilePath    = "file_path"
	FieldLanguage    = "language"
	FieldElementName = "element_name"
	FieldElementKind = "element_kind"
	FieldStrategy    = "strategy"
	FieldStartLine   = "start_line"
	FieldEndLine     = "end_line"
)

// ErrClosed is returned after Close
var ErrClosed = errors.New("keyword index closed")

// document is the bleve representation of a chunk
type document struct {
	Content     string  `json:"content"`
	FilePath    string  `json:"file_path"`
	Language    string  `json:"language"`
	ElementName string  `json:"element_name"`
	ElementKind string  `json:"element_kind"`
	Strategy    string  `json:"strategy"`
	StartLine   float64 `json:"start_line"`
	EndLine     float64 `json:"end_line"`
}

// Index manages one bleve index per project. An empty base directory keeps
// every index in memory.
type Index struct {
	baseDir string

	mu      sync.Mutex
	indexes map[string]bleve.Index
	closed  bool
}

// New creates an Index rooted at baseDir
func New(baseDir string) *Index {
	return &Index{
		baseDir: baseDir,
		indexes: make(map[string]bleve.Index),
	}
}

// CreateIndexMapping builds the mapping for chunk documents
func CreateIndexMapping() mapping.IndexMapping {
	docMapping := bleve.NewDocumentMapping()

	contentField := bleve.NewTextFieldMapping()
	contentField.Analyzer = standard.Name
	contentField.Store = true
	contentField.IncludeTermVectors = true
	docMapping.AddFieldMappingsAt(FieldContent, contentField)

	// Element names are searchable as words and boosted at query time
	nameField := bleve.NewTextFieldMapping()
	nameField.Analyzer = standard.Name
	nameField.Store = true
	docMapping.AddFieldMappingsAt(FieldElementName, nameField)

	for _, name := range []string{FieldFilePath, FieldLanguage, FieldElementKind, FieldStrategy} {
		f := bleve.NewTextFieldMapping()
		f.Analyzer = keywordanalyzer.Name
		f.Store = true
		docMapping.AddFieldMappingsAt(name, f)
	}

	for _, name := range []string{FieldStartLine, FieldEndLine} {
		f := bleve.NewNumericFieldMapping()
		f.Index = false
		f.Store = true
		docMapping.AddFieldMappingsAt(name, f)
	}

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = docMapping
	indexMapping.DefaultAnalyzer = standard.Name
	return indexMapping
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// indexPath returns a filesystem-safe, collision-free directory for a project
func (x *Index) indexPath(projectID string) string {
	sum := sha256.Sum256([]byte(projectID))
	name := unsafeChars.ReplaceAllString(projectID, "_") + "-" + hex.EncodeToString(sum[:4])
	return filepath.Join(x.baseDir, name+IndexSuffix)
}

// open returns the project's index, creating it on first use
func (x *Index) open(projectID string) (bleve.Index, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.closed {
		return nil, ErrClosed
	}
	if idx, ok := x.indexes[projectID]; ok {
		return idx, nil
	}

	var (
		idx bleve.Index
		err error
	)
	if x.baseDir == "" {
		idx, err = bleve.NewMemOnly(CreateIndexMapping())
	} else {
		path := x.indexPath(projectID)
		idx, err = bleve.Open(path)
		if err != nil {
			if mkErr := os.MkdirAll(x.baseDir, 0o755); mkErr != nil {
				return nil, fmt.Errorf("failed to create index directory: %w", mkErr)
			}
			idx, err = bleve.New(path, CreateIndexMapping())
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open index for %s: %w", projectID, err)
	}

	x.indexes[projectID] = idx
	return idx, nil
}

// AddChunk indexes the chunk under its id, replacing any previous document
func (x *Index) AddChunk(ctx context.Context, projectID string, chunk types.Chunk) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := chunk.Validate(); err != nil {
		return "", fmt.Errorf("invalid chunk: %w", err)
	}

	idx, err := x.open(projectID)
	if err != nil {
		return "", err
	}

	doc := document{
		Content:     chunk.Content,
		FilePath:    chunk.FilePath(),
		Language:    chunk.Metadata[types.MetaLanguage],
		ElementName: chunk.ElementName(),
		ElementKind: chunk.Metadata[types.MetaElementKind],
		Strategy:    string(chunk.Strategy),
		StartLine:   float64(chunk.StartLine),
		EndLine:     float64(chunk.EndLine),
	}
	if err := idx.Index(chunk.ID, doc); err != nil {
		return "", fmt.Errorf("failed to index chunk %s: %w", chunk.ID, err)
	}
	return chunk.ID, nil
}

// QuerySimilar runs a match query over chunk content and element names
func (x *Index) QuerySimilar(ctx context.Context, projectID, text string, k int) ([]types.SimilarChunk, error) {
	if text == "" || k <= 0 {
		return []types.SimilarChunk{}, nil
	}

	idx, err := x.open(projectID)
	if err != nil {
		return nil, err
	}

	contentQuery := bleve.NewMatchQuery(text)
	contentQuery.SetField(FieldContent)

	nameQuery := bleve.NewMatchQuery(text)
	nameQuery.SetField(FieldElementName)
	nameQuery.SetBoost(3.0)

	req := bleve.NewSearchRequestOptions(bleve.NewDisjunctionQuery(contentQuery, nameQuery), k, 0, false)
	req.Fields = []string{
		FieldContent, FieldFilePath, FieldLanguage, FieldElementName, FieldElementKind, FieldStrategy,
	}

	res, err := idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("keyword search failed: %w", err)
	}

	results := make([]types.SimilarChunk, 0, len(res.Hits))
	for _, hit := range res.Hits {
		metadata := map[string]string{}
		for _, field := range []string{FieldFilePath, FieldLanguage, FieldElementName, FieldElementKind, FieldStrategy} {
			if s, ok := hit.Fields[field].(string); ok && s != "" {
				metadata[field] = s
			}
		}
		content, _ := hit.Fields[FieldContent].(string)

		results = append(results, types.SimilarChunk{
			ChunkID:  hit.ID,
			Content:  content,
			Metadata: metadata,
			Score:    normalizeScore(hit.Score),
		})
	}
	return results, nil
}

// deleteBatchSize bounds how many document ids one DeleteFile round collects
const deleteBatchSize = 1000

// DeleteFile removes every document of filePath from the project's index
func (x *Index) DeleteFile(ctx context.Context, projectID, filePath string) error {
	idx, err := x.open(projectID)
	if err != nil {
		return err
	}

	query := bleve.NewTermQuery(filePath)
	query.SetField(FieldFilePath)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		res, err := idx.SearchInContext(ctx, bleve.NewSearchRequestOptions(query, deleteBatchSize, 0, false))
		if err != nil {
			return fmt.Errorf("failed to find chunks of %s: %w", filePath, err)
		}
		if len(res.Hits) == 0 {
			return nil
		}

		batch := idx.NewBatch()
		for _, hit := range res.Hits {
			batch.Delete(hit.ID)
		}
		if err := idx.Batch(batch); err != nil {
			return fmt.Errorf("failed to delete chunks of %s: %w", filePath, err)
		}
	}
}

// DeleteProject closes and removes the project's index
func (x *Index) DeleteProject(ctx context.Context, projectID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	if idx, ok := x.indexes[projectID]; ok {
		_ = idx.Close()
		delete(x.indexes, projectID)
	}
	if x.baseDir == "" {
		return nil
	}
	if err := os.RemoveAll(x.indexPath(projectID)); err != nil {
		return fmt.Errorf("failed to remove index for %s: %w", projectID, err)
	}
	return nil
}

// Count returns the number of documents indexed for a project
func (x *Index) Count(projectID string) (uint64, error) {
	idx, err := x.open(projectID)
	if err != nil {
		return 0, err
	}
	return idx.DocCount()
}

// Close closes every open index
func (x *Index) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()

	var errs []error
	for id, idx := range x.indexes {
		if err := idx.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", id, err))
		}
	}
	x.indexes = map[string]bleve.Index{}
	x.closed = true
	return errors.Join(errs...)
}

// normalizeScore maps a BM25 score onto [0, 1)
func normalizeScore(score float64) float64 {
	if score <= 0 {
		return 0
	}
	return score / (1 + score)
}
