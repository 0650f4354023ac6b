package chunker

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/dshills/codeingest/pkg/types"
)

const (
	// FunctionSpan is the estimated length of a function in lines
	FunctionSpan = 20

	// ClassSpan is the estimated length of a class in lines
	ClassSpan = 50

	// ContextLines widens structure chunks on both sides
	ContextLines = 2

	// WindowSize is the number of lines in a fixed window
	WindowSize = 50

	// WindowOverlap is the number of lines shared by adjacent windows
	WindowOverlap = 10

	// FallbackPrefix is the number of characters kept in a fallback chunk
	FallbackPrefix = 2000
)

// Chunker creates chunks from parsed files
type Chunker struct {
	windowSize int
	overlap    int
}

// New creates a new Chunker instance with the default window parameters
func New() *Chunker {
	return &Chunker{
		windowSize: WindowSize,
		overlap:    WindowOverlap,
	}
}

// NewWithWindow creates a Chunker with a custom fixed window.
// Invalid values fall back to the defaults.
func NewWithWindow(size, overlap int) *Chunker {
	if size <= 0 {
		size = WindowSize
	}
	if overlap < 0 || overlap >= size {
		overlap = WindowOverlap
		if overlap >= size {
			overlap = 0
		}
	}
	return &Chunker{windowSize: size, overlap: overlap}
}

// Chunk picks the chunking mode for a parsed file: structure-aware when the
// parser found declarations, fixed-window otherwise.
func (c *Chunker) Chunk(meta *types.FileMetadata, lines []string) []types.Chunk {
	if meta.HasDeclarations() {
		decls := SortDeclarations(meta.Functions, meta.Classes)
		return c.ChunkStructure(meta.FilePath, meta.Language, lines, decls, meta.StrategyUsed)
	}
	return c.ChunkLines(meta.FilePath, meta.Language, lines, meta.StrategyUsed)
}

// ChunkStructure emits one chunk per declaration. decls must already be
// ordered by start line.
func (c *Chunker) ChunkStructure(filePath, language string, lines []string, decls []types.Declaration, strategy types.Strategy) []types.Chunk {
	chunks := make([]types.Chunk, 0, len(decls))

	for _, decl := range decls {
		start := decl.StartLine - ContextLines
		if start < 0 {
			start = 0
		}
		end := decl.StartLine + span(decl.Kind) + ContextLines
		if end > len(lines) {
			end = len(lines)
		}
		if start >= end {
			continue
		}

		meta := baseMetadata(filePath, language, strategy)
		meta[types.MetaElementName] = decl.Name
		meta[types.MetaElementKind] = string(decl.Kind)

		chunks = append(chunks, types.Chunk{
			ID:        types.StructureChunkID(filePath, decl.Kind, decl.Name, start),
			Content:   strings.Join(lines[start:end], "\n"),
			Metadata:  meta,
			StartLine: start,
			EndLine:   end,
			Strategy:  strategy,
		})
	}

	return chunks
}

// ChunkLines slides a fixed window across the file
func (c *Chunker) ChunkLines(filePath, language string, lines []string, strategy types.Strategy) []types.Chunk {
	stride := c.windowSize - c.overlap
	chunks := make([]types.Chunk, 0, len(lines)/stride+1)

	for start := 0; start < len(lines); start += stride {
		end := start + c.windowSize
		if end > len(lines) {
			end = len(lines)
		}

		chunks = append(chunks, types.Chunk{
			ID:        types.LineChunkID(filePath, start),
			Content:   strings.Join(lines[start:end], "\n"),
			Metadata:  baseMetadata(filePath, language, strategy),
			StartLine: start,
			EndLine:   end,
			Strategy:  strategy,
		})
	}

	return chunks
}

// Fallback creates the single chunk used when every parsing strategy failed.
// It holds at most FallbackPrefix characters of the file.
func Fallback(filePath, language, content string, totalLines int) types.Chunk {
	return types.Chunk{
		ID:        types.FallbackChunkID(filePath),
		Content:   truncateRunes(content, FallbackPrefix),
		Metadata:  baseMetadata(filePath, language, types.StrategyFallback),
		StartLine: 0,
		EndLine:   totalLines,
		Strategy:  types.StrategyFallback,
	}
}

// SplitLines splits content into lines. A trailing newline terminates the
// last line rather than starting an empty one.
func SplitLines(content string) []string {
	if content == "" {
		return nil
	}
	lines := strings.Split(content, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// SortDeclarations merges functions and classes ordered by start line.
// Declarations sharing a start line keep discovery order, functions first.
func SortDeclarations(functions, classes []types.Declaration) []types.Declaration {
	decls := make([]types.Declaration, 0, len(functions)+len(classes))
	decls = append(decls, functions...)
	decls = append(decls, classes...)
	sort.SliceStable(decls, func(i, j int) bool {
		return decls[i].StartLine < decls[j].StartLine
	})
	return decls
}

// span returns the estimated length of a declaration kind
func span(kind types.DeclKind) int {
	if kind == types.DeclClass {
		return ClassSpan
	}
	return FunctionSpan
}

func baseMetadata(filePath, language string, strategy types.Strategy) map[string]string {
	return map[string]string{
		types.MetaFilePath: filePath,
		types.MetaLanguage: language,
		types.MetaStrategy: string(strategy),
	}
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	count := 0
	for i := range s {
		if count == limit {
			return s[:i]
		}
		count++
	}
	return s
}
