package types

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Metadata keys carried in Chunk.Metadata
const (
	MetaFilePath    = "file_path"
	MetaLanguage    = "language"
	MetaElementName = "element_name"
	MetaElementKind = "element_kind"
	MetaStrategy    = "strategy"
)

// Chunk represents a bounded slice of a file's text, the unit stored in an index
type Chunk struct {
	ID        string
	Content   string            // raw slice text, newlines preserved
	Metadata  map[string]string // file path, language, optional enclosing element
	StartLine int               // 0-based, inclusive
	EndLine   int               // exclusive
	Strategy  Strategy
}

// FilePath returns the file the chunk was cut from
func (c *Chunk) FilePath() string {
	return c.Metadata[MetaFilePath]
}

// ElementName returns the enclosing declaration name, if any
func (c *Chunk) ElementName() string {
	return c.Metadata[MetaElementName]
}

// Validate performs basic validation of the chunk
func (c *Chunk) Validate() error {
	if c.ID == "" {
		return ErrEmptyChunkID
	}
	if c.FilePath() == "" {
		return ErrMissingFilePath
	}
	if c.StartLine < 0 || c.EndLine < c.StartLine {
		return fmt.Errorf("%w: [%d, %d)", ErrInvalidLineRange, c.StartLine, c.EndLine)
	}
	return c.Strategy.Validate()
}

// LineChunkID returns the identifier of a fixed-window chunk
func LineChunkID(filePath string, startLine int) string {
	return hashKey(fmt.Sprintf("%s:%d", filePath, startLine))
}

// StructureChunkID returns the identifier of a declaration-bounded chunk
func StructureChunkID(filePath string, kind DeclKind, name string, startLine int) string {
	return hashKey(fmt.Sprintf("%s:%s:%s:%d", filePath, kind, name, startLine))
}

// FallbackChunkID returns the identifier of the single chunk produced when parsing failed
func FallbackChunkID(filePath string) string {
	return hashKey(filePath + ":full")
}

func hashKey(key string) string {
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:16])
}
