package types

import (
	"crypto/sha256"
	"encoding/hex"
)

// DeclKind represents the kind of a structural declaration
type DeclKind string

const (
	DeclFunction DeclKind = "function"
	DeclClass    DeclKind = "class"
)

// Declaration is a function or class found in a file
type Declaration struct {
	Name      string
	Kind      DeclKind
	StartLine int // 0-based line of the declaration
}

// FileMetadata is the language-agnostic result of parsing one file.
// It is immutable once returned by the parser.
type FileMetadata struct {
	Language     string
	FilePath     string
	Functions    []Declaration
	Classes      []Declaration
	Imports      []string // deduplicated, unordered
	TotalLines   int
	ContentHash  string // hex SHA-256 of the raw bytes
	StrategyUsed Strategy
	Errors       []string // non-fatal messages collected while parsing
}

// HasDeclarations returns true if any function or class was found
func (m *FileMetadata) HasDeclarations() bool {
	return len(m.Functions) > 0 || len(m.Classes) > 0
}

// HasErrors returns true if parsing recorded any error message
func (m *FileMetadata) HasErrors() bool {
	return len(m.Errors) > 0
}

// ComputeContentHash returns the hex SHA-256 digest of content
func ComputeContentHash(content []byte) string {
	h := sha256.Sum256(content)
	return hex.EncodeToString(h[:])
}
