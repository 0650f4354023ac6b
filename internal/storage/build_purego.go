//go:build !sqlite_vec

package storage

// Default build: pure Go SQLite via modernc.org/sqlite, no C compiler
// required. Similarity is computed in Go after loading candidate vectors.

import (
	_ "modernc.org/sqlite"
)

const (
	// DriverName is the SQLite driver to use
	DriverName = "sqlite"

	// VectorExtensionAvailable indicates if vector extension is available
	VectorExtensionAvailable = false

	// BuildMode describes the current build configuration
	BuildMode = "purego"
)
