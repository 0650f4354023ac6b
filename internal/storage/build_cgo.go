//go:build sqlite_vec

package storage

// Compiled with CGO and the sqlite_vec tag:
//
//	CGO_ENABLED=1 go build -tags sqlite_vec ./...
//
// Registers the sqlite-vec extension with mattn/go-sqlite3 so that
// vec_distance_cosine ranks chunks inside the database.

import (
	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

func init() {
	sqlite_vec.Auto()
}

const (
	// DriverName is the SQLite driver to use
	DriverName = "sqlite3"

	// VectorExtensionAvailable indicates if vector extension is available
	VectorExtensionAvailable = true

	// BuildMode describes the current build configuration
	BuildMode = "cgo"
)
