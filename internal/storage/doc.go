// Package storage persists the ingestion ledger and indexed chunks in SQLite.
//
// # Tables
//
//   - file_index_status: one row per (project_id, file_path) holding the last
//     content hash, status (indexed, pending, error), chunk count, last
//     indexed time and last error. Writes are upserts on the unique key.
//   - chunks: one row per (project_id, chunk_id) holding the chunk text,
//     JSON metadata, line range, producing strategy and its embedding as a
//     little-endian float32 blob.
//
// # Usage
//
//	store, err := storage.NewSQLiteStorage("~/.ingestd/ingestd.db")
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	index := storage.NewEmbeddingIndex(store, emb)
//	_, err = index.AddChunk(ctx, "my-project", chunk)
//	hits, err := index.QuerySimilar(ctx, "my-project", "open a file", 5)
//
// # Build Modes
//
// The default build uses modernc.org/sqlite and ranks vectors in Go. Building
// with -tags sqlite_vec (CGO required) switches to mattn/go-sqlite3 with the
// sqlite-vec extension and ranks with vec_distance_cosine in SQL.
//
// Schema changes are applied by ApplyMigrations, ordered by semantic version.
package storage
