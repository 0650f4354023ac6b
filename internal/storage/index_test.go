package storage

import (
	"context"
	"testing"

	"github.com/dshills/codeingest/internal/embedder"
	"github.com/dshills/codeingest/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestIndex(t *testing.T) (*EmbeddingIndex, *SQLiteStorage) {
	t.Helper()
	store := setupTestDB(t)
	return NewEmbeddingIndex(store, embedder.NewLocalProvider(128)), store
}

func TestEmbeddingIndex_AddChunkIdempotent(t *testing.T) {
	index, store := setupTestIndex(t)
	ctx := context.Background()

	chunk := testChunk("a.py", 0, "def parse_file(path): pass")
	id, err := index.AddChunk(ctx, "p1", chunk)
	require.NoError(t, err)
	assert.Equal(t, chunk.ID, id)

	_, err = index.AddChunk(ctx, "p1", chunk)
	require.NoError(t, err)

	count, err := store.CountChunks(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestEmbeddingIndex_QuerySimilar(t *testing.T) {
	index, _ := setupTestIndex(t)
	ctx := context.Background()

	chunks := []types.Chunk{
		testChunk("io.py", 0, "def read_file(path): return open(path).read()"),
		testChunk("ui.py", 0, "class Button: color = 'red'; theme = 'dark'"),
		testChunk("net.py", 0, "def fetch_url(url): return http.get(url)"),
	}
	for _, c := range chunks {
		_, err := index.AddChunk(ctx, "p1", c)
		require.NoError(t, err)
	}

	results, err := index.QuerySimilar(ctx, "p1", "read file path", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, chunks[0].ID, results[0].ChunkID)
	assert.Equal(t, "io.py", results[0].Metadata[types.MetaFilePath])
	assert.Contains(t, results[0].Content, "read_file")
	assert.GreaterOrEqual(t, results[0].Score, results[1].Score)
	for _, r := range results {
		assert.GreaterOrEqual(t, r.Score, 0.0)
		assert.LessOrEqual(t, r.Score, 1.0)
	}
}

func TestEmbeddingIndex_QuerySimilarEmpty(t *testing.T) {
	index, _ := setupTestIndex(t)

	results, err := index.QuerySimilar(context.Background(), "p1", "", 5)
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = index.QuerySimilar(context.Background(), "p1", "anything", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestEmbeddingIndex_DeleteProject(t *testing.T) {
	index, store := setupTestIndex(t)
	ctx := context.Background()

	_, err := index.AddChunk(ctx, "p1", testChunk("a.py", 0, "x = 1"))
	require.NoError(t, err)
	require.NoError(t, store.UpsertFileStatus(ctx, &LedgerEntry{ProjectID: "p1", FilePath: "a.py", Status: StatusIndexed}))
	require.NoError(t, index.DeleteProject(ctx, "p1"))

	count, err := store.CountChunks(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	// the ledger belongs to the Ledger, not the index
	_, err = store.GetFileStatus(ctx, "p1", "a.py")
	assert.NoError(t, err)
}

func TestEmbeddingIndex_DeleteFile(t *testing.T) {
	index, store := setupTestIndex(t)
	ctx := context.Background()

	_, err := index.AddChunk(ctx, "p1", testChunk("a.py", 0, "def old_name(): pass"))
	require.NoError(t, err)
	_, err = index.AddChunk(ctx, "p1", testChunk("b.py", 0, "def other(): pass"))
	require.NoError(t, err)

	require.NoError(t, index.DeleteFile(ctx, "p1", "a.py"))

	count, err := store.CountChunks(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	results, err := index.QuerySimilar(ctx, "p1", "def old_name(): pass", 5)
	require.NoError(t, err)
	for _, r := range results {
		assert.NotEqual(t, "a.py", r.Metadata[types.MetaFilePath])
	}
}

func TestClampScore(t *testing.T) {
	assert.Equal(t, 0.0, clampScore(-0.3))
	assert.Equal(t, 1.0, clampScore(1.0000001))
	assert.Equal(t, 0.5, clampScore(0.5))
}
