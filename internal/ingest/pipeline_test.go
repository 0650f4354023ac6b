package ingest

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/codeingest/internal/embedder"
	"github.com/dshills/codeingest/internal/keyword"
	"github.com/dshills/codeingest/internal/parser"
	"github.com/dshills/codeingest/internal/scanner"
	"github.com/dshills/codeingest/internal/storage"
	"github.com/dshills/codeingest/pkg/types"
)

func TestPipeline_TwoFilesOneUnreadable(t *testing.T) {
	root := t.TempDir()
	pathA := createTestFile(t, root, "a.py", "def foo():\n    return 1\n")
	pathB := createTestFile(t, root, "b.py", "def bar():\n    return 2\n")

	index, ledger := newFakeIndex(), newFakeLedger()
	p := New(parser.New(parser.Disabled()), index, ledger, DefaultConfig(),
		WithScanner(scanner.New(parser.New(parser.Disabled()), scanner.WithReader(failingReader("b.py")))))
	defer p.Close()

	resp, err := p.Submit(context.Background(), SubmitRequest{ProjectPath: root, ProjectID: "proj"})
	require.NoError(t, err)
	require.NotEmpty(t, resp.JobID)
	assert.False(t, resp.Capabilities.AdvancedParserAvailable)
	assert.Equal(t, []string{"regex", "lines"}, resp.Capabilities.SupportedStrategies)

	p.Wait()

	snap, err := p.Status(resp.JobID)
	require.NoError(t, err)
	assert.Equal(t, JobCompleted, snap.Status)
	assert.Equal(t, 2, snap.TotalFiles)
	assert.Equal(t, 2, snap.ProcessedFiles)
	assert.Equal(t, 1, snap.SuccessfulFiles)
	assert.Equal(t, 1, snap.FailedFiles)
	require.Len(t, snap.Errors, 1)
	assert.Contains(t, snap.Errors[0], "b.py")
	assert.Contains(t, snap.Errors[0], errSimulatedIO.Error())
	assert.Equal(t, map[string]int{"regex": 1}, snap.StrategiesUsed)
	require.NotNil(t, snap.StartedAt)
	require.NotNil(t, snap.CompletedAt)

	entryA := ledger.entry("proj", pathA)
	require.NotNil(t, entryA)
	assert.Equal(t, storage.StatusIndexed, entryA.Status)
	assert.Equal(t, 1, entryA.ChunkCount)

	entryB := ledger.entry("proj", pathB)
	require.NotNil(t, entryB)
	assert.Equal(t, storage.StatusError, entryB.Status)
	assert.Contains(t, entryB.LastError, "b.py")
}

func TestPipeline_CountersInvariant(t *testing.T) {
	root, _ := createPythonProject(t, 23)
	createTestFile(t, root, "broken.py", "def x():\x00\n")

	index, ledger := newFakeIndex(), newFakeLedger()
	p := newTestPipeline(t, index, ledger, Config{MaxWorkers: 3, BatchSize: 4},
		WithScanner(scanner.New(parser.New(parser.Disabled()), scanner.WithReader(failingReader("f07.py")))))

	snap, err := p.Ingest(context.Background(), SubmitRequest{ProjectPath: root, ProjectID: "proj"})
	require.NoError(t, err)

	assert.Equal(t, JobCompleted, snap.Status)
	assert.Equal(t, 24, snap.TotalFiles)
	assert.Equal(t, snap.TotalFiles, snap.ProcessedFiles)
	assert.Equal(t, snap.ProcessedFiles, snap.SuccessfulFiles+snap.FailedFiles)
	assert.Equal(t, 2, snap.FailedFiles)
	assert.Len(t, snap.Errors, 2)

	// broken.py is stored as a fallback chunk but counted as failed
	assert.Equal(t, 1, snap.StrategiesUsed["fallback"])
	assert.Equal(t, 22, snap.StrategiesUsed["regex"])
	assert.Equal(t, 23, snap.TotalChunks)

	_, stored, _ := index.stats()
	assert.Equal(t, 23, stored)
}

func TestPipeline_ScanFailureFailsJob(t *testing.T) {
	p := newTestPipeline(t, newFakeIndex(), newFakeLedger(), DefaultConfig())

	snap, err := p.Ingest(context.Background(), SubmitRequest{
		ProjectPath: filepath.Join(t.TempDir(), "missing"),
		ProjectID:   "proj",
	})
	require.Error(t, err)
	assert.Equal(t, JobFailed, snap.Status)
	assert.NotNil(t, snap.CompletedAt)
	require.Len(t, snap.Errors, 1)
	assert.Contains(t, snap.Errors[0], "scan failed")
}

func TestPipeline_StorageFailureIsPerFile(t *testing.T) {
	root, paths := createPythonProject(t, 3)
	index, ledger := newFakeIndex(), newFakeLedger()
	index.failPath = paths[1]

	p := newTestPipeline(t, index, ledger, DefaultConfig())
	snap, err := p.Ingest(context.Background(), SubmitRequest{ProjectPath: root, ProjectID: "proj"})
	require.NoError(t, err)

	assert.Equal(t, JobCompleted, snap.Status)
	assert.Equal(t, 2, snap.SuccessfulFiles)
	assert.Equal(t, 1, snap.FailedFiles)
	require.Len(t, snap.Errors, 1)
	assert.Contains(t, snap.Errors[0], "f01.py")
	assert.Equal(t, storage.StatusError, ledger.entry("proj", paths[1]).Status)
}

func TestPipeline_LedgerFailureIsPerFile(t *testing.T) {
	root, _ := createPythonProject(t, 3)
	ledger := newFakeLedger()
	ledger.failUpsert = true

	p := newTestPipeline(t, newFakeIndex(), ledger, DefaultConfig())
	snap, err := p.Ingest(context.Background(), SubmitRequest{ProjectPath: root, ProjectID: "proj"})
	require.NoError(t, err)

	assert.Equal(t, JobCompleted, snap.Status)
	assert.Equal(t, 3, snap.FailedFiles)
	assert.Equal(t, 0, snap.SuccessfulFiles)
	for _, msg := range snap.Errors {
		assert.Contains(t, msg, "ledger update failed")
	}
}

func TestPipeline_BoundedConcurrency(t *testing.T) {
	root, _ := createPythonProject(t, 12)
	index := newFakeIndex()
	index.gate = make(chan struct{})

	p := newTestPipeline(t, index, newFakeLedger(), Config{MaxWorkers: 2, BatchSize: 6})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = p.Ingest(context.Background(), SubmitRequest{ProjectPath: root, ProjectID: "proj"})
	}()

	// Let chunks through one at a time
	for i := 0; i < 12; i++ {
		index.gate <- struct{}{}
	}
	<-done

	calls, _, maxInFlight := index.stats()
	assert.Equal(t, 12, calls)
	assert.LessOrEqual(t, maxInFlight, 2)
}

func TestPipeline_BatchLedgerPrecedesNextBatch(t *testing.T) {
	root, paths := createPythonProject(t, 6)
	log := &eventLog{}
	index, ledger := newFakeIndex(), newFakeLedger()
	index.events, ledger.events = log, log

	p := newTestPipeline(t, index, ledger, Config{MaxWorkers: 2, BatchSize: 2})
	_, err := p.Ingest(context.Background(), SubmitRequest{ProjectPath: root, ProjectID: "proj"})
	require.NoError(t, err)

	batchOf := make(map[string]int, len(paths))
	for i, path := range paths {
		batchOf[path] = i / 2
	}

	events := log.snapshot()
	require.Len(t, events, 12)

	last := -1
	for _, e := range events {
		order := batchOf[e.path] * 2
		if e.kind == "ledger" {
			order++
		}
		assert.GreaterOrEqual(t, order, last, "event %s %s out of order", e.kind, e.path)
		last = order
	}
}

func TestPipeline_StatusNotFound(t *testing.T) {
	p := newTestPipeline(t, newFakeIndex(), newFakeLedger(), DefaultConfig())
	_, err := p.Status("nope")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestPipeline_SubmitValidation(t *testing.T) {
	p := newTestPipeline(t, newFakeIndex(), newFakeLedger(), DefaultConfig())
	ctx := context.Background()

	_, err := p.Submit(ctx, SubmitRequest{ProjectID: "proj"})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = p.Submit(ctx, SubmitRequest{ProjectPath: "/tmp"})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = p.Submit(ctx, SubmitRequest{ProjectPath: "/tmp", ProjectID: "p", MaxWorkers: -1})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestPipeline_RejectsConcurrentJobForProject(t *testing.T) {
	root, _ := createPythonProject(t, 1)
	index := newFakeIndex()
	index.gate = make(chan struct{})

	p := newTestPipeline(t, index, newFakeLedger(), DefaultConfig())
	ctx := context.Background()

	first, err := p.Submit(ctx, SubmitRequest{ProjectPath: root, ProjectID: "proj"})
	require.NoError(t, err)

	_, err = p.Submit(ctx, SubmitRequest{ProjectPath: root, ProjectID: "proj"})
	assert.ErrorIs(t, err, ErrJobInProgress)

	// A different project is not blocked
	other, err := p.Submit(ctx, SubmitRequest{ProjectPath: root, ProjectID: "other"})
	require.NoError(t, err)

	close(index.gate)
	p.Wait()

	for _, id := range []string{first.JobID, other.JobID} {
		snap, err := p.Status(id)
		require.NoError(t, err)
		assert.Equal(t, JobCompleted, snap.Status)
	}

	_, err = p.Submit(ctx, SubmitRequest{ProjectPath: root, ProjectID: "proj"})
	assert.NoError(t, err)
	p.Wait()
}

func TestPipeline_Resize(t *testing.T) {
	root, _ := createPythonProject(t, 2)
	p := newTestPipeline(t, newFakeIndex(), newFakeLedger(), Config{MaxWorkers: 4})
	assert.Equal(t, 4, p.PoolSize())

	p.Resize(8)
	assert.Equal(t, 8, p.PoolSize())

	p.Resize(0)
	assert.Equal(t, 8, p.PoolSize())

	_, err := p.Ingest(context.Background(), SubmitRequest{ProjectPath: root, ProjectID: "proj", MaxWorkers: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, p.PoolSize())
}

func TestPipeline_ResizeDuringJobKeepsOldPool(t *testing.T) {
	root, _ := createPythonProject(t, 4)
	index := newFakeIndex()
	index.gate = make(chan struct{})

	p := newTestPipeline(t, index, newFakeLedger(), Config{MaxWorkers: 1, BatchSize: 4})
	resp, err := p.Submit(context.Background(), SubmitRequest{ProjectPath: root, ProjectID: "proj"})
	require.NoError(t, err)

	// First chunk is blocked inside the old pool
	index.gate <- struct{}{}
	p.Resize(16)

	for i := 0; i < 3; i++ {
		index.gate <- struct{}{}
	}
	p.Wait()

	snap, err := p.Status(resp.JobID)
	require.NoError(t, err)
	assert.Equal(t, JobCompleted, snap.Status)

	_, _, maxInFlight := index.stats()
	assert.Equal(t, 1, maxInFlight)
}

func TestPipeline_ReingestIsIdempotent(t *testing.T) {
	root, _ := createPythonProject(t, 5)
	index, ledger := newFakeIndex(), newFakeLedger()
	p := newTestPipeline(t, index, ledger, DefaultConfig())
	ctx := context.Background()

	_, err := p.Ingest(ctx, SubmitRequest{ProjectPath: root, ProjectID: "proj"})
	require.NoError(t, err)
	_, stored1, _ := index.stats()

	snap, err := p.Ingest(ctx, SubmitRequest{ProjectPath: root, ProjectID: "proj"})
	require.NoError(t, err)
	calls, stored2, _ := index.stats()

	assert.Equal(t, stored1, stored2)
	assert.Equal(t, 10, calls, "unchanged files are reprocessed by default")
	assert.Equal(t, 0, snap.SkippedFiles)

	stats, err := ledger.ProjectStats(ctx, "proj")
	require.NoError(t, err)
	assert.Equal(t, 5, stats.TotalFiles)
}

func TestPipeline_SkipUnchanged(t *testing.T) {
	root, paths := createPythonProject(t, 3)
	index, ledger := newFakeIndex(), newFakeLedger()
	p := newTestPipeline(t, index, ledger, Config{SkipUnchanged: true})
	ctx := context.Background()

	_, err := p.Ingest(ctx, SubmitRequest{ProjectPath: root, ProjectID: "proj"})
	require.NoError(t, err)

	createTestFile(t, root, filepath.Base(paths[0]), "def changed():\n    pass\n")

	snap, err := p.Ingest(ctx, SubmitRequest{ProjectPath: root, ProjectID: "proj"})
	require.NoError(t, err)

	assert.Equal(t, 3, snap.SuccessfulFiles)
	assert.Equal(t, 2, snap.SkippedFiles)
	calls, _, _ := index.stats()
	assert.Equal(t, 4, calls)
}

func TestPipeline_IngestFile(t *testing.T) {
	index, ledger := newFakeIndex(), newFakeLedger()
	p := newTestPipeline(t, index, ledger, DefaultConfig())
	ctx := context.Background()

	resp, err := p.IngestFile(ctx, FileRequest{
		Content:   "def foo():\n    pass\n\nclass Bar:\n    pass\n",
		FilePath:  "src/foo.py",
		ProjectID: "proj",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.ChunksCount)
	assert.Equal(t, string(types.StrategyRegex), resp.StrategyUsed)
	assert.Empty(t, resp.Errors)

	entry := ledger.entry("proj", "src/foo.py")
	require.NotNil(t, entry)
	assert.Equal(t, storage.StatusIndexed, entry.Status)
	assert.Equal(t, 2, entry.ChunkCount)

	_, err = p.IngestFile(ctx, FileRequest{Content: "x"})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestPipeline_IngestFileFallback(t *testing.T) {
	ledger := newFakeLedger()
	p := newTestPipeline(t, newFakeIndex(), ledger, DefaultConfig())

	resp, err := p.IngestFile(context.Background(), FileRequest{
		Content:   "bad\x00content",
		FilePath:  "bin.py",
		ProjectID: "proj",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.ChunksCount)
	assert.Equal(t, string(types.StrategyFallback), resp.StrategyUsed)
	require.Len(t, resp.Errors, 1)
	assert.Contains(t, resp.Errors[0], parser.ErrAllStrategiesFailed.Error())
	assert.Equal(t, storage.StatusError, ledger.entry("proj", "bin.py").Status)
}

func TestPipeline_CloseStopsBackgroundJobs(t *testing.T) {
	root, _ := createPythonProject(t, 2)
	index := newFakeIndex()
	index.gate = make(chan struct{})

	p := New(parser.New(parser.Disabled()), index, newFakeLedger(), DefaultConfig())
	resp, err := p.Submit(context.Background(), SubmitRequest{ProjectPath: root, ProjectID: "proj"})
	require.NoError(t, err)

	closed := make(chan struct{})
	go func() {
		_ = p.Close()
		close(closed)
	}()

	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not return")
	}

	snap, err := p.Status(resp.JobID)
	require.NoError(t, err)
	assert.True(t, snap.Status.IsTerminal())
}

func TestPipeline_WithSQLiteStorage(t *testing.T) {
	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer store.Close()

	root := t.TempDir()
	createTestFile(t, root, "app.py", "import os\n\ndef main():\n    return os.getcwd()\n")
	createTestFile(t, root, "lib/util.js", "function helper() {\n  return 1;\n}\n")

	index := storage.NewEmbeddingIndex(store, embedder.NewLocalProvider(64))
	p := newTestPipeline(t, index, store, DefaultConfig(),
		WithIDGenerator(func() string { return "job-1" }))
	ctx := context.Background()

	snap, err := p.Ingest(ctx, SubmitRequest{ProjectPath: root, ProjectID: "proj"})
	require.NoError(t, err)
	assert.Equal(t, "job-1", snap.JobID)
	assert.Equal(t, 2, snap.SuccessfulFiles)

	stats, err := store.ProjectStats(ctx, "proj")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalFiles)
	assert.Equal(t, 2, stats.IndexedFiles)
	assert.Equal(t, snap.TotalChunks, stats.TotalChunks)

	results, err := index.QuerySimilar(ctx, "proj", "def main(): return os.getcwd()", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, filepath.Join(root, "app.py"), results[0].Metadata[types.MetaFilePath])
}

func TestPipeline_Jobs(t *testing.T) {
	root, _ := createPythonProject(t, 1)
	n := 0
	p := newTestPipeline(t, newFakeIndex(), newFakeLedger(), DefaultConfig(),
		WithIDGenerator(func() string { n++; return fmt.Sprintf("job-%d", n) }))

	for i := 0; i < 3; i++ {
		_, err := p.Ingest(context.Background(), SubmitRequest{ProjectPath: root, ProjectID: "proj"})
		require.NoError(t, err)
	}

	jobs := p.Jobs()
	require.Len(t, jobs, 3)
	for _, j := range jobs {
		assert.Equal(t, JobCompleted, j.Status)
	}
}

func TestPipeline_ChangedFileReplacesChunks(t *testing.T) {
	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer store.Close()

	root := t.TempDir()
	path := createTestFile(t, root, "a.py", "def old_name():\n    return 1\n")

	index := storage.NewEmbeddingIndex(store, embedder.NewLocalProvider(64))
	p := newTestPipeline(t, index, store, DefaultConfig())
	ctx := context.Background()

	_, err = p.Ingest(ctx, SubmitRequest{ProjectPath: root, ProjectID: "proj"})
	require.NoError(t, err)

	createTestFile(t, root, "a.py", "def new_name():\n    return 2\n")
	snap, err := p.Ingest(ctx, SubmitRequest{ProjectPath: root, ProjectID: "proj"})
	require.NoError(t, err)
	assert.Equal(t, 1, snap.SuccessfulFiles)

	entry, err := store.GetFileStatus(ctx, "proj", path)
	require.NoError(t, err)
	count, err := store.CountChunks(ctx, "proj")
	require.NoError(t, err)
	assert.Equal(t, entry.ChunkCount, count)

	results, err := index.QuerySimilar(ctx, "proj", "def old_name():\n    return 1", 5)
	require.NoError(t, err)
	for _, r := range results {
		assert.NotContains(t, r.Content, "old_name")
	}
}

func TestPipeline_UnchangedFileKeepsChunks(t *testing.T) {
	root := t.TempDir()
	createTestFile(t, root, "a.py", "def foo():\n    return 1\n")

	index, ledger := newFakeIndex(), newFakeLedger()
	index.failDelete = true
	p := newTestPipeline(t, index, ledger, DefaultConfig())

	for i := 0; i < 2; i++ {
		snap, err := p.Ingest(context.Background(), SubmitRequest{ProjectPath: root, ProjectID: "proj"})
		require.NoError(t, err)
		assert.Equal(t, 1, snap.SuccessfulFiles)
	}
	_, stored, _ := index.stats()
	assert.Equal(t, 1, stored)
}

func TestPipeline_StaleChunkRemovalFailureIsPerFile(t *testing.T) {
	root := t.TempDir()
	path := createTestFile(t, root, "a.py", "def foo():\n    return 1\n")

	index, ledger := newFakeIndex(), newFakeLedger()
	p := newTestPipeline(t, index, ledger, DefaultConfig())
	ctx := context.Background()

	_, err := p.Ingest(ctx, SubmitRequest{ProjectPath: root, ProjectID: "proj"})
	require.NoError(t, err)

	createTestFile(t, root, "a.py", "def bar():\n    return 2\n")
	index.mu.Lock()
	index.failDelete = true
	index.mu.Unlock()

	snap, err := p.Ingest(ctx, SubmitRequest{ProjectPath: root, ProjectID: "proj"})
	require.NoError(t, err)
	assert.Equal(t, JobCompleted, snap.Status)
	assert.Equal(t, 1, snap.FailedFiles)
	require.Len(t, snap.Errors, 1)
	assert.Contains(t, snap.Errors[0], "previous chunks")
	assert.Equal(t, storage.StatusError, ledger.entry("proj", path).Status)
}

func TestPipeline_IngestFileReplacesChunks(t *testing.T) {
	index, ledger := newFakeIndex(), newFakeLedger()
	p := newTestPipeline(t, index, ledger, DefaultConfig())
	ctx := context.Background()

	_, err := p.IngestFile(ctx, FileRequest{ProjectID: "proj", FilePath: "a.py", Content: "def old_name():\n    return 1\n"})
	require.NoError(t, err)
	resp, err := p.IngestFile(ctx, FileRequest{ProjectID: "proj", FilePath: "a.py", Content: "def new_name():\n    return 2\n"})
	require.NoError(t, err)
	assert.Empty(t, resp.Errors)

	_, stored, _ := index.stats()
	assert.Equal(t, ledger.entry("proj", "a.py").ChunkCount, stored)
}

func TestPipeline_SubmitAfterClose(t *testing.T) {
	root, _ := createPythonProject(t, 1)
	p := New(parser.New(parser.Disabled()), newFakeIndex(), newFakeLedger(), DefaultConfig())
	require.NoError(t, p.Close())

	_, err := p.Submit(context.Background(), SubmitRequest{ProjectPath: root, ProjectID: "proj"})
	assert.ErrorIs(t, err, ErrClosed)

	_, err = p.Ingest(context.Background(), SubmitRequest{ProjectPath: root, ProjectID: "proj"})
	assert.ErrorIs(t, err, ErrClosed)
	assert.Empty(t, p.Jobs())
}

func TestPipeline_DeleteProjectClearsIndexAndLedger(t *testing.T) {
	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer store.Close()

	index := keyword.New("")
	defer index.Close()

	root, paths := createPythonProject(t, 3)
	p := newTestPipeline(t, index, store, DefaultConfig())
	ctx := context.Background()

	_, err = p.Ingest(ctx, SubmitRequest{ProjectPath: root, ProjectID: "proj"})
	require.NoError(t, err)
	count, err := index.Count("proj")
	require.NoError(t, err)
	require.Equal(t, uint64(3), count)

	require.NoError(t, p.DeleteProject(ctx, "proj"))

	count, err = index.Count("proj")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), count)

	stats, err := store.ProjectStats(ctx, "proj")
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalFiles)
	_, err = store.GetFileStatus(ctx, "proj", paths[0])
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestPipeline_DeleteProjectWhileIngesting(t *testing.T) {
	root, _ := createPythonProject(t, 1)
	index := newFakeIndex()
	index.gate = make(chan struct{})
	p := newTestPipeline(t, index, newFakeLedger(), DefaultConfig())

	_, err := p.Submit(context.Background(), SubmitRequest{ProjectPath: root, ProjectID: "proj"})
	require.NoError(t, err)

	err = p.DeleteProject(context.Background(), "proj")
	assert.ErrorIs(t, err, ErrJobInProgress)

	close(index.gate)
	p.Wait()
	assert.NoError(t, p.DeleteProject(context.Background(), "proj"))
	assert.ErrorIs(t, p.DeleteProject(context.Background(), ""), ErrInvalidRequest)
}
