package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dshills/codeingest/internal/parser"
	"github.com/dshills/codeingest/internal/scanner"
	"github.com/dshills/codeingest/internal/storage"
	"github.com/dshills/codeingest/pkg/types"
)

var errSimulatedIO = errors.New("simulated I/O error")

// eventLog records store and ledger calls in the order they happen
type eventLog struct {
	mu     sync.Mutex
	events []event
}

type event struct {
	kind string // "store" or "ledger"
	path string
}

func (l *eventLog) add(kind, path string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event{kind: kind, path: path})
}

func (l *eventLog) snapshot() []event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]event(nil), l.events...)
}

// fakeIndex is an in-memory VectorIndex that tracks concurrency
type fakeIndex struct {
	mu          sync.Mutex
	chunks      map[string]types.Chunk
	calls       int
	failPath    string
	failDelete  bool
	gate        chan struct{}
	inFlight    int
	maxInFlight int
	events      *eventLog
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{chunks: make(map[string]types.Chunk)}
}

func (f *fakeIndex) AddChunk(ctx context.Context, projectID string, chunk types.Chunk) (string, error) {
	f.mu.Lock()
	f.calls++
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	gate := f.gate
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	f.events.add("store", chunk.FilePath())

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	if f.failPath != "" && chunk.FilePath() == f.failPath {
		return "", errors.New("index unavailable")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.chunks[projectID+"/"+chunk.ID] = chunk
	return chunk.ID, nil
}

func (f *fakeIndex) QuerySimilar(ctx context.Context, projectID, text string, k int) ([]types.SimilarChunk, error) {
	return nil, nil
}

func (f *fakeIndex) DeleteFile(ctx context.Context, projectID, filePath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDelete {
		return errors.New("index unavailable")
	}
	for key, c := range f.chunks {
		if strings.HasPrefix(key, projectID+"/") && c.FilePath() == filePath {
			delete(f.chunks, key)
		}
	}
	return nil
}

func (f *fakeIndex) DeleteProject(ctx context.Context, projectID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for key := range f.chunks {
		if strings.HasPrefix(key, projectID+"/") {
			delete(f.chunks, key)
		}
	}
	return nil
}

func (f *fakeIndex) stats() (calls, stored, maxInFlight int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls, len(f.chunks), f.maxInFlight
}

// fakeLedger is an in-memory Ledger
type fakeLedger struct {
	mu         sync.Mutex
	entries    map[string]*storage.LedgerEntry
	failUpsert bool
	events     *eventLog
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{entries: make(map[string]*storage.LedgerEntry)}
}

func (f *fakeLedger) UpsertFileStatus(ctx context.Context, entry *storage.LedgerEntry) error {
	f.events.add("ledger", entry.FilePath)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpsert {
		return errors.New("ledger unavailable")
	}
	e := *entry
	f.entries[entry.ProjectID+"/"+entry.FilePath] = &e
	return nil
}

func (f *fakeLedger) GetFileStatus(ctx context.Context, projectID, filePath string) (*storage.LedgerEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[projectID+"/"+filePath]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (f *fakeLedger) ProjectStats(ctx context.Context, projectID string) (*storage.ProjectStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stats := &storage.ProjectStats{}
	for _, e := range f.entries {
		if e.ProjectID != projectID {
			continue
		}
		stats.TotalFiles++
		switch e.Status {
		case storage.StatusIndexed:
			stats.IndexedFiles++
		case storage.StatusError:
			stats.ErrorFiles++
		}
		stats.TotalChunks += e.ChunkCount
	}
	return stats, nil
}

func (f *fakeLedger) RecentFiles(ctx context.Context, projectID string, limit int) ([]*storage.LedgerEntry, error) {
	return nil, nil
}

func (f *fakeLedger) ClearProject(ctx context.Context, projectID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for key, e := range f.entries {
		if e.ProjectID == projectID {
			delete(f.entries, key)
		}
	}
	return nil
}

func (f *fakeLedger) entry(projectID, path string) *storage.LedgerEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.entries[projectID+"/"+path]
}

func createTestFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// createPythonProject writes n python files named f00.py, f01.py, ...
func createPythonProject(t *testing.T, n int) (string, []string) {
	t.Helper()
	root := t.TempDir()
	paths := make([]string, n)
	for i := 0; i < n; i++ {
		paths[i] = createTestFile(t, root, fmt.Sprintf("f%02d.py", i),
			fmt.Sprintf("def func_%d():\n    return %d\n", i, i))
	}
	return root, paths
}

// failingReader fails reads for paths ending in suffix
func failingReader(suffix string) scanner.ReadFunc {
	return func(path string) ([]byte, error) {
		if strings.HasSuffix(path, suffix) {
			return nil, errSimulatedIO
		}
		return os.ReadFile(path)
	}
}

func newTestPipeline(t *testing.T, index storage.VectorIndex, ledger storage.Ledger, cfg Config, opts ...Option) *Pipeline {
	t.Helper()
	p := New(parser.New(parser.Disabled()), index, ledger, cfg, opts...)
	t.Cleanup(func() { _ = p.Close() })
	return p
}
