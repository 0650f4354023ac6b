// Package scanner walks a project tree and parses every eligible file.
package scanner

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/codeingest/internal/language"
	"github.com/dshills/codeingest/internal/parser"
	"github.com/dshills/codeingest/pkg/types"
)

// ReadFunc reads a file's content
type ReadFunc func(path string) ([]byte, error)

// Result is the outcome of scanning one file. Metadata is nil when the file
// could not be read or parsed at all.
type Result struct {
	Path     string
	Metadata *types.FileMetadata
	Chunks   []types.Chunk
	Errors   []string
}

// Failed returns true if the file produced no metadata
func (r *Result) Failed() bool {
	return r.Metadata == nil
}

// Scanner discovers and parses files under a project root
type Scanner struct {
	parser   *parser.Parser
	readFile ReadFunc
	workers  int
	logger   *slog.Logger
}

// Option configures a Scanner
type Option func(*Scanner)

// WithReader replaces the function used to read file content
func WithReader(fn ReadFunc) Option {
	return func(s *Scanner) {
		if fn != nil {
			s.readFile = fn
		}
	}
}

// WithWorkers bounds the number of files parsed concurrently
func WithWorkers(n int) Option {
	return func(s *Scanner) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithLogger sets the scanner's logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scanner) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a Scanner that parses files with p
func New(p *parser.Parser, opts ...Option) *Scanner {
	s := &Scanner{
		parser:   p,
		readFile: os.ReadFile,
		workers:  runtime.NumCPU(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan discovers every eligible file under root and parses it. Results are
// returned in walk order. Per-file failures are recorded in the result;
// only a failure to walk root itself is returned as an error.
func (s *Scanner) Scan(ctx context.Context, root string) ([]Result, error) {
	files, err := s.Discover(ctx, root)
	if err != nil {
		return nil, err
	}

	results := make([]Result, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for i, path := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = s.ScanFile(path)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("scan interrupted: %w", err)
	}

	s.logger.Debug("scan complete", "root", root, "files", len(results))
	return results, nil
}

// ScanFile reads and parses one file, converting any failure into a
// failed Result
func (s *Scanner) ScanFile(path string) (result Result) {
	result.Path = path

	defer func() {
		if r := recover(); r != nil {
			result = Result{
				Path:   path,
				Errors: []string{fmt.Sprintf("%s: parse panicked: %v", path, r)},
			}
		}
	}()

	content, err := s.readFile(path)
	if err != nil {
		s.logger.Warn("failed to read file", "path", path, "error", err)
		result.Errors = []string{fmt.Sprintf("%s: %v", path, err)}
		return result
	}

	meta, chunks := s.parser.Parse(path, content)
	result.Metadata = meta
	result.Chunks = chunks
	result.Errors = append(result.Errors, meta.Errors...)
	return result
}

// Discover walks root and returns the eligible files. Hidden and excluded
// directories are pruned before descending.
func (s *Scanner) Discover(ctx context.Context, root string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			s.logger.Warn("skipping unreadable entry", "path", path, "error", err)
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if d.IsDir() {
			if path == root {
				return nil
			}
			name := d.Name()
			if strings.HasPrefix(name, ".") || language.IsExcludedDir(name) {
				return filepath.SkipDir
			}
			return nil
		}

		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil || !language.IsEligiblePath(rel) {
			return nil
		}

		info, err := d.Info()
		if err != nil || info.Size() > language.MaxFileSize {
			return nil
		}

		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}

	return files, nil
}
