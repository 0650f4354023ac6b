package parser

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/dshills/codeingest/internal/chunker"
	"github.com/dshills/codeingest/internal/language"
	"github.com/dshills/codeingest/pkg/types"
)

// Attempt is the outcome of running one strategy
type Attempt struct {
	Strategy types.Strategy
	Err      error
}

// Succeeded returns true if the strategy produced a result
func (a Attempt) Succeeded() bool {
	return a.Err == nil
}

// Parser turns file content into metadata and chunks. It is safe for
// concurrent use.
type Parser struct {
	caps       *Capabilities
	extractors map[types.Strategy]Extractor
	chunker    *chunker.Chunker
	logger     *slog.Logger
}

// Option configures a Parser
type Option func(*Parser)

// WithLogger sets the logger used for strategy failures
func WithLogger(logger *slog.Logger) Option {
	return func(p *Parser) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithExtractor replaces the extractor used for a strategy
func WithExtractor(strategy types.Strategy, e Extractor) Option {
	return func(p *Parser) {
		p.extractors[strategy] = e
	}
}

// WithChunker sets the chunker used to cut parsed files
func WithChunker(c *chunker.Chunker) Option {
	return func(p *Parser) {
		if c != nil {
			p.chunker = c
		}
	}
}

// New creates a Parser using the given capabilities. A nil caps is
// treated as Disabled().
func New(caps *Capabilities, opts ...Option) *Parser {
	if caps == nil {
		caps = Disabled()
	}
	p := &Parser{
		caps:       caps,
		extractors: defaultExtractors(caps),
		chunker:    chunker.New(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Capabilities returns the capabilities the parser was built with
func (p *Parser) Capabilities() *Capabilities {
	return p.caps
}

// ParseFile reads a file from disk and parses it
func (p *Parser) ParseFile(path string) (*types.FileMetadata, []types.Chunk, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read file: %w", err)
	}
	meta, chunks := p.Parse(path, content)
	return meta, chunks, nil
}

// Parse extracts metadata and chunks from content. It never fails: when no
// strategy succeeds it returns a single fallback chunk.
func (p *Parser) Parse(path string, content []byte) (*types.FileMetadata, []types.Chunk) {
	meta, chunks, _ := p.ParseWithAttempts(path, content)
	return meta, chunks
}

// ParseWithAttempts is Parse plus the outcome of every strategy tried, in order
func (p *Parser) ParseWithAttempts(path string, content []byte) (*types.FileMetadata, []types.Chunk, []Attempt) {
	lang := language.DetectOrText(path)
	hash := types.ComputeContentHash(content)
	lines := chunker.SplitLines(string(content))

	order := p.caps.AttemptOrder(lang)
	attempts := make([]Attempt, 0, len(order))

	for _, strategy := range order {
		structure, err := p.extract(strategy, lang, content)
		attempts = append(attempts, Attempt{Strategy: strategy, Err: err})
		if err != nil {
			p.logger.Debug("parsing strategy failed",
				"path", path,
				"strategy", strategy,
				"error", err)
			continue
		}

		meta := &types.FileMetadata{
			Language:     lang,
			FilePath:     path,
			Functions:    structure.Functions,
			Classes:      structure.Classes,
			Imports:      structure.Imports,
			TotalLines:   len(lines),
			ContentHash:  hash,
			StrategyUsed: strategy,
		}
		return meta, p.chunker.Chunk(meta, lines), attempts
	}

	msg := fallbackMessage(attempts)
	p.logger.Warn("falling back to minimal parse", "path", path, "error", msg)

	meta := &types.FileMetadata{
		Language:     lang,
		FilePath:     path,
		TotalLines:   len(lines),
		ContentHash:  hash,
		StrategyUsed: types.StrategyFallback,
		Errors:       []string{msg},
	}
	chunk := chunker.Fallback(path, lang, string(content), len(lines))
	return meta, []types.Chunk{chunk}, attempts
}

// extract runs one strategy, converting a panic into an error
func (p *Parser) extract(strategy types.Strategy, lang string, content []byte) (s *Structure, err error) {
	e, ok := p.extractors[strategy]
	if !ok || e == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoExtractor, strategy)
	}

	defer func() {
		if r := recover(); r != nil {
			s, err = nil, fmt.Errorf("strategy %s panicked: %v", strategy, r)
		}
	}()

	s, err = e.Extract(lang, content)
	if err == nil && s == nil {
		s = &Structure{}
	}
	return s, err
}

func fallbackMessage(attempts []Attempt) string {
	parts := make([]string, 0, len(attempts))
	for _, a := range attempts {
		parts = append(parts, fmt.Sprintf("%s: %v", a.Strategy, a.Err))
	}
	return fmt.Sprintf("%v: %s", ErrAllStrategiesFailed, strings.Join(parts, "; "))
}

// IsFallback reports whether meta came from the minimal fallback path
func IsFallback(meta *types.FileMetadata) bool {
	return meta != nil && meta.StrategyUsed == types.StrategyFallback
}
