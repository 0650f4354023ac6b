package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/dshills/codeingest/internal/config"
	"github.com/dshills/codeingest/internal/embedder"
	"github.com/dshills/codeingest/internal/ingest"
	"github.com/dshills/codeingest/internal/keyword"
	"github.com/dshills/codeingest/internal/parser"
	"github.com/dshills/codeingest/internal/searcher"
	"github.com/dshills/codeingest/internal/storage"
)

// application holds the wired components shared by every command
type application struct {
	settings *config.Settings
	logger   *slog.Logger
	store    *storage.SQLiteStorage
	index    storage.VectorIndex
	parser   *parser.Parser
	jobs     *ingest.JobStore
	pipeline *ingest.Pipeline
	closers  []io.Closer
}

// loadSettings resolves and validates settings from the command's flags
func loadSettings(flags *pflag.FlagSet) (*config.Settings, error) {
	settings, err := config.LoadSettingsWithFlags(flags)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	if err := config.ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return settings, nil
}

// newLogger builds the stderr logger and installs it as the default.
// stdout is reserved for MCP protocol messages and command output.
func newLogger(settings *config.Settings) *slog.Logger {
	logger := config.NewLogger(os.Stderr, settings.LogLevel)
	slog.SetDefault(logger)
	return logger
}

// newCapabilities probes the advanced parser unless disabled
func newCapabilities(settings *config.Settings) *parser.Capabilities {
	if settings.AdvancedParser == config.AdvancedParserOff {
		return parser.Disabled()
	}
	return parser.DetectCapabilities()
}

// newApplication opens storage and builds the pipeline
func newApplication(settings *config.Settings, logger *slog.Logger) (*application, error) {
	if dir := filepath.Dir(settings.DBPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	store, err := storage.NewSQLiteStorage(settings.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	app := &application{
		settings: settings,
		logger:   logger,
		store:    store,
		closers:  []io.Closer{store},
	}

	if err := app.openIndex(); err != nil {
		_ = app.Close()
		return nil, err
	}

	caps := newCapabilities(settings)
	if !caps.AdvancedAvailable() {
		logger.Info("advanced parser unavailable", "reason", caps.Reason())
	}

	app.parser = parser.New(caps, parser.WithLogger(logger))
	app.jobs = ingest.NewJobStore(settings.JobRetention, settings.MaxJobs)
	app.pipeline = ingest.New(app.parser, app.index, store, ingest.Config{
		MaxWorkers:    settings.MaxWorkers,
		BatchSize:     settings.BatchSize,
		StoreTimeout:  settings.StoreTimeout,
		SkipUnchanged: settings.SkipUnchanged,
	},
		ingest.WithJobStore(app.jobs),
		ingest.WithLogger(logger),
	)
	return app, nil
}

// openIndex builds the chunk index selected by index-backend
func (a *application) openIndex() error {
	if a.settings.IndexBackend == config.BackendBleve {
		idx := keyword.New(a.settings.BleveDir)
		a.index = idx
		a.closers = append(a.closers, idx)
		return nil
	}

	emb, err := embedder.New(embedder.Config{
		Provider:  a.settings.Embedding.Provider,
		APIKey:    a.settings.Embedding.APIKey,
		BaseURL:   a.settings.Embedding.BaseURL,
		Model:     a.settings.Embedding.Model,
		CacheSize: a.settings.Embedding.CacheSize,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize embedder: %w", err)
	}
	a.closers = append(a.closers, emb)
	vector := storage.NewEmbeddingIndex(a.store, emb)

	if a.settings.IndexBackend != config.BackendHybrid {
		a.index = vector
		return nil
	}
	text := keyword.New(a.settings.BleveDir)
	a.closers = append(a.closers, text)
	a.index = searcher.NewHybrid(vector, text, searcher.WithLogger(a.logger))
	return nil
}

// Close stops the pipeline, then closes the index and storage
func (a *application) Close() error {
	var errs []error
	if a.pipeline != nil {
		errs = append(errs, a.pipeline.Close())
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i].Close())
	}
	return errors.Join(errs...)
}
