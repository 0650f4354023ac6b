package config

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// ParseLevel converts a level name to a slog.Level
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level: %s", name)
}

// NewLogger creates a text logger writing to w. Unknown levels fall back to info.
func NewLogger(w io.Writer, level string) *slog.Logger {
	lvl, _ := ParseLevel(level)
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}

// Log logs the resolved settings
func Log(s *Settings) {
	LogWithLogger(s, slog.Default())
}

// LogWithLogger logs the resolved settings using the provided logger
func LogWithLogger(s *Settings, logger *slog.Logger) {
	ctx := context.Background()
	logger.InfoContext(ctx, "Config: db_path", "value", s.DBPath)
	logger.InfoContext(ctx, "Config: index_backend", "value", s.IndexBackend)
	if s.IndexBackend == BackendBleve {
		logger.InfoContext(ctx, "Config: bleve_dir", "value", s.BleveDir)
	}
	logger.InfoContext(ctx, "Config: max_workers", "value", s.MaxWorkers)
	logger.InfoContext(ctx, "Config: batch_size", "value", s.BatchSize)
	logger.InfoContext(ctx, "Config: skip_unchanged", "value", s.SkipUnchanged)
	logger.InfoContext(ctx, "Config: advanced_parser", "value", s.AdvancedParser)

	if s.IndexBackend == BackendSQLite {
		logger.InfoContext(ctx, "Config: embedding", "value", EmbeddingSettingsLogValue(s.Embedding))
	}
}

// EmbeddingSettingsLogValue returns a slog.Value for EmbeddingSettings with the key masked
func EmbeddingSettingsLogValue(s EmbeddingSettings) slog.Value {
	key := ""
	if s.APIKey != "" {
		key = "****"
	}
	return slog.GroupValue(
		slog.String("provider", s.Provider),
		slog.String("api_key", key),
		slog.String("base_url", s.BaseURL),
		slog.String("model", s.Model),
		slog.Int("cache_size", s.CacheSize),
	)
}
