// Package config resolves ingestd settings from defaults, a .env file,
// INGESTD_* environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment variable read by ingestd
const EnvPrefix = "INGESTD"

// Index backends
const (
	BackendSQLite = "sqlite"
	BackendBleve  = "bleve"
	BackendHybrid = "hybrid"
)

// Advanced parser modes
const (
	AdvancedParserAuto = "auto"
	AdvancedParserOff  = "off"
)

// EmbeddingSettings configures the embedder behind the sqlite backend
type EmbeddingSettings struct {
	Provider  string `mapstructure:"provider"` // local or openai
	APIKey    string `mapstructure:"api_key"`
	BaseURL   string `mapstructure:"base_url"`
	Model     string `mapstructure:"model"`
	CacheSize int    `mapstructure:"cache_size"`
}

// Settings application settings
type Settings struct {
	DBPath          string            `mapstructure:"db_path"`
	IndexBackend    string            `mapstructure:"index_backend"`
	BleveDir        string            `mapstructure:"bleve_dir"`
	MaxWorkers      int               `mapstructure:"max_workers"`
	BatchSize       int               `mapstructure:"batch_size"`
	StoreTimeout    time.Duration     `mapstructure:"store_timeout"`
	SkipUnchanged   bool              `mapstructure:"skip_unchanged"`
	AdvancedParser  string            `mapstructure:"advanced_parser"`
	JobRetention    time.Duration     `mapstructure:"job_retention"`
	MaxJobs         int               `mapstructure:"max_jobs"`
	JanitorInterval time.Duration     `mapstructure:"janitor_interval"`
	LogLevel        string            `mapstructure:"log_level"`
	Embedding       EmbeddingSettings `mapstructure:"embedding"`
}

// flagKeys maps setting keys to the CLI flags that override them
var flagKeys = map[string]string{
	"db_path":              "db-path",
	"index_backend":        "index-backend",
	"bleve_dir":            "bleve-dir",
	"max_workers":          "max-workers",
	"batch_size":           "batch-size",
	"store_timeout":        "store-timeout",
	"skip_unchanged":       "skip-unchanged",
	"advanced_parser":      "advanced-parser",
	"job_retention":        "job-retention",
	"max_jobs":             "max-jobs",
	"janitor_interval":     "janitor-interval",
	"log_level":            "log-level",
	"embedding.provider":   "embedding-provider",
	"embedding.api_key":    "embedding-api-key",
	"embedding.base_url":   "embedding-base-url",
	"embedding.model":      "embedding-model",
	"embedding.cache_size": "embedding-cache-size",
}

// RegisterFlags adds the setting override flags to a flag set
func RegisterFlags(flags *pflag.FlagSet) {
	flags.String("db-path", "", "SQLite database path")
	flags.String("index-backend", "", "Chunk index backend: sqlite, bleve or hybrid")
	flags.String("bleve-dir", "", "Directory for bleve indexes")
	flags.IntP("max-workers", "w", 0, "Concurrent store workers")
	flags.Int("batch-size", 0, "Files per ingestion batch")
	flags.Duration("store-timeout", 0, "Timeout for storing one file's chunks")
	flags.Bool("skip-unchanged", false, "Skip files whose content hash is already indexed")
	flags.String("advanced-parser", "", "Advanced parser probe: auto or off")
	flags.Duration("job-retention", 0, "How long finished jobs stay queryable")
	flags.Int("max-jobs", 0, "Maximum number of retained jobs")
	flags.Duration("janitor-interval", 0, "Interval between job evictions")
	flags.StringP("log-level", "l", "", "Log level: debug, info, warn or error")
	flags.String("embedding-provider", "", "Embedding provider: local or openai")
	flags.String("embedding-api-key", "", "Embedding provider API key")
	flags.String("embedding-base-url", "", "Embedding provider base URL")
	flags.String("embedding-model", "", "Embedding model")
	flags.Int("embedding-cache-size", 0, "Embedding cache entries, 0 disables")
}

// LoadSettings loads settings from environment variables and optional .env file
func LoadSettings() (*Settings, error) {
	return LoadSettingsWithFlags(nil)
}

// LoadSettingsWithFlags loads settings with optional CLI flag overrides.
// Priority: CLI flags > environment variables > .env file > defaults.
func LoadSettingsWithFlags(flags *pflag.FlagSet) (*Settings, error) {
	v := viper.New()

	base := defaultBaseDir()
	v.SetDefault("db_path", filepath.Join(base, "ingestd.db"))
	v.SetDefault("index_backend", BackendSQLite)
	v.SetDefault("bleve_dir", filepath.Join(base, "bleve"))
	v.SetDefault("max_workers", 4)
	v.SetDefault("batch_size", 10)
	v.SetDefault("store_timeout", 30*time.Second)
	v.SetDefault("skip_unchanged", false)
	v.SetDefault("advanced_parser", AdvancedParserAuto)
	v.SetDefault("job_retention", time.Hour)
	v.SetDefault("max_jobs", 100)
	v.SetDefault("janitor_interval", 5*time.Minute)
	v.SetDefault("log_level", "info")
	v.SetDefault("embedding.provider", "local")
	v.SetDefault("embedding.api_key", "")
	v.SetDefault("embedding.base_url", "")
	v.SetDefault("embedding.model", "")
	v.SetDefault("embedding.cache_size", 1000)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Nested keys are not seen by AutomaticEnv during Unmarshal
	for key := range flagKeys {
		_ = v.BindEnv(key, EnvPrefix+"_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")))
	}

	if flags != nil {
		for key, name := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				_ = v.BindPFlag(key, f)
			}
		}
	}

	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // Ignore error if .env doesn't exist

	var settings Settings
	if err := v.Unmarshal(&settings); err != nil {
		return nil, err
	}

	settings.DBPath = expandHomeDir(settings.DBPath)
	settings.BleveDir = expandHomeDir(settings.BleveDir)
	settings.IndexBackend = strings.ToLower(strings.TrimSpace(settings.IndexBackend))
	settings.Embedding.Provider = strings.ToLower(strings.TrimSpace(settings.Embedding.Provider))

	if settings.Embedding.APIKey == "" {
		settings.Embedding.APIKey = os.Getenv("OPENAI_API_KEY")
	}

	return &settings, nil
}

// defaultBaseDir returns the directory holding ingestd state
func defaultBaseDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".ingestd"
	}
	return filepath.Join(home, ".ingestd")
}

// expandHomeDir expands ~ to the user's home directory
func expandHomeDir(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
}

// ValidateSettings rejects settings the server cannot run with
func ValidateSettings(s *Settings) error {
	if s.DBPath == "" {
		return errors.New("db-path cannot be empty")
	}

	switch s.IndexBackend {
	case BackendSQLite:
	case BackendBleve, BackendHybrid:
		if s.BleveDir == "" {
			return fmt.Errorf("index-backend '%s' requires bleve-dir", s.IndexBackend)
		}
	default:
		return fmt.Errorf("index-backend must be 'sqlite', 'bleve' or 'hybrid', got: %s", s.IndexBackend)
	}

	if s.MaxWorkers <= 0 {
		return errors.New("max-workers must be positive")
	}
	if s.BatchSize <= 0 {
		return errors.New("batch-size must be positive")
	}
	if s.StoreTimeout <= 0 {
		return errors.New("store-timeout must be positive")
	}

	switch s.AdvancedParser {
	case AdvancedParserAuto, AdvancedParserOff:
	default:
		return fmt.Errorf("advanced-parser must be 'auto' or 'off', got: %s", s.AdvancedParser)
	}

	if s.JobRetention <= 0 {
		return errors.New("job-retention must be positive")
	}
	if s.MaxJobs <= 0 {
		return errors.New("max-jobs must be positive")
	}
	if s.JanitorInterval <= 0 {
		return errors.New("janitor-interval must be positive")
	}

	if _, err := ParseLevel(s.LogLevel); err != nil {
		return err
	}

	switch s.Embedding.Provider {
	case "local":
	case "openai":
		if s.Embedding.APIKey == "" {
			return errors.New("embedding-provider 'openai' requires an API key")
		}
	default:
		return fmt.Errorf("embedding-provider must be 'local' or 'openai', got: %s", s.Embedding.Provider)
	}
	if s.Embedding.CacheSize < 0 {
		return errors.New("embedding-cache-size cannot be negative")
	}

	return nil
}
