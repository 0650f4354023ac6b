package embedder

import (
	"fmt"
	"strings"
)

// Config holds embedder configuration
type Config struct {
	Provider  string // local (default) or openai
	APIKey    string
	BaseURL   string
	Model     string
	Dimension int // local provider only
	CacheSize int // 0 disables the cache
}

// New creates an embedder from explicit configuration
func New(cfg Config) (Embedder, error) {
	var (
		e   Embedder
		err error
	)

	switch strings.ToLower(cfg.Provider) {
	case "", ProviderLocal:
		e = NewLocalProvider(cfg.Dimension)
	case ProviderOpenAI:
		e, err = NewOpenAIProvider(cfg.APIKey, WithBaseURL(cfg.BaseURL), WithModel(cfg.Model))
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedModel, cfg.Provider)
	}

	if cfg.CacheSize > 0 {
		return WithCache(e, NewCache(cfg.CacheSize)), nil
	}
	return e, nil
}
