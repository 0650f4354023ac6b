package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
	"unicode"
)

const (
	ProviderOpenAI = "openai"
	ProviderLocal  = "local"

	DefaultOpenAIModel   = "text-embedding-3-small"
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	EnvOpenAIAPIKey      = "OPENAI_API_KEY"

	OpenAIDimension = 1536
	LocalDimension  = 384

	LocalModel   = "hashed-bow-v1"
	MaxBatchSize = 100

	MaxRetries        = 3
	InitialBackoffMs  = 100
	MaxBackoffMs      = 5000
	BackoffMultiplier = 2.0
)

var openAIDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// LocalProvider computes hashed bag-of-words vectors. Each token is hashed
// into one of dim buckets with a hash-derived sign, then the vector is
// normalised. Identical text always yields the identical vector.
type LocalProvider struct {
	dim int
}

// NewLocalProvider creates a local embedder with the given dimension.
// A non-positive dim selects LocalDimension.
func NewLocalProvider(dim int) *LocalProvider {
	if dim <= 0 {
		dim = LocalDimension
	}
	return &LocalProvider{dim: dim}
}

func (l *LocalProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vector := make([]float32, l.dim)
	for _, token := range tokenize(text) {
		h := fnv.New64a()
		_, _ = h.Write([]byte(token))
		sum := h.Sum64()

		bucket := int(sum % uint64(l.dim))
		if sum&(1<<63) != 0 {
			vector[bucket]--
		} else {
			vector[bucket]++
		}
	}
	return NormalizeVector(vector), nil
}

func (l *LocalProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := validateBatch(texts); err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := l.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embedding text %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

func (l *LocalProvider) Dimension() int   { return l.dim }
func (l *LocalProvider) Provider() string { return ProviderLocal }
func (l *LocalProvider) Model() string    { return LocalModel }
func (l *LocalProvider) Close() error     { return nil }

// tokenize lowercases text and splits it into identifier-like tokens.
// snake_case identifiers also contribute their parts.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})

	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		tokens = append(tokens, f)
		if strings.Contains(f, "_") {
			for _, part := range strings.Split(f, "_") {
				if part != "" {
					tokens = append(tokens, part)
				}
			}
		}
	}
	return tokens
}

// OpenAIProvider calls an OpenAI-compatible embeddings endpoint
type OpenAIProvider struct {
	apiKey     string
	baseURL    string
	model      string
	dim        int
	retry      RetryConfig
	httpClient *http.Client
}

// OpenAIOption configures an OpenAIProvider
type OpenAIOption func(*OpenAIProvider)

// WithBaseURL points the provider at a compatible server
func WithBaseURL(url string) OpenAIOption {
	return func(o *OpenAIProvider) {
		if url != "" {
			o.baseURL = strings.TrimRight(url, "/")
		}
	}
}

// WithModel selects the embedding model
func WithModel(model string) OpenAIOption {
	return func(o *OpenAIProvider) {
		if model != "" {
			o.model = model
		}
	}
}

// WithRetry overrides the retry policy
func WithRetry(cfg RetryConfig) OpenAIOption {
	return func(o *OpenAIProvider) {
		o.retry = cfg
	}
}

// NewOpenAIProvider creates an OpenAI embedder. An empty apiKey falls back
// to OPENAI_API_KEY.
func NewOpenAIProvider(apiKey string, opts ...OpenAIOption) (*OpenAIProvider, error) {
	if apiKey == "" {
		apiKey = os.Getenv(EnvOpenAIAPIKey)
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w: %s not set", ErrNoProviderEnabled, EnvOpenAIAPIKey)
	}

	o := &OpenAIProvider{
		apiKey:  apiKey,
		baseURL: DefaultOpenAIBaseURL,
		model:   DefaultOpenAIModel,
		retry:   DefaultRetryConfig(),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(o)
	}

	o.dim = OpenAIDimension
	if d, ok := openAIDimensions[o.model]; ok {
		o.dim = d
	}
	return o, nil
}

func (o *OpenAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}
	vectors, err := o.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (o *OpenAIProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := validateBatch(texts); err != nil {
		return nil, err
	}
	if len(texts) > MaxBatchSize {
		return nil, fmt.Errorf("%w: max %d texts allowed", ErrBatchTooLarge, MaxBatchSize)
	}

	vectors, err := retryWithBackoff(ctx, o.retry, func() ([][]float32, error) {
		return o.callAPI(ctx, texts)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderFailed, err)
	}
	return vectors, nil
}

func (o *OpenAIProvider) callAPI(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(map[string]interface{}{
		"input": texts,
		"model": o.model,
	})
	if err != nil {
		return nil, permanent(fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api call: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		apiErr := fmt.Errorf("api error %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, permanent(apiErr)
		}
		return nil, apiErr
	}

	var apiResp struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(apiResp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(apiResp.Data))
	}

	vectors := make([][]float32, len(texts))
	for _, d := range apiResp.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, permanent(fmt.Errorf("embedding index %d out of range", d.Index))
		}
		vectors[d.Index] = NormalizeVector(d.Embedding)
	}
	return vectors, nil
}

func (o *OpenAIProvider) Dimension() int   { return o.dim }
func (o *OpenAIProvider) Provider() string { return ProviderOpenAI }
func (o *OpenAIProvider) Model() string    { return o.model }

func (o *OpenAIProvider) Close() error {
	o.httpClient.CloseIdleConnections()
	return nil
}
