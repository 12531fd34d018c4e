package embedder

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Provider configuration
const (
	ProviderJina   = "jina"
	ProviderOpenAI = "openai"
	ProviderLocal  = "local"

	// Default models
	DefaultJinaModel   = "jina-embeddings-v3"
	DefaultOpenAIModel = "text-embedding-3-small"

	// Dimensions
	JinaDimension   = 1024
	OpenAIDimension = 1536
	LocalDimension  = 384

	// Largest batch a provider accepts in one call
	MaxBatchSize = 100

	// Retry configuration
	MaxRetries        = 3
	InitialBackoffMs  = 100
	MaxBackoffMs      = 5000
	BackoffMultiplier = 2.0
)

// httpProvider is the shared implementation behind the Jina and OpenAI
// providers; both speak the same embeddings request/response shape.
type httpProvider struct {
	name       string
	endpoint   string
	apiKey     string
	model      string
	dimension  int
	httpClient *http.Client
	cache      *Cache
}

// NewJinaProvider creates an embedder backed by the Jina AI API.
func NewJinaProvider(apiKey string, cache *Cache) (Embedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: %s not set", ErrNoProviderEnabled, EnvJinaAPIKey)
	}
	return &httpProvider{
		name:      ProviderJina,
		endpoint:  "https://api.jina.ai/v1/embeddings",
		apiKey:    apiKey,
		model:     DefaultJinaModel,
		dimension: JinaDimension,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		cache: cache,
	}, nil
}

// NewOpenAIProvider creates an embedder backed by the OpenAI API.
func NewOpenAIProvider(apiKey string, cache *Cache) (Embedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: %s not set", ErrNoProviderEnabled, EnvOpenAIAPIKey)
	}
	return &httpProvider{
		name:      ProviderOpenAI,
		endpoint:  "https://api.openai.com/v1/embeddings",
		apiKey:    apiKey,
		model:     DefaultOpenAIModel,
		dimension: OpenAIDimension,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		cache: cache,
	}, nil
}

func (p *httpProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := validateTexts(texts); err != nil {
		return nil, err
	}
	if len(texts) > MaxBatchSize {
		return nil, fmt.Errorf("%w: max %d texts allowed", ErrBatchTooLarge, MaxBatchSize)
	}

	// Serve cache hits and collect the misses for one API call.
	vectors := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string
	if p.cache != nil {
		for i, text := range texts {
			if vec, ok := p.cache.Get(ComputeHash(text)); ok {
				vectors[i] = vec
				continue
			}
			missIdx = append(missIdx, i)
			missTexts = append(missTexts, text)
		}
	} else {
		missTexts = texts
		missIdx = make([]int, len(texts))
		for i := range texts {
			missIdx[i] = i
		}
	}

	if len(missTexts) > 0 {
		config := DefaultRetryConfig()
		fetched, err := retryWithBackoff(ctx, config, func() ([][]float32, error) {
			return p.callAPI(ctx, missTexts)
		})
		if err != nil {
			return nil, fmt.Errorf("%w after %d retries: %v", ErrProviderFailed, MaxRetries, err)
		}
		if len(fetched) != len(missTexts) {
			return nil, fmt.Errorf("%w: requested %d vectors, got %d",
				ErrProviderFailed, len(missTexts), len(fetched))
		}
		for j, vec := range fetched {
			vectors[missIdx[j]] = vec
			if p.cache != nil {
				p.cache.Set(ComputeHash(missTexts[j]), vec)
			}
		}
	}

	return vectors, nil
}

func (p *httpProvider) callAPI(ctx context.Context, texts []string) ([][]float32, error) {
	reqBody := map[string]interface{}{
		"input": texts,
		"model": p.model,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", p.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api call: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("api error %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var apiResp struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		} `json:"data"`
		Model string `json:"model"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	// Responses carry an index per embedding; place vectors by it
	// rather than trusting array order.
	vectors := make([][]float32, len(apiResp.Data))
	for i, data := range apiResp.Data {
		idx := data.Index
		if idx < 0 || idx >= len(vectors) {
			idx = i
		}
		vectors[idx] = data.Embedding
	}

	return vectors, nil
}

func (p *httpProvider) Dimension() int {
	return p.dimension
}

func (p *httpProvider) Provider() string {
	return p.name
}

func (p *httpProvider) Model() string {
	return p.model
}

func (p *httpProvider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}

// LocalProvider produces deterministic hash-derived vectors. It exists
// for offline runs and tests; similarity scores from it carry no
// semantic meaning.
type LocalProvider struct {
	model string
	cache *Cache
}

// NewLocalProvider creates a local embedder.
func NewLocalProvider(cache *Cache) (*LocalProvider, error) {
	return &LocalProvider{
		model: "local-embeddings",
		cache: cache,
	}, nil
}

func (l *LocalProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := validateTexts(texts); err != nil {
		return nil, err
	}

	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		hash := ComputeHash(text)
		if l.cache != nil {
			if vec, ok := l.cache.Get(hash); ok {
				vectors[i] = vec
				continue
			}
		}

		vec := make([]float32, LocalDimension)
		sum := sha256.Sum256([]byte(text))
		for j := 0; j < LocalDimension && j < len(sum); j++ {
			vec[j] = float32(sum[j]) / 255.0
		}
		vectors[i] = vec

		if l.cache != nil {
			l.cache.Set(hash, vec)
		}
	}

	return vectors, nil
}

func (l *LocalProvider) Dimension() int {
	return LocalDimension
}

func (l *LocalProvider) Provider() string {
	return ProviderLocal
}

func (l *LocalProvider) Model() string {
	return l.model
}

func (l *LocalProvider) Close() error {
	return nil
}
