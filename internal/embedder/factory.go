package embedder

import (
	"fmt"
	"os"
	"strings"
)

// Environment variables consulted by NewFromEnv.
const (
	EnvProvider     = "REPOCTX_EMBEDDING_PROVIDER"
	EnvJinaAPIKey   = "JINA_API_KEY"
	EnvOpenAIAPIKey = "OPENAI_API_KEY"
)

// Config holds embedder configuration.
type Config struct {
	Provider  string
	APIKey    string
	CacheSize int
}

// NewFromEnv creates an embedder based on environment variables.
// Priority:
// 1. REPOCTX_EMBEDDING_PROVIDER (jina, openai, local)
// 2. Available API keys: JINA_API_KEY, then OPENAI_API_KEY
// 3. Local provider if no API keys are set
func NewFromEnv() (Embedder, error) {
	provider := os.Getenv(EnvProvider)
	jinaKey := os.Getenv(EnvJinaAPIKey)
	openaiKey := os.Getenv(EnvOpenAIAPIKey)

	cache := NewCache(10000)

	if provider != "" {
		switch strings.ToLower(provider) {
		case ProviderJina:
			return NewJinaProvider(jinaKey, cache)
		case ProviderOpenAI:
			return NewOpenAIProvider(openaiKey, cache)
		case ProviderLocal:
			return NewLocalProvider(cache)
		default:
			return nil, fmt.Errorf("%w: unknown provider %s", ErrUnsupportedModel, provider)
		}
	}

	if jinaKey != "" {
		return NewJinaProvider(jinaKey, cache)
	}
	if openaiKey != "" {
		return NewOpenAIProvider(openaiKey, cache)
	}

	return NewLocalProvider(cache)
}

// New creates an embedder with explicit configuration.
func New(cfg Config) (Embedder, error) {
	var cache *Cache
	if cfg.CacheSize > 0 {
		cache = NewCache(cfg.CacheSize)
	}

	switch strings.ToLower(cfg.Provider) {
	case ProviderJina:
		return NewJinaProvider(cfg.APIKey, cache)
	case ProviderOpenAI:
		return NewOpenAIProvider(cfg.APIKey, cache)
	case ProviderLocal:
		return NewLocalProvider(cache)
	default:
		return nil, fmt.Errorf("%w: unknown provider %s", ErrUnsupportedModel, cfg.Provider)
	}
}

// DetectProvider returns the provider NewFromEnv would choose with the
// current environment.
func DetectProvider() string {
	if provider := os.Getenv(EnvProvider); provider != "" {
		return strings.ToLower(provider)
	}
	if os.Getenv(EnvJinaAPIKey) != "" {
		return ProviderJina
	}
	if os.Getenv(EnvOpenAIAPIKey) != "" {
		return ProviderOpenAI
	}
	return ProviderLocal
}
