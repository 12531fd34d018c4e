package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Common errors
var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrProviderFailed    = errors.New("embedding provider failed")
	ErrUnsupportedModel  = errors.New("unsupported model")
	ErrBatchTooLarge     = errors.New("batch size exceeds limit")
	ErrNoProviderEnabled = errors.New("no embedding provider configured")
)

// Embedder generates embedding vectors for text. EmbedBatch preserves
// input order and returns exactly one vector per text; anything else
// counts as a failed call.
type Embedder interface {
	// EmbedBatch embeds texts in order. len(result) == len(texts) on
	// success.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the vector length this provider produces.
	Dimension() int

	// Provider returns the provider name.
	Provider() string

	// Model returns the model name.
	Model() string

	// Close releases any resources held by the embedder.
	Close() error
}

// Cache is an in-memory LRU of embedding vectors keyed by content hash.
type Cache struct {
	cache *lru.Cache[string, []float32]
}

// NewCache creates an embedding cache with LRU eviction.
func NewCache(maxLen int) *Cache {
	if maxLen <= 0 {
		maxLen = 10000
	}
	cache, err := lru.New[string, []float32](maxLen)
	if err != nil {
		// Unreachable with a positive size.
		cache, _ = lru.New[string, []float32](10000)
	}
	return &Cache{cache: cache}
}

// Get retrieves a copy of a cached vector. Copies keep caller mutations
// out of the cache.
func (c *Cache) Get(hash string) ([]float32, bool) {
	vec, ok := c.cache.Get(hash)
	if !ok {
		return nil, false
	}
	out := make([]float32, len(vec))
	copy(out, vec)
	return out, true
}

// Set stores a vector; LRU eviction applies at capacity.
func (c *Cache) Set(hash string, vec []float32) {
	c.cache.Add(hash, vec)
}

// Size returns the current cache size.
func (c *Cache) Size() int {
	return c.cache.Len()
}

// Clear empties the cache.
func (c *Cache) Clear() {
	c.cache.Purge()
}

// ComputeHash computes the SHA-256 hash of text for cache keys.
func ComputeHash(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}

// validateTexts rejects empty batches and empty members.
func validateTexts(texts []string) error {
	if len(texts) == 0 {
		return fmt.Errorf("%w: no texts provided", ErrInvalidInput)
	}
	for i, text := range texts {
		if text == "" {
			return fmt.Errorf("%w: text at index %d is empty", ErrInvalidInput, i)
		}
	}
	return nil
}
