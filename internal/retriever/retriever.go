package retriever

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/mforrest/repoctx/internal/embedder"
	"github.com/mforrest/repoctx/internal/vectorstore"
	"github.com/mforrest/repoctx/pkg/types"
)

const (
	// DefaultTopN is used when the caller passes a non-positive limit.
	DefaultTopN = 10

	// MaxTopN caps the number of results a single query can request.
	MaxTopN = 100

	// DefaultCacheSize bounds the query cache entry count.
	DefaultCacheSize = 1000

	// DefaultCacheTTL is how long a cached response stays valid.
	DefaultCacheTTL = 1 * time.Hour
)

// cacheEntry is a cached response with its expiration time.
type cacheEntry struct {
	results   []types.SearchResult
	expiresAt time.Time
}

// Retriever embeds a natural-language query with the same embedder used
// at index time and ranks stored chunks by cosine similarity, filtered
// by repo, branch, directory, and language.
type Retriever struct {
	embedder embedder.Embedder
	store    vectorstore.Store
	logger   *zap.Logger

	cacheMu  sync.RWMutex
	cache    *lru.Cache[[32]byte, *cacheEntry]
	cacheTTL time.Duration
}

// New creates a Retriever over the given embedder and store.
func New(emb embedder.Embedder, store vectorstore.Store, logger *zap.Logger) *Retriever {
	cache, err := lru.New[[32]byte, *cacheEntry](DefaultCacheSize)
	if err != nil {
		// Only reachable with a non-positive size constant.
		panic(fmt.Sprintf("failed to create query cache: %v", err))
	}

	return &Retriever{
		embedder: emb,
		store:    store,
		logger:   logger,
		cache:    cache,
		cacheTTL: DefaultCacheTTL,
	}
}

// Retrieve returns up to topN chunks most similar to query, best first.
// Tags scope the search: repo and branch come from the first tag, and
// the directory predicate is directoryOverride when given, otherwise
// the union of non-empty tag directories. Root and empty directories
// mean no directory constraint. An empty result is valid.
func (r *Retriever) Retrieve(ctx context.Context, query string, topN int, tags []types.Tag, directoryOverride, language string) ([]types.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("query cannot be empty")
	}
	if topN <= 0 {
		topN = DefaultTopN
	}
	if topN > MaxTopN {
		topN = MaxTopN
	}

	filters := buildFilters(tags, directoryOverride, language)

	key := queryKey(query, topN, filters)
	if cached := r.fromCache(key); cached != nil {
		return cached, nil
	}

	vectors, err := r.embedder.EmbedBatch(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("%w: expected 1 query vector, got %d",
			types.ErrBatchMisaligned, len(vectors))
	}
	vector := vectors[0]
	if len(vector) != r.store.Dimension() {
		return nil, fmt.Errorf("%w: query vector has %d dimensions, store expects %d",
			types.ErrDimensionMismatch, len(vector), r.store.Dimension())
	}

	hits, err := r.store.Search(ctx, vector, topN, filters)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	results := make([]types.SearchResult, len(hits))
	for i, hit := range hits {
		results[i] = types.SearchResult{
			Chunk: rowToChunk(hit.Row),
			Score: hit.Score,
			Rank:  i + 1,
		}
	}

	r.logger.Debug("retrieve complete",
		zap.Int("requested", topN),
		zap.Int("returned", len(results)),
		zap.String("repo", filters.Repo),
		zap.String("branch", filters.Branch))

	r.toCache(key, results)
	return results, nil
}

// InvalidateCache drops every cached response. Called after the index
// changes so stale hits cannot be served.
func (r *Retriever) InvalidateCache() {
	r.cacheMu.Lock()
	r.cache.Purge()
	r.cacheMu.Unlock()
}

// buildFilters translates tags and overrides into store filters. The
// first tag fixes repo and branch; later tags only contribute
// directories.
func buildFilters(tags []types.Tag, directoryOverride, language string) vectorstore.Filters {
	f := vectorstore.Filters{Language: language}

	if len(tags) > 0 {
		f.Repo = tags[0].Repo
		f.Branch = tags[0].Branch
	}

	if dir := normalizeDirectory(directoryOverride); dir != "" {
		f.Directories = []string{dir}
		return f
	}

	for _, tag := range tags {
		if dir := normalizeDirectory(tag.Directory); dir != "" {
			f.Directories = append(f.Directories, dir)
		}
	}
	return f
}

// normalizeDirectory strips slashes and collapses the repo root to the
// empty string, which means no constraint.
func normalizeDirectory(dir string) string {
	dir = strings.Trim(dir, "/")
	return dir
}

// rowToChunk reconstitutes a stored row into a chunk. The range is
// rebuilt from the stored line numbers; column information is not
// persisted, so characters are fixed at zero.
func rowToChunk(row vectorstore.Row) types.Chunk {
	return types.Chunk{
		Filepath: row.Filepath,
		Content:  row.Content,
		Range: &types.Range{
			Start: types.Position{Line: int(row.StartLine)},
			End:   types.Position{Line: int(row.EndLine)},
		},
		Repo:   row.Repo,
		Branch: row.Branch,
	}
}

// fromCache returns a copied response if a fresh entry exists.
func (r *Retriever) fromCache(key [32]byte) []types.SearchResult {
	r.cacheMu.RLock()
	entry, ok := r.cache.Get(key)
	if !ok {
		r.cacheMu.RUnlock()
		return nil
	}
	if time.Now().After(entry.expiresAt) {
		r.cacheMu.RUnlock()
		r.cacheMu.Lock()
		r.cache.Remove(key)
		r.cacheMu.Unlock()
		return nil
	}
	out := make([]types.SearchResult, len(entry.results))
	copy(out, entry.results)
	r.cacheMu.RUnlock()
	return out
}

// toCache stores a copy of the response under key.
func (r *Retriever) toCache(key [32]byte, results []types.SearchResult) {
	if len(results) == 0 {
		return
	}
	stored := make([]types.SearchResult, len(results))
	copy(stored, results)

	r.cacheMu.Lock()
	r.cache.Add(key, &cacheEntry{
		results:   stored,
		expiresAt: time.Now().Add(r.cacheTTL),
	})
	r.cacheMu.Unlock()
}

// queryKey builds a deterministic hash over the query and its filters.
func queryKey(query string, topN int, f vectorstore.Filters) [32]byte {
	var b strings.Builder
	b.WriteString(query)
	b.WriteString("|")
	fmt.Fprintf(&b, "%d", topN)
	b.WriteString("|")
	b.WriteString(f.Repo)
	b.WriteString("|")
	b.WriteString(f.Branch)
	b.WriteString("|")
	b.WriteString(strings.Join(f.Directories, ","))
	b.WriteString("|")
	b.WriteString(f.Language)
	return sha256.Sum256([]byte(b.String()))
}
