package retriever

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mforrest/repoctx/internal/vectorstore"
	"github.com/mforrest/repoctx/pkg/types"
)

type fakeEmbedder struct {
	vector []float32
	err    error
	calls  int
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vector
	}
	return out, nil
}

func (f *fakeEmbedder) Dimension() int   { return len(f.vector) }
func (f *fakeEmbedder) Provider() string { return "fake" }
func (f *fakeEmbedder) Model() string    { return "fake-model" }
func (f *fakeEmbedder) Close() error     { return nil }

type fakeStore struct {
	dimension   int
	results     []vectorstore.Result
	lastFilters vectorstore.Filters
	lastLimit   int
	searchErr   error
}

func (f *fakeStore) Add(context.Context, []vectorstore.Row) error { return nil }

func (f *fakeStore) Search(_ context.Context, _ []float32, limit int, filters vectorstore.Filters) ([]vectorstore.Result, error) {
	f.lastLimit = limit
	f.lastFilters = filters
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	if limit < len(f.results) {
		return f.results[:limit], nil
	}
	return f.results, nil
}

func (f *fakeStore) Clear(context.Context) error { return nil }

func (f *fakeStore) Count(context.Context) (int, error) { return len(f.results), nil }

func (f *fakeStore) Stats(context.Context) (*vectorstore.Stats, error) {
	return &vectorstore.Stats{Rows: len(f.results)}, nil
}

func (f *fakeStore) Dimension() int { return f.dimension }

func (f *fakeStore) Close() error { return nil }

func storedResult(id, path string, start, end int32, score float64) vectorstore.Result {
	return vectorstore.Result{
		Row: vectorstore.Row{
			ID:        id,
			Content:   "content of " + id,
			Filepath:  path,
			StartLine: start,
			EndLine:   end,
			Language:  "go",
			Repo:      "acme/widgets",
			Branch:    "main",
		},
		Score: score,
	}
}

func newTestRetriever(emb *fakeEmbedder, store *fakeStore) *Retriever {
	return New(emb, store, zap.NewNop())
}

func TestRetrieveRanksAndReconstitutesChunks(t *testing.T) {
	emb := &fakeEmbedder{vector: []float32{1, 0, 0}}
	store := &fakeStore{
		dimension: 3,
		results: []vectorstore.Result{
			storedResult("a.go:0", "a.go", 0, 39, 0.95),
			storedResult("b.go:25", "b.go", 25, 64, 0.80),
		},
	}
	r := newTestRetriever(emb, store)

	results, err := r.Retrieve(context.Background(), "how does auth work", 5, nil, "", "")
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, 1, results[0].Rank)
	assert.Equal(t, 2, results[1].Rank)
	assert.Equal(t, 0.95, results[0].Score)

	chunk := results[1].Chunk
	assert.Equal(t, "b.go", chunk.Filepath)
	require.NotNil(t, chunk.Range)
	assert.Equal(t, 25, chunk.Range.Start.Line)
	assert.Equal(t, 64, chunk.Range.End.Line)
	assert.Zero(t, chunk.Range.Start.Character)
	assert.Equal(t, "b.go:25", chunk.ID())
}

func TestRetrieveBuildsFiltersFromTags(t *testing.T) {
	emb := &fakeEmbedder{vector: []float32{1, 0, 0}}
	store := &fakeStore{dimension: 3}
	r := newTestRetriever(emb, store)

	tags := []types.Tag{
		{Repo: "acme/widgets", Branch: "main", Directory: "src/"},
		{Repo: "acme/widgets", Branch: "main", Directory: "lib"},
		{Repo: "acme/widgets", Branch: "main", Directory: "/"},
	}
	_, err := r.Retrieve(context.Background(), "query", 5, tags, "", "go")
	require.NoError(t, err)

	assert.Equal(t, "acme/widgets", store.lastFilters.Repo)
	assert.Equal(t, "main", store.lastFilters.Branch)
	assert.Equal(t, []string{"src", "lib"}, store.lastFilters.Directories)
	assert.Equal(t, "go", store.lastFilters.Language)
}

func TestRetrieveDirectoryOverrideWins(t *testing.T) {
	emb := &fakeEmbedder{vector: []float32{1, 0, 0}}
	store := &fakeStore{dimension: 3}
	r := newTestRetriever(emb, store)

	tags := []types.Tag{
		{Repo: "acme/widgets", Branch: "main", Directory: "src"},
	}
	_, err := r.Retrieve(context.Background(), "query", 5, tags, "internal/auth", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"internal/auth"}, store.lastFilters.Directories)

	_, err = r.Retrieve(context.Background(), "query two", 5, tags, "/", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"src"}, store.lastFilters.Directories)
}

func TestRetrieveDimensionMismatchIsStructural(t *testing.T) {
	emb := &fakeEmbedder{vector: []float32{1, 0}}
	store := &fakeStore{dimension: 3}
	r := newTestRetriever(emb, store)

	_, err := r.Retrieve(context.Background(), "query", 5, nil, "", "")
	assert.ErrorIs(t, err, types.ErrDimensionMismatch)
}

func TestRetrieveEmptyResultIsValid(t *testing.T) {
	emb := &fakeEmbedder{vector: []float32{1, 0, 0}}
	store := &fakeStore{dimension: 3}
	r := newTestRetriever(emb, store)

	results, err := r.Retrieve(context.Background(), "nothing matches", 5, nil, "", "")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRetrieveRejectsEmptyQuery(t *testing.T) {
	emb := &fakeEmbedder{vector: []float32{1, 0, 0}}
	store := &fakeStore{dimension: 3}
	r := newTestRetriever(emb, store)

	_, err := r.Retrieve(context.Background(), "   ", 5, nil, "", "")
	assert.Error(t, err)
	assert.Zero(t, emb.calls)
}

func TestRetrieveClampsTopN(t *testing.T) {
	emb := &fakeEmbedder{vector: []float32{1, 0, 0}}
	store := &fakeStore{dimension: 3}
	r := newTestRetriever(emb, store)

	_, err := r.Retrieve(context.Background(), "query", 0, nil, "", "")
	require.NoError(t, err)
	assert.Equal(t, DefaultTopN, store.lastLimit)

	_, err = r.Retrieve(context.Background(), "another query", 5000, nil, "", "")
	require.NoError(t, err)
	assert.Equal(t, MaxTopN, store.lastLimit)
}

func TestRetrieveCachesRepeatedQueries(t *testing.T) {
	emb := &fakeEmbedder{vector: []float32{1, 0, 0}}
	store := &fakeStore{
		dimension: 3,
		results:   []vectorstore.Result{storedResult("a.go:0", "a.go", 0, 10, 0.9)},
	}
	r := newTestRetriever(emb, store)

	first, err := r.Retrieve(context.Background(), "cached query", 5, nil, "", "")
	require.NoError(t, err)
	second, err := r.Retrieve(context.Background(), "cached query", 5, nil, "", "")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, emb.calls)

	r.InvalidateCache()
	_, err = r.Retrieve(context.Background(), "cached query", 5, nil, "", "")
	require.NoError(t, err)
	assert.Equal(t, 2, emb.calls)
}

func TestRetrievePropagatesStoreError(t *testing.T) {
	wantErr := errors.New("store offline")
	emb := &fakeEmbedder{vector: []float32{1, 0, 0}}
	store := &fakeStore{dimension: 3, searchErr: wantErr}
	r := newTestRetriever(emb, store)

	_, err := r.Retrieve(context.Background(), "query", 5, nil, "", "")
	assert.ErrorIs(t, err, wantErr)
}
