package vectorstore

import (
	"context"
	"fmt"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mforrest/repoctx/pkg/types"
)

const testDim = 8

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"), testDim, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func unitVector(hot int) []float32 {
	v := make([]float32, testDim)
	v[hot%testDim] = 1
	return v
}

func testRow(id string, hot int, repo, branch string) Row {
	return Row{
		ID:        id,
		Content:   "content of " + id,
		Vector:    unitVector(hot),
		Filepath:  id[:len(id)-2],
		StartLine: 0,
		EndLine:   10,
		Language:  "go",
		Repo:      repo,
		Branch:    branch,
	}
}

func randomRows(n int, repo, branch string, seed int64) []Row {
	rng := rand.New(rand.NewSource(seed))
	rows := make([]Row, n)
	for i := range rows {
		vec := make([]float32, testDim)
		for j := range vec {
			vec[j] = rng.Float32()*2 - 1
		}
		rows[i] = Row{
			ID:        fmt.Sprintf("src/f%d.go:0", i),
			Content:   fmt.Sprintf("content %d", i),
			Vector:    vec,
			Filepath:  fmt.Sprintf("src/f%d.go", i),
			EndLine:   10,
			Language:  "go",
			Repo:      repo,
			Branch:    branch,
		}
	}
	return rows
}

func TestStoreAddAndSearchRoundtrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rows := []Row{
		testRow("a.go:0", 0, "acme/widgets", "main"),
		testRow("b.go:0", 1, "acme/widgets", "main"),
		testRow("c.go:0", 2, "acme/widgets", "main"),
	}
	require.NoError(t, s.Add(ctx, rows))

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	results, err := s.Search(ctx, unitVector(1), 10, Filters{})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "b.go:0", results[0].Row.ID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
}

func TestStoreClearWipesEverything(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, randomRows(20, "acme/widgets", "main", 1)))
	require.NoError(t, s.Clear(ctx))

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	results, err := s.Search(ctx, unitVector(0), 5, Filters{})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestStoreIdempotentReindex(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	rows := randomRows(10, "acme/widgets", "main", 2)

	require.NoError(t, s.Add(ctx, rows))
	require.NoError(t, s.Clear(ctx))
	require.NoError(t, s.Add(ctx, rows))

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, count)
}

func TestStoreSearchHonorsLimitAndOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Add(ctx, randomRows(50, "acme/widgets", "main", 3)))

	results, err := s.Search(ctx, unitVector(0), 5, Filters{})
	require.NoError(t, err)
	assert.Len(t, results, 5)
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}
}

func TestStoreRepoIsolation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, []Row{
		testRow("a.go:0", 0, "acme/widgets", "main"),
		testRow("b.go:0", 0, "acme/gadgets", "main"),
	}))

	results, err := s.Search(ctx, unitVector(0), 10, Filters{Repo: "acme/widgets"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "acme/widgets", results[0].Row.Repo)
}

func TestStoreBranchAndLanguageFilters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	main := testRow("a.go:0", 0, "acme/widgets", "main")
	dev := testRow("a.go:0", 0, "acme/widgets", "dev")
	py := testRow("b.py:0", 0, "acme/widgets", "main")
	py.Language = "python"
	require.NoError(t, s.Add(ctx, []Row{main, dev, py}))

	results, err := s.Search(ctx, unitVector(0), 10,
		Filters{Repo: "acme/widgets", Branch: "main"})
	require.NoError(t, err)
	assert.Len(t, results, 2)

	results, err = s.Search(ctx, unitVector(0), 10,
		Filters{Repo: "acme/widgets", Branch: "main", Language: "python"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "python", results[0].Row.Language)
}

func TestStoreDirectoryFilterUnion(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rows := []Row{
		testRow("src/a.go:0", 0, "acme/widgets", "main"),
		testRow("lib/b.go:0", 0, "acme/widgets", "main"),
		testRow("docs/c.go:0", 0, "acme/widgets", "main"),
	}
	rows[0].Filepath = "src/a.go"
	rows[1].Filepath = "lib/b.go"
	rows[2].Filepath = "docs/c.go"
	require.NoError(t, s.Add(ctx, rows))

	results, err := s.Search(ctx, unitVector(0), 10,
		Filters{Directories: []string{"src", "lib"}})
	require.NoError(t, err)
	assert.Len(t, results, 2)
	for _, r := range results {
		assert.NotEqual(t, "docs/c.go", r.Row.Filepath)
	}
}

func TestStoreRejectsWrongDimension(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	bad := testRow("a.go:0", 0, "acme/widgets", "main")
	bad.Vector = []float32{1, 2}
	err := s.Add(ctx, []Row{bad})
	assert.ErrorIs(t, err, types.ErrDimensionMismatch)

	_, err = s.Search(ctx, []float32{1, 2}, 5, Filters{})
	assert.ErrorIs(t, err, types.ErrDimensionMismatch)
}

func TestStoreIndexStrategyFollowsRowCount(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, randomRows(20, "acme/widgets", "main", 4)))
	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, "graph", stats.IndexStrategy)

	require.NoError(t, s.Add(ctx, randomRows(300, "acme/gadgets", "main", 5)))
	stats, err = s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, "partitioned", stats.IndexStrategy)
	assert.Equal(t, 320, stats.Rows)
	assert.Equal(t, 2, stats.Repos)
}

func TestStoreSearchSurvivesConcurrentClear(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Add(ctx, randomRows(50, "acme/widgets", "main", 6)))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 10; i++ {
			_, err := s.Search(ctx, unitVector(i), 5, Filters{})
			assert.NoError(t, err)
		}
	}()

	require.NoError(t, s.Clear(ctx))
	require.NoError(t, s.Add(ctx, randomRows(30, "acme/widgets", "main", 7)))
	<-done
}

func TestStorePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "persist.db")
	ctx := context.Background()

	s, err := Open(path, testDim, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, s.Add(ctx, randomRows(10, "acme/widgets", "main", 8)))
	require.NoError(t, s.Close())

	s2, err := Open(path, testDim, zap.NewNop())
	require.NoError(t, err)
	defer func() { _ = s2.Close() }()

	count, err := s2.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, count)

	results, err := s2.Search(ctx, unitVector(0), 3, Filters{})
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestVectorSerializationRoundtrip(t *testing.T) {
	vec := []float32{0.5, -1.25, 3.75, 0}
	blob := SerializeVector(vec)
	assert.Len(t, blob, 16)
	assert.Equal(t, vec, DeserializeVector(blob))
}

func TestCosineSimilarityBasics(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float32{1, 0}, []float32{2, 0}), 1e-9)
	assert.InDelta(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.Zero(t, CosineSimilarity([]float32{1}, []float32{1, 2}))
	assert.Zero(t, CosineSimilarity([]float32{0, 0}, []float32{1, 1}))
}
