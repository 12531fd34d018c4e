package ann

import (
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChooseStrategySmallCorpus(t *testing.T) {
	p := ChooseStrategy(10)
	assert.Equal(t, StrategyGraph, p.Strategy)
	assert.Zero(t, p.Partitions)
}

func TestChooseStrategyThreshold(t *testing.T) {
	assert.Equal(t, StrategyGraph, ChooseStrategy(255).Strategy)
	assert.Equal(t, StrategyPartitioned, ChooseStrategy(256).Strategy)
}

func TestChooseStrategyPartitionCount(t *testing.T) {
	p := ChooseStrategy(500)
	assert.Equal(t, StrategyPartitioned, p.Strategy)
	assert.Equal(t, 25, p.Partitions)
	assert.Equal(t, DefaultSubVectors, p.SubVectors)
	assert.Equal(t, DefaultBits, p.Bits)
}

func TestChooseStrategyPartitionCap(t *testing.T) {
	p := ChooseStrategy(100000)
	assert.Equal(t, MaxPartitions, p.Partitions)
}

func TestBuildRejectsEmpty(t *testing.T) {
	_, err := Build(Params{Strategy: StrategyGraph}, nil)
	assert.ErrorIs(t, err, ErrNoEntries)
}

func randomEntries(n, dim int, seed int64) []Entry {
	rng := rand.New(rand.NewSource(seed))
	entries := make([]Entry, n)
	for i := range entries {
		vec := make([]float32, dim)
		for j := range vec {
			vec[j] = rng.Float32()*2 - 1
		}
		entries[i] = Entry{ID: fmt.Sprintf("f.go:%d", i), Vector: vec}
	}
	return entries
}

// bruteForceNearest finds exact cosine-distance neighbors for
// comparison.
func bruteForceNearest(entries []Entry, query []float32, k int) []string {
	type scored struct {
		id string
		d  float64
	}
	all := make([]scored, len(entries))
	for i, e := range entries {
		all[i] = scored{id: e.ID, d: cosineDistance(query, e.Vector)}
	}
	for i := 0; i < k; i++ {
		min := i
		for j := i + 1; j < len(all); j++ {
			if all[j].d < all[min].d {
				min = j
			}
		}
		all[i], all[min] = all[min], all[i]
	}
	ids := make([]string, k)
	for i := 0; i < k; i++ {
		ids[i] = all[i].id
	}
	return ids
}

func TestGraphIndexExactNeighbors(t *testing.T) {
	entries := randomEntries(100, 16, 1)
	idx, err := Build(ChooseStrategy(len(entries)), entries)
	require.NoError(t, err)
	assert.Equal(t, StrategyGraph, idx.Strategy())
	assert.Equal(t, 100, idx.Len())

	query := entries[37].Vector
	matches := idx.Query(query, 5)
	require.Len(t, matches, 5)

	// The graph keeps exact vectors, so results equal brute force.
	want := bruteForceNearest(entries, query, 5)
	got := make([]string, len(matches))
	for i, m := range matches {
		got[i] = m.ID
	}
	assert.Equal(t, want, got)

	// Best first, self match on top with ~zero distance.
	assert.Equal(t, "f.go:37", matches[0].ID)
	assert.InDelta(t, 0, matches[0].Distance, 1e-9)
	for i := 1; i < len(matches); i++ {
		assert.GreaterOrEqual(t, matches[i].Distance, matches[i-1].Distance)
	}
}

func TestGraphIndexKLargerThanSize(t *testing.T) {
	entries := randomEntries(5, 8, 2)
	idx, err := Build(Params{Strategy: StrategyGraph}, entries)
	require.NoError(t, err)

	matches := idx.Query(entries[0].Vector, 50)
	assert.Len(t, matches, 5)
}

func TestPartitionedIndexBuildAndQuery(t *testing.T) {
	entries := randomEntries(500, 96, 3)
	params := ChooseStrategy(len(entries))
	idx, err := Build(params, entries)
	require.NoError(t, err)
	assert.Equal(t, StrategyPartitioned, idx.Strategy())
	assert.Equal(t, 500, idx.Len())

	pidx, ok := idx.(*partitionedIndex)
	require.True(t, ok)
	assert.Equal(t, 25, pidx.Partitions())

	// Approximate search over an oversampled candidate set should
	// recover the exact top hit most of the time; check that the true
	// nearest neighbor appears in a generous candidate list.
	query := entries[123].Vector
	matches := idx.Query(query, 50)
	require.NotEmpty(t, matches)
	ids := make(map[string]bool, len(matches))
	for _, m := range matches {
		ids[m.ID] = true
	}
	assert.True(t, ids["f.go:123"], "query vector's own entry missing from candidates")
}

func TestPartitionedIndexDimensionNotDivisible(t *testing.T) {
	// 100 dims with 96 requested sub-vectors steps down to a divisor.
	entries := randomEntries(300, 100, 4)
	idx, err := Build(Params{
		Strategy:   StrategyPartitioned,
		Partitions: 15,
		SubVectors: 96,
		Bits:       8,
	}, entries)
	require.NoError(t, err)
	assert.NotEmpty(t, idx.Query(entries[0].Vector, 10))
}

func TestBuildRejectsMixedDimensions(t *testing.T) {
	entries := []Entry{
		{ID: "a", Vector: []float32{1, 2}},
		{ID: "b", Vector: []float32{1, 2, 3}},
	}
	_, err := Build(Params{Strategy: StrategyGraph}, entries)
	assert.Error(t, err)
}

func TestCosineDistanceRange(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{0, 1}
	assert.InDelta(t, 1, cosineDistance(a, b), 1e-9)
	assert.InDelta(t, 0, cosineDistance(a, a), 1e-9)
	assert.InDelta(t, 2, cosineDistance(a, []float32{-1, 0}), 1e-9)
	assert.False(t, math.IsNaN(cosineDistance(a, []float32{0, 0})))
}
