package ann

import (
	"container/heap"
	"fmt"
	"sort"
)

const kmeansIterations = 10

// partitionedIndex clusters entries into partitions (inverted file) and
// stores each vector as product-quantization codes. Queries probe the
// nearest partitions and rank entries by approximate distance from
// per-sub-vector lookup tables.
type partitionedIndex struct {
	dim        int
	subVectors int
	subDim     int
	size       int

	partitionCentroids [][]float32
	// codebooks[j] holds the centroids for sub-vector j.
	codebooks [][][]float32
	// partitions[p] holds the coded entries assigned to partition p.
	partitions [][]codedEntry
}

type codedEntry struct {
	id   string
	code []byte
}

func buildPartitioned(params Params, entries []Entry) (*partitionedIndex, error) {
	dim := len(entries[0].Vector)
	for _, e := range entries {
		if len(e.Vector) != dim {
			return nil, fmt.Errorf("entry %s has dimension %d, want %d", e.ID, len(e.Vector), dim)
		}
	}
	if params.Bits <= 0 || params.Bits > 8 {
		return nil, fmt.Errorf("unsupported code width %d bits", params.Bits)
	}

	// The sub-vector count must divide the dimension; step down from
	// the requested count until it does.
	subVectors := params.SubVectors
	if subVectors > dim {
		subVectors = dim
	}
	for dim%subVectors != 0 {
		subVectors--
	}
	subDim := dim / subVectors

	idx := &partitionedIndex{
		dim:        dim,
		subVectors: subVectors,
		subDim:     subDim,
		size:       len(entries),
	}

	vectors := make([][]float32, len(entries))
	for i, e := range entries {
		vectors[i] = e.Vector
	}

	// Inverted file: partition assignment by k-means over full vectors.
	var assign []int
	idx.partitionCentroids, assign = kmeans(vectors, params.Partitions, kmeansIterations)

	// One codebook per sub-vector, trained on that sub-block of every
	// vector.
	codeWidth := 1 << params.Bits
	idx.codebooks = make([][][]float32, subVectors)
	for j := 0; j < subVectors; j++ {
		subs := make([][]float32, len(vectors))
		for i, v := range vectors {
			subs[i] = v[j*subDim : (j+1)*subDim]
		}
		idx.codebooks[j], _ = kmeans(subs, codeWidth, kmeansIterations)
	}

	idx.partitions = make([][]codedEntry, len(idx.partitionCentroids))
	for i, e := range entries {
		code := make([]byte, subVectors)
		for j := 0; j < subVectors; j++ {
			sub := e.Vector[j*subDim : (j+1)*subDim]
			code[j] = byte(nearestCentroid(sub, idx.codebooks[j]))
		}
		p := assign[i]
		idx.partitions[p] = append(idx.partitions[p], codedEntry{id: e.ID, code: code})
	}

	return idx, nil
}

func (p *partitionedIndex) Len() int {
	return p.size
}

func (p *partitionedIndex) Strategy() Strategy {
	return StrategyPartitioned
}

// Partitions reports the partition count, exposed for tests.
func (p *partitionedIndex) Partitions() int {
	return len(p.partitionCentroids)
}

func (p *partitionedIndex) Query(query []float32, k int) []Match {
	if k <= 0 || len(query) != p.dim {
		return nil
	}

	// Rank partitions by centroid distance and probe the closest ones.
	order := make([]int, len(p.partitionCentroids))
	dists := make([]float64, len(p.partitionCentroids))
	for i, c := range p.partitionCentroids {
		order[i] = i
		dists[i] = squaredL2(query, c)
	}
	sort.Slice(order, func(a, b int) bool {
		return dists[order[a]] < dists[order[b]]
	})

	nprobe := len(p.partitionCentroids) / 8
	if nprobe < 4 {
		nprobe = 4
	}
	if nprobe > len(order) {
		nprobe = len(order)
	}

	// Asymmetric distance: precompute query-to-centroid distances per
	// sub-vector, then sum table lookups per coded entry.
	tables := make([][]float64, p.subVectors)
	for j := 0; j < p.subVectors; j++ {
		sub := query[j*p.subDim : (j+1)*p.subDim]
		tables[j] = make([]float64, len(p.codebooks[j]))
		for c, centroid := range p.codebooks[j] {
			tables[j][c] = squaredL2(sub, centroid)
		}
	}

	best := &matchHeap{}
	heap.Init(best)
	for _, pi := range order[:nprobe] {
		for _, e := range p.partitions[pi] {
			var d float64
			for j, c := range e.code {
				d += tables[j][c]
			}
			if best.Len() < k {
				heap.Push(best, Match{ID: e.id, Distance: d})
			} else if d < (*best)[0].Distance {
				heap.Pop(best)
				heap.Push(best, Match{ID: e.id, Distance: d})
			}
		}
	}

	out := make([]Match, best.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(best).(Match)
	}
	return out
}
