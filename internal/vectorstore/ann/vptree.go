package ann

import (
	"container/heap"
	"fmt"
	"math"
	"sort"
)

// graphIndex is a vantage-point tree over cosine distance. Exact
// vectors are kept, so queries are exact nearest neighbors; the tree
// only prunes the search.
type graphIndex struct {
	root *vpNode
	size int
	dim  int
}

type vpNode struct {
	entry   Entry
	radius  float64
	inside  *vpNode
	outside *vpNode
}

func buildGraph(entries []Entry) (*graphIndex, error) {
	dim := len(entries[0].Vector)
	for _, e := range entries {
		if len(e.Vector) != dim {
			return nil, fmt.Errorf("entry %s has dimension %d, want %d", e.ID, len(e.Vector), dim)
		}
	}

	nodes := make([]Entry, len(entries))
	copy(nodes, entries)

	return &graphIndex{
		root: buildVPNode(nodes),
		size: len(entries),
		dim:  dim,
	}, nil
}

// buildVPNode recursively partitions entries around a vantage point at
// the median distance.
func buildVPNode(entries []Entry) *vpNode {
	if len(entries) == 0 {
		return nil
	}

	// Middle element as vantage point keeps the build deterministic.
	vpIdx := len(entries) / 2
	vp := entries[vpIdx]
	rest := make([]Entry, 0, len(entries)-1)
	rest = append(rest, entries[:vpIdx]...)
	rest = append(rest, entries[vpIdx+1:]...)

	node := &vpNode{entry: vp}
	if len(rest) == 0 {
		return node
	}

	dists := make([]float64, len(rest))
	for i, e := range rest {
		dists[i] = cosineDistance(vp.Vector, e.Vector)
	}

	sorted := make([]float64, len(dists))
	copy(sorted, dists)
	sort.Float64s(sorted)
	node.radius = sorted[len(sorted)/2]

	var inside, outside []Entry
	for i, e := range rest {
		if dists[i] <= node.radius {
			inside = append(inside, e)
		} else {
			outside = append(outside, e)
		}
	}

	node.inside = buildVPNode(inside)
	node.outside = buildVPNode(outside)
	return node
}

func (g *graphIndex) Len() int {
	return g.size
}

func (g *graphIndex) Strategy() Strategy {
	return StrategyGraph
}

func (g *graphIndex) Query(query []float32, k int) []Match {
	if k <= 0 || len(query) != g.dim {
		return nil
	}

	best := &matchHeap{}
	heap.Init(best)
	tau := math.Inf(1)
	g.search(g.root, query, k, best, &tau)

	// Pop yields worst first; reverse into best-first order.
	out := make([]Match, best.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(best).(Match)
	}
	return out
}

// search walks the tree, descending into the half more likely to hold
// the query first and pruning the other half against the current k-th
// best distance.
func (g *graphIndex) search(node *vpNode, query []float32, k int, best *matchHeap, tau *float64) {
	if node == nil {
		return
	}

	d := cosineDistance(query, node.entry.Vector)
	if d < *tau {
		heap.Push(best, Match{ID: node.entry.ID, Distance: d})
		if best.Len() > k {
			heap.Pop(best)
		}
		if best.Len() == k {
			*tau = (*best)[0].Distance
		}
	}

	if d <= node.radius {
		g.search(node.inside, query, k, best, tau)
		if d+*tau > node.radius {
			g.search(node.outside, query, k, best, tau)
		}
	} else {
		g.search(node.outside, query, k, best, tau)
		if d-*tau <= node.radius {
			g.search(node.inside, query, k, best, tau)
		}
	}
}

// matchHeap is a max-heap on distance, holding the current k best.
type matchHeap []Match

func (h matchHeap) Len() int            { return len(h) }
func (h matchHeap) Less(i, j int) bool  { return h[i].Distance > h[j].Distance }
func (h matchHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *matchHeap) Push(x interface{}) { *h = append(*h, x.(Match)) }
func (h *matchHeap) Pop() interface{} {
	old := *h
	n := len(old)
	m := old[n-1]
	*h = old[:n-1]
	return m
}

// cosineDistance is 1 minus cosine similarity, in [0, 2].
func cosineDistance(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i] * b[i])
		normA += float64(a[i] * a[i])
		normB += float64(b[i] * b[i])
	}
	if normA == 0 || normB == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
}
