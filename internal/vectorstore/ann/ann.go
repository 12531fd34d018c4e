package ann

import (
	"errors"
	"fmt"
)

// Strategy names an approximate-nearest-neighbor index layout.
type Strategy string

const (
	// StrategyGraph is a vantage-point tree over exact vectors, suited
	// to small row counts.
	StrategyGraph Strategy = "graph"

	// StrategyPartitioned clusters rows into partitions and compresses
	// vectors with 8-bit product quantization, suited to large counts.
	StrategyPartitioned Strategy = "partitioned"
)

// Strategy selection parameters.
const (
	// GraphThreshold is the row count at which the partitioned layout
	// takes over from the graph.
	GraphThreshold = 256

	// RowsPerPartition sets the target partition size.
	RowsPerPartition = 20

	// MaxPartitions caps the partition count.
	MaxPartitions = 256

	// DefaultSubVectors is the product-quantization sub-vector count.
	DefaultSubVectors = 96

	// DefaultBits is the per-sub-vector code width.
	DefaultBits = 8
)

// Params fully determines an index build.
type Params struct {
	Strategy   Strategy
	Partitions int
	SubVectors int
	Bits       int
}

// ChooseStrategy maps a total row count to build parameters. Fewer than
// GraphThreshold rows get the graph layout; everything else gets the
// partitioned layout with one partition per RowsPerPartition rows,
// capped at MaxPartitions.
func ChooseStrategy(rowCount int) Params {
	if rowCount < GraphThreshold {
		return Params{Strategy: StrategyGraph}
	}
	partitions := rowCount / RowsPerPartition
	if partitions > MaxPartitions {
		partitions = MaxPartitions
	}
	if partitions < 1 {
		partitions = 1
	}
	return Params{
		Strategy:   StrategyPartitioned,
		Partitions: partitions,
		SubVectors: DefaultSubVectors,
		Bits:       DefaultBits,
	}
}

// Entry is one indexed vector with its row ID.
type Entry struct {
	ID     string
	Vector []float32
}

// Match is one query hit. Distance is strategy specific (exact cosine
// distance for the graph, approximate quantized distance for the
// partitioned layout); callers re-rank candidates against exact vectors
// and must not compare distances across strategies.
type Match struct {
	ID       string
	Distance float64
}

// Index answers approximate k-nearest-neighbor queries.
type Index interface {
	// Query returns up to k matches ordered best first.
	Query(query []float32, k int) []Match

	// Len returns the number of indexed entries.
	Len() int

	// Strategy reports the layout this index was built with.
	Strategy() Strategy
}

// ErrNoEntries is returned when building an index over nothing.
var ErrNoEntries = errors.New("no entries to index")

// Build constructs an index per params.
func Build(params Params, entries []Entry) (Index, error) {
	if len(entries) == 0 {
		return nil, ErrNoEntries
	}
	switch params.Strategy {
	case StrategyGraph:
		return buildGraph(entries)
	case StrategyPartitioned:
		return buildPartitioned(params, entries)
	default:
		return nil, fmt.Errorf("unknown index strategy %q", params.Strategy)
	}
}
