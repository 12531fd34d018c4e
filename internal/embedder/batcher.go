package embedder

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mforrest/repoctx/pkg/types"
)

// DefaultBatchSize is the number of chunks embedded per provider call.
const DefaultBatchSize = 100

// DefaultBatchConcurrency bounds how many batches are in flight at once.
const DefaultBatchConcurrency = 4

// Embedded pairs a chunk with its vector, ready for storage.
type Embedded struct {
	Chunk  types.Chunk
	Vector []float32
}

// BatchStats summarizes one batching run.
type BatchStats struct {
	Batches        int
	BatchesSkipped int
	Embedded       int
}

// Batcher drives an Embedder over chunk slices in fixed-size batches.
// Failed batches are logged and skipped, so a transient provider outage
// costs coverage rather than the whole run. Result order follows chunk
// order; downstream storage does not depend on it.
type Batcher struct {
	embedder    Embedder
	batchSize   int
	concurrency int
	logger      *zap.Logger
}

// NewBatcher creates a Batcher. Non-positive sizes take the defaults.
func NewBatcher(e Embedder, batchSize, concurrency int, logger *zap.Logger) *Batcher {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if batchSize > MaxBatchSize {
		batchSize = MaxBatchSize
	}
	if concurrency <= 0 {
		concurrency = DefaultBatchConcurrency
	}
	return &Batcher{
		embedder:    e,
		batchSize:   batchSize,
		concurrency: concurrency,
		logger:      logger,
	}
}

// EmbedChunks embeds all chunks, batch by batch, with up to the
// configured number of batches in flight. Per-batch failures and
// misaligned provider responses drop that batch only; the error return
// is reserved for context cancellation.
func (b *Batcher) EmbedChunks(ctx context.Context, chunks []types.Chunk) ([]Embedded, BatchStats, error) {
	if len(chunks) == 0 {
		return nil, BatchStats{}, nil
	}

	batches := splitBatches(chunks, b.batchSize)
	results := make([][]Embedded, len(batches))
	skipped := make([]bool, len(batches))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)

	for i, batch := range batches {
		g.Go(func() error {
			embedded, err := b.embedBatch(gctx, batch)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				b.logger.Warn("embedding batch skipped, index will be partial",
					zap.Int("batch", i),
					zap.Int("chunks", len(batch)),
					zap.Error(err))
				skipped[i] = true
				return nil
			}
			results[i] = embedded
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, BatchStats{}, err
	}

	stats := BatchStats{Batches: len(batches)}
	var out []Embedded
	for i, r := range results {
		if skipped[i] {
			stats.BatchesSkipped++
			continue
		}
		out = append(out, r...)
	}
	stats.Embedded = len(out)

	return out, stats, nil
}

// embedBatch embeds one batch and zips vectors back onto chunks. A
// provider response of the wrong length is rejected whole; a silently
// misaligned zip would poison the index.
func (b *Batcher) embedBatch(ctx context.Context, batch []types.Chunk) ([]Embedded, error) {
	texts := make([]string, len(batch))
	for i, c := range batch {
		texts[i] = c.Content
	}

	vectors, err := b.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(batch) {
		return nil, fmt.Errorf("%w: %d chunks, %d vectors",
			types.ErrBatchMisaligned, len(batch), len(vectors))
	}

	embedded := make([]Embedded, len(batch))
	for i := range batch {
		embedded[i] = Embedded{Chunk: batch[i], Vector: vectors[i]}
	}
	return embedded, nil
}

func splitBatches(chunks []types.Chunk, size int) [][]types.Chunk {
	var batches [][]types.Chunk
	for start := 0; start < len(chunks); start += size {
		end := start + size
		if end > len(chunks) {
			end = len(chunks)
		}
		batches = append(batches, chunks[start:end])
	}
	return batches
}
