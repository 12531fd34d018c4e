package embedder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mforrest/repoctx/pkg/types"
)

// scriptedEmbedder lets tests fail or misalign specific calls.
type scriptedEmbedder struct {
	mu        sync.Mutex
	calls     int
	failCalls map[int]error
	shortCall int // 1-based call whose response drops one vector; 0 disables
}

func (s *scriptedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	s.mu.Lock()
	s.calls++
	call := s.calls
	s.mu.Unlock()

	if err, ok := s.failCalls[call]; ok {
		return nil, err
	}

	n := len(texts)
	if call == s.shortCall {
		n--
	}
	vectors := make([][]float32, n)
	for i := range vectors {
		vectors[i] = []float32{float32(len(texts[i]))}
	}
	return vectors, nil
}

func (s *scriptedEmbedder) Dimension() int   { return 1 }
func (s *scriptedEmbedder) Provider() string { return "scripted" }
func (s *scriptedEmbedder) Model() string    { return "scripted" }
func (s *scriptedEmbedder) Close() error     { return nil }

func makeChunks(n int) []types.Chunk {
	chunks := make([]types.Chunk, n)
	for i := range chunks {
		chunks[i] = types.Chunk{
			Filepath: fmt.Sprintf("f%d.go", i),
			Content:  fmt.Sprintf("content %d", i),
		}
	}
	return chunks
}

func TestBatcherEmbedsAllChunks(t *testing.T) {
	b := NewBatcher(&scriptedEmbedder{}, 10, 1, zap.NewNop())

	embedded, stats, err := b.EmbedChunks(context.Background(), makeChunks(25))
	require.NoError(t, err)
	assert.Len(t, embedded, 25)
	assert.Equal(t, 3, stats.Batches)
	assert.Zero(t, stats.BatchesSkipped)
	assert.Equal(t, 25, stats.Embedded)

	for _, e := range embedded {
		require.Len(t, e.Vector, 1)
		assert.Equal(t, float32(len(e.Chunk.Content)), e.Vector[0])
	}
}

func TestBatcherSkipsFailedBatch(t *testing.T) {
	emb := &scriptedEmbedder{failCalls: map[int]error{2: errors.New("provider down")}}
	b := NewBatcher(emb, 10, 1, zap.NewNop())

	embedded, stats, err := b.EmbedChunks(context.Background(), makeChunks(30))
	require.NoError(t, err)
	assert.Len(t, embedded, 20)
	assert.Equal(t, 3, stats.Batches)
	assert.Equal(t, 1, stats.BatchesSkipped)
}

func TestBatcherRejectsMisalignedResponse(t *testing.T) {
	emb := &scriptedEmbedder{shortCall: 1}
	b := NewBatcher(emb, 10, 1, zap.NewNop())

	embedded, stats, err := b.EmbedChunks(context.Background(), makeChunks(10))
	require.NoError(t, err)
	// The whole misaligned batch is dropped, never zipped off by one.
	assert.Empty(t, embedded)
	assert.Equal(t, 1, stats.BatchesSkipped)
}

func TestBatcherConcurrentBatches(t *testing.T) {
	b := NewBatcher(&scriptedEmbedder{}, 5, 4, zap.NewNop())

	embedded, stats, err := b.EmbedChunks(context.Background(), makeChunks(40))
	require.NoError(t, err)
	assert.Len(t, embedded, 40)
	assert.Equal(t, 8, stats.Batches)

	// Every chunk appears exactly once regardless of completion order.
	seen := make(map[string]bool, len(embedded))
	for _, e := range embedded {
		assert.False(t, seen[e.Chunk.Filepath])
		seen[e.Chunk.Filepath] = true
	}
}

func TestBatcherEmptyInput(t *testing.T) {
	b := NewBatcher(&scriptedEmbedder{}, 10, 1, zap.NewNop())

	embedded, stats, err := b.EmbedChunks(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, embedded)
	assert.Zero(t, stats.Batches)
}

func TestBatcherCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b := NewBatcher(&scriptedEmbedder{failCalls: map[int]error{1: context.Canceled}}, 10, 1, zap.NewNop())
	_, _, err := b.EmbedChunks(ctx, makeChunks(5))
	assert.ErrorIs(t, err, context.Canceled)
}
