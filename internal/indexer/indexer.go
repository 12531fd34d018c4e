package indexer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mforrest/repoctx/internal/chunker"
	"github.com/mforrest/repoctx/internal/embedder"
	"github.com/mforrest/repoctx/internal/pattern"
	"github.com/mforrest/repoctx/internal/remote"
	"github.com/mforrest/repoctx/internal/vectorstore"
	"github.com/mforrest/repoctx/internal/walker"
	"github.com/mforrest/repoctx/pkg/types"
)

// DefaultWorkers bounds concurrent file reads against the remote host.
const DefaultWorkers = 8

// Indexer coordinates the pipeline: walk -> read -> chunk -> embed ->
// store. One run per store at a time; concurrent runs are rejected.
type Indexer struct {
	client  remote.Client
	chunker *chunker.Chunker
	batcher *embedder.Batcher
	store   vectorstore.Store
	logger  *zap.Logger
	workers int

	lock IndexLock
}

// Statistics summarizes one indexing run.
type Statistics struct {
	FilesWalked    int
	FilesIndexed   int
	FilesSkipped   int
	FilesFailed    int
	Chunks         int
	BatchesSkipped int
	Duration       time.Duration
	ErrorMessages  []string
}

// New creates an Indexer. workers <= 0 selects DefaultWorkers.
func New(client remote.Client, ch *chunker.Chunker, batcher *embedder.Batcher, store vectorstore.Store, logger *zap.Logger, workers int) *Indexer {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Indexer{
		client:  client,
		chunker: ch,
		batcher: batcher,
		store:   store,
		logger:  logger,
		workers: workers,
	}
}

// InProgress reports whether an indexing run is currently active.
func (idx *Indexer) InProgress() bool {
	return idx.lock.Locked()
}

// IndexRepository wipes the store and re-indexes repo at branch. File
// discovery honors the include and exclude patterns (empty slices mean
// the defaults). Per-file read and chunk failures are logged and
// skipped; the run aborts only on cancellation or a store failure.
func (idx *Indexer) IndexRepository(ctx context.Context, repo, branch string, include, exclude []string) (*Statistics, error) {
	if !idx.lock.TryAcquire() {
		return nil, types.ErrIndexingInProgress
	}
	defer idx.lock.Release()

	start := time.Now()
	stats := &Statistics{ErrorMessages: make([]string, 0)}

	// Re-indexing is always a full rebuild of the store.
	if err := idx.store.Clear(ctx); err != nil {
		return nil, fmt.Errorf("failed to clear store: %w", err)
	}

	chunks, err := idx.collectChunks(ctx, repo, branch, include, exclude, stats)
	if err != nil {
		return nil, err
	}

	idx.logger.Info("discovery complete",
		zap.String("repo", repo),
		zap.String("branch", branch),
		zap.Int("files_walked", stats.FilesWalked),
		zap.Int("files_indexed", stats.FilesIndexed),
		zap.Int("chunks", len(chunks)))

	embedded, batchStats, err := idx.batcher.EmbedChunks(ctx, chunks)
	if err != nil {
		return nil, fmt.Errorf("embedding aborted: %w", err)
	}
	stats.BatchesSkipped = batchStats.BatchesSkipped

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows := make([]vectorstore.Row, len(embedded))
	for i, e := range embedded {
		rows[i] = chunkToRow(e.Chunk, e.Vector)
	}
	if err := idx.store.Add(ctx, rows); err != nil {
		return nil, fmt.Errorf("failed to store chunks: %w", err)
	}
	stats.Chunks = len(rows)

	stats.Duration = time.Since(start)
	idx.logger.Info("indexing complete",
		zap.String("repo", repo),
		zap.String("branch", branch),
		zap.Int("chunks", stats.Chunks),
		zap.Int("batches_skipped", stats.BatchesSkipped),
		zap.Duration("duration", stats.Duration))

	return stats, nil
}

// collectChunks walks the repository tree and fans file reads out to a
// bounded worker pool. Only cancellation stops the walk; individual
// file failures are counted and skipped.
func (idx *Indexer) collectChunks(ctx context.Context, repo, branch string, include, exclude []string, stats *Statistics) ([]types.Chunk, error) {
	matcher := pattern.NewMatcher(include, exclude)
	w := walker.New(idx.client, matcher, idx.logger)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(idx.workers)

	var mu sync.Mutex
	var chunks []types.Chunk

	for result := range w.Walk(gctx, repo, branch, "") {
		if result.Err != nil {
			mu.Lock()
			stats.FilesFailed++
			stats.ErrorMessages = append(stats.ErrorMessages, result.Err.Error())
			mu.Unlock()
			continue
		}

		path := result.Path
		mu.Lock()
		stats.FilesWalked++
		mu.Unlock()

		g.Go(func() error {
			fileChunks, err := idx.indexFile(gctx, repo, branch, path)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				stats.FilesIndexed++
				chunks = append(chunks, fileChunks...)
			case errors.Is(err, remote.ErrNotFound):
				// Deleted between listing and read.
				stats.FilesSkipped++
				idx.logger.Debug("file vanished during walk", zap.String("path", path))
			case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
				return err
			default:
				stats.FilesFailed++
				stats.ErrorMessages = append(stats.ErrorMessages, fmt.Sprintf("%s: %v", path, err))
				idx.logger.Warn("file skipped", zap.String("path", path), zap.Error(err))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return chunks, nil
}

// indexFile reads one file and splits it into tagged chunks.
func (idx *Indexer) indexFile(ctx context.Context, repo, branch, path string) ([]types.Chunk, error) {
	content, err := idx.client.ReadFile(ctx, repo, branch, path)
	if err != nil {
		return nil, err
	}

	fileChunks := idx.chunker.Chunk(path, content)
	for i := range fileChunks {
		fileChunks[i].Repo = repo
		fileChunks[i].Branch = branch
	}
	return fileChunks, nil
}

// chunkToRow flattens a chunk and its vector into a storable row. A
// whole-file chunk has no range; its end line is derived from the
// content.
func chunkToRow(c types.Chunk, vector []float32) vectorstore.Row {
	endLine := 0
	if c.Range != nil {
		endLine = c.Range.End.Line
	} else if c.Content != "" {
		endLine = strings.Count(strings.TrimSuffix(c.Content, "\n"), "\n")
	}

	return vectorstore.Row{
		ID:        c.ID(),
		Content:   c.Content,
		Vector:    vector,
		Filepath:  c.Filepath,
		StartLine: int32(c.StartLine()),
		EndLine:   int32(endLine),
		Language:  c.Language(),
		Repo:      c.Repo,
		Branch:    c.Branch,
	}
}
