package walker

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mforrest/repoctx/internal/pattern"
	"github.com/mforrest/repoctx/internal/remote"
)

// Result is one discovery: either a file path that passed the pattern
// matcher, or a listing error for a subtree. The consumer decides
// whether an error skips the subtree or aborts the walk.
type Result struct {
	Path string
	Err  error
}

// Walker lazily enumerates matching files of a remote repository tree.
// Directories are listed on demand as the consumer drains the channel,
// so a walk over a large repository never materializes the full tree.
type Walker struct {
	client  remote.Client
	matcher *pattern.Matcher
	logger  *zap.Logger
}

// New creates a Walker over client, filtering with matcher.
func New(client remote.Client, matcher *pattern.Matcher, logger *zap.Logger) *Walker {
	return &Walker{
		client:  client,
		matcher: matcher,
		logger:  logger,
	}
}

// Walk traverses the tree rooted at root depth first and sends matching
// file paths on the returned channel. The channel is unbuffered, so
// traversal advances only as fast as the consumer reads. The channel is
// closed when traversal finishes or ctx is cancelled.
func (w *Walker) Walk(ctx context.Context, repo, ref, root string) <-chan Result {
	results := make(chan Result)

	go func() {
		defer close(results)
		w.walkDir(ctx, repo, ref, root, results)
	}()

	return results
}

// walkDir lists one directory, emits its matching files, and recurses
// into subdirectories that survive exclusion pruning.
func (w *Walker) walkDir(ctx context.Context, repo, ref, dir string, results chan<- Result) {
	if ctx.Err() != nil {
		return
	}

	entries, err := w.client.ListTree(ctx, repo, ref, dir)
	if err != nil {
		w.logger.Warn("listing failed",
			zap.String("repo", repo),
			zap.String("dir", dir),
			zap.Error(err))
		send(ctx, results, Result{Path: dir, Err: fmt.Errorf("list %q: %w", dir, err)})
		return
	}

	for _, entry := range entries {
		if ctx.Err() != nil {
			return
		}
		if entry.IsDir() {
			if w.matcher.Excluded(entry.Path) {
				continue
			}
			w.walkDir(ctx, repo, ref, entry.Path, results)
			continue
		}
		if w.matcher.Matches(entry.Path) {
			if !send(ctx, results, Result{Path: entry.Path}) {
				return
			}
		}
	}
}

func send(ctx context.Context, results chan<- Result, r Result) bool {
	select {
	case results <- r:
		return true
	case <-ctx.Done():
		return false
	}
}
