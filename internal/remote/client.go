package remote

import (
	"context"
	"errors"
)

// Entry types reported by ListTree.
const (
	EntryFile = "file"
	EntryDir  = "dir"
)

// TreeEntry is one item of a repository directory listing.
type TreeEntry struct {
	Path string
	Type string
	Size int64
}

// IsDir reports whether the entry is a directory.
func (e TreeEntry) IsDir() bool {
	return e.Type == EntryDir
}

// Client reads a remote repository tree. Implementations own their
// transport concerns (auth, retry, rate limiting); callers see only
// listings, file contents, and errors.
type Client interface {
	// ListTree returns the immediate children of dir on the given ref.
	// dir "" or "/" means the repository root.
	ListTree(ctx context.Context, repo, ref, dir string) ([]TreeEntry, error)

	// ReadFile returns the decoded content of path on the given ref.
	// A missing or since-deleted file yields ErrNotFound.
	ReadFile(ctx context.Context, repo, ref, path string) (string, error)
}

// Errors returned by remote clients.
var (
	// ErrNotFound marks a path absent on the remote; callers skip it.
	ErrNotFound = errors.New("remote path not found")

	// ErrRateLimited marks a request rejected for rate limiting after
	// all retries were exhausted.
	ErrRateLimited = errors.New("remote rate limit exceeded")
)
