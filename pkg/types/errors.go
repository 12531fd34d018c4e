package types

import "errors"

// Domain errors shared across the pipeline. The split mirrors how
// failures are handled: transient errors skip the current item,
// degradable errors fall back to a simpler path, structural errors fail
// the operation, and setup errors abort the run.
var (
	// ErrNotFound indicates a remote file or tree entry that no longer
	// exists; callers skip and continue.
	ErrNotFound = errors.New("not found")

	// ErrDimensionMismatch indicates an embedding vector whose length
	// does not match the store's configured dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrBatchMisaligned indicates an embedding provider returned a
	// different number of vectors than texts submitted.
	ErrBatchMisaligned = errors.New("embedding batch result misaligned with input")

	// ErrIndexingInProgress indicates another indexing run holds the lock.
	ErrIndexingInProgress = errors.New("indexing already in progress")

	// ErrStoreUnavailable indicates the vector store cannot be reached
	// or opened; the run aborts.
	ErrStoreUnavailable = errors.New("vector store unavailable")

	// Search result validation errors.
	ErrInvalidRank  = errors.New("rank must be >= 1")
	ErrEmptyContent = errors.New("content cannot be empty")
)
