// Package indexer coordinates the end-to-end indexing pipeline.
//
// IndexRepository wipes the store, walks the remote tree, reads and
// chunks matching files on a bounded worker pool, embeds the chunks in
// batches, and persists everything in a single store write. Per-file
// read failures are recorded in Statistics and skipped; only
// cancellation aborts the run.
//
// A non-blocking IndexLock admits one run at a time. A second call
// while a run is active fails immediately instead of queueing.
package indexer
