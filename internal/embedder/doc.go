// Package embedder generates and batches embedding vectors.
//
// The Embedder interface is order-preserving: EmbedBatch returns one
// vector per input text, in input order, or fails the call. Providers:
//
//   - jina: Jina AI embeddings API (1024 dimensions)
//   - openai: OpenAI embeddings API (1536 dimensions)
//   - local: deterministic hash-derived vectors for offline use (384)
//
// HTTP providers retry transient failures with exponential backoff and
// share an LRU cache keyed by content hash, so re-indexing unchanged
// files costs no API calls.
//
// Batcher feeds chunk slices through an Embedder in fixed-size batches
// with bounded concurrency. A failed or misaligned batch is dropped
// with a warning; the run continues and the resulting index is partial
// rather than absent.
package embedder
