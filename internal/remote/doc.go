// Package remote abstracts read access to a remote repository tree.
//
// The Client interface exposes directory listing and file reads against
// a (repo, ref) pair. GitHubClient implements it over the GitHub
// contents API, handling base64 decoding, large-file raw fetches,
// rate-limit pacing from response headers, and bounded retry with
// doubling backoff for transient failures.
//
// Transport-level resilience lives entirely in this package. Consumers
// (the discovery walker and the indexer) see only listings, contents,
// and ErrNotFound for paths that vanished between listing and read.
package remote
