// Package vectorstore persists embedded chunks in SQLite and serves
// filtered nearest-neighbor search over them.
//
// Rows live in a single chunks table; embeddings are stored as
// little-endian float32 blobs. An in-memory approximate index (see the
// ann subpackage) accelerates queries but is never required for
// correctness: the store falls back to an exact filtered scan whenever
// the index is missing or the SQL filter strips too many candidates.
//
// Two build modes select the SQLite driver. The default pure Go build
// uses modernc.org/sqlite; building with -tags sqlite_vec switches to
// the CGO mattn/go-sqlite3 driver.
package vectorstore
