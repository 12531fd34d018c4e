// Package ann provides the approximate-nearest-neighbor indexes used
// by the vector store, and the policy that picks between them.
//
// ChooseStrategy maps a row count to build parameters: small corpora
// (under 256 rows) get a vantage-point tree over exact vectors, larger
// ones get an inverted-file index with 8-bit product quantization and
// one partition per 20 rows, capped at 256 partitions.
//
// Both layouts implement Index. Match distances are strategy specific
// and only order candidates within one index; callers re-rank against
// exact stored vectors.
package ann
