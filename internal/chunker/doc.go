// Package chunker fragments repository files for embedding.
//
// The Chunker routes each file by language to a registered Splitter and
// maps the resulting pieces to absolute line ranges. Consecutive pieces
// are assumed to overlap by the configured line count; every piece
// starts strictly after its predecessor, and end lines are clamped to
// the file length.
//
// Files in a language with no registered splitter, and files whose
// splitter fails, become a single whole-file chunk with a nil range.
// Empty files produce no chunks at all.
//
// LineWindowSplitter is the default splitter: overlapping windows of at
// most 40 lines and 1500 characters. It treats content as plain text; a
// syntax-aware splitter can be registered per language to replace it.
package chunker
