package types

// SearchResult is one ranked retrieval hit: the reconstituted chunk plus
// its cosine similarity to the query.
type SearchResult struct {
	Chunk Chunk
	Score float64
	Rank  int // 1-based position in the result set
}

// Validate checks if the search result is well formed.
func (sr *SearchResult) Validate() error {
	if sr.Rank < 1 {
		return ErrInvalidRank
	}
	if sr.Chunk.Content == "" {
		return ErrEmptyContent
	}
	return sr.Chunk.Validate()
}
