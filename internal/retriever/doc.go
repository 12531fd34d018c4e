// Package retriever turns a natural-language query into ranked chunk
// results. It embeds the query with the same embedder used at index
// time, delegates similarity search to the vector store with filters
// derived from tags, and reconstitutes stored rows into chunks. A
// small TTL-bounded LRU cache short-circuits repeated queries.
package retriever
