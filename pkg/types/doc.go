// Package types provides shared type definitions for repoctx.
//
// The central type is Chunk, a fragment of a repository file destined
// for embedding and retrieval:
//
//	chunk := types.Chunk{
//	    Filepath: "src/parser.py",
//	    Content:  fragment,
//	    Range:    &types.Range{Start: types.Position{Line: 40}, End: types.Position{Line: 79}},
//	    Repo:     "acme/widgets",
//	    Branch:   "main",
//	}
//
// A nil Range marks a whole-file chunk. Chunk identity in the vector
// store is "filepath:start_line", so re-indexing identical content
// yields identical row IDs.
//
// Tag scopes indexing and retrieval to a repository and branch, with an
// optional directory restriction:
//
//	tag := types.Tag{Repo: "acme/widgets", Branch: "main", Directory: "src"}
//
// Languages are derived from file extensions via LanguageForPath;
// unmapped extensions report "unknown".
package types
