package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/mforrest/repoctx/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams      = -32602 // Invalid method parameters
	ErrorCodeInternalError      = -32603 // Internal JSON-RPC error
	ErrorCodeIndexingInProgress = -32002 // Another indexing operation is already running
	ErrorCodeEmptyQuery         = -32004 // Query parameter is empty
)

// handleIndexRepository handles the index_repository tool invocation
func (s *Server) handleIndexRepository(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	repo, ok := args["repo"].(string)
	if !ok || repo == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "repo parameter is required", map[string]interface{}{
			"param":  "repo",
			"reason": "missing or empty",
		})
	}
	if err := validateRepo(repo); err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid repo", map[string]interface{}{
			"param":  "repo",
			"reason": err.Error(),
		})
	}

	branch := getStringDefault(args, "branch", "main")
	include := getStringSlice(args, "include")
	exclude := getStringSlice(args, "exclude")
	if len(include) == 0 {
		include = s.cfg.Patterns.Include
	}
	if len(exclude) == 0 {
		exclude = s.cfg.Patterns.Exclude
	}

	stats, err := s.indexer.IndexRepository(ctx, repo, branch, include, exclude)
	if err != nil {
		if errors.Is(err, types.ErrIndexingInProgress) {
			return nil, newMCPError(ErrorCodeIndexingInProgress, "an indexing run is already active", nil)
		}
		return nil, newMCPError(ErrorCodeInternalError, "indexing failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	// The index changed; cached query results are stale.
	s.retriever.InvalidateCache()

	response := map[string]interface{}{
		"indexed":         true,
		"repo":            repo,
		"branch":          branch,
		"files_walked":    stats.FilesWalked,
		"files_indexed":   stats.FilesIndexed,
		"files_skipped":   stats.FilesSkipped,
		"files_failed":    stats.FilesFailed,
		"chunks_created":  stats.Chunks,
		"batches_skipped": stats.BatchesSkipped,
		"duration_ms":     stats.Duration.Milliseconds(),
	}

	if len(stats.ErrorMessages) > 0 {
		errorCount := len(stats.ErrorMessages)
		if errorCount > 5 {
			response["errors"] = stats.ErrorMessages[:5]
			response["error_count"] = errorCount
		} else {
			response["errors"] = stats.ErrorMessages
		}
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleSearchCode handles the search_code tool invocation
func (s *Server) handleSearchCode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query, ok := args["query"].(string)
	if !ok || strings.TrimSpace(query) == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	limit := getIntDefault(args, "limit", 10)
	if limit < 1 || limit > 100 {
		return nil, newMCPError(ErrorCodeInvalidParams, "limit must be between 1 and 100", map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}

	repo := getStringDefault(args, "repo", "")
	branch := getStringDefault(args, "branch", "")
	directory := getStringDefault(args, "directory", "")
	language := getStringDefault(args, "language", "")

	var tags []types.Tag
	if repo != "" || branch != "" {
		tags = append(tags, types.Tag{Repo: repo, Branch: branch})
	}

	results, err := s.retriever.Retrieve(ctx, query, limit, tags, directory, language)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "search failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	hits := make([]map[string]interface{}, len(results))
	for i, r := range results {
		hit := map[string]interface{}{
			"rank":     r.Rank,
			"score":    r.Score,
			"filepath": r.Chunk.Filepath,
			"repo":     r.Chunk.Repo,
			"branch":   r.Chunk.Branch,
			"language": r.Chunk.Language(),
			"content":  r.Chunk.Content,
		}
		if r.Chunk.Range != nil {
			hit["start_line"] = r.Chunk.Range.Start.Line
			hit["end_line"] = r.Chunk.Range.End.Line
		}
		hits[i] = hit
	}

	response := map[string]interface{}{
		"query":         query,
		"total_results": len(hits),
		"results":       hits,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get status", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"indexed":              stats.Rows > 0,
		"indexing_in_progress": s.indexer.InProgress(),
		"statistics": map[string]interface{}{
			"chunks_count":   stats.Rows,
			"repos_count":    stats.Repos,
			"index_strategy": stats.IndexStrategy,
			"index_size_mb":  fmt.Sprintf("%.2f", stats.SizeMB),
		},
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleClearIndex handles the clear_index tool invocation
func (s *Server) handleClearIndex(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.store.Clear(ctx); err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to clear index", map[string]interface{}{
			"error": err.Error(),
		})
	}
	s.retriever.InvalidateCache()

	response := map[string]interface{}{
		"cleared": true,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// validateRepo checks that repo looks like owner/name.
func validateRepo(repo string) error {
	parts := strings.Split(repo, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return ErrRepoMalformed
	}
	return nil
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}

// getStringSlice extracts a string array parameter
func getStringSlice(args map[string]interface{}, key string) []string {
	raw, ok := args[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Validation helpers

var (
	ErrRepoMalformed = errors.New("repo must be in owner/name form")
)
