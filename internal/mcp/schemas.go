package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// indexRepositoryTool returns the tool definition for index_repository
func indexRepositoryTool() mcp.Tool {
	return mcp.Tool{
		Name:        "index_repository",
		Description: "Index a remote repository to make its code searchable",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"repo": map[string]interface{}{
					"type":        "string",
					"description": "Repository in owner/name form (e.g., 'golang/go')",
				},
				"branch": map[string]interface{}{
					"type":        "string",
					"description": "Branch or ref to index",
					"default":     "main",
				},
				"include": map[string]interface{}{
					"type":        "array",
					"description": "Include glob patterns (e.g., '**/*.go'); empty uses the defaults",
					"items": map[string]interface{}{
						"type": "string",
					},
				},
				"exclude": map[string]interface{}{
					"type":        "array",
					"description": "Exclude glob patterns (e.g., '**/vendor/**'); empty uses the defaults",
					"items": map[string]interface{}{
						"type": "string",
					},
				},
			},
			Required: []string{"repo"},
		},
	}
}

// searchCodeTool returns the tool definition for search_code
func searchCodeTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_code",
		Description: "Search indexed repository code with natural language queries",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search query (natural language or keywords)",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results to return (1-100)",
					"default":     10,
					"minimum":     1,
					"maximum":     100,
				},
				"repo": map[string]interface{}{
					"type":        "string",
					"description": "Restrict results to this repository (owner/name)",
				},
				"branch": map[string]interface{}{
					"type":        "string",
					"description": "Restrict results to this branch",
				},
				"directory": map[string]interface{}{
					"type":        "string",
					"description": "Restrict results to files under this directory prefix",
				},
				"language": map[string]interface{}{
					"type":        "string",
					"description": "Restrict results to this language (e.g., 'go', 'python')",
				},
			},
			Required: []string{"query"},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Query index statistics and whether an indexing run is active",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// clearIndexTool returns the tool definition for clear_index
func clearIndexTool() mcp.Tool {
	return mcp.Tool{
		Name:        "clear_index",
		Description: "Remove every indexed chunk from the store",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
