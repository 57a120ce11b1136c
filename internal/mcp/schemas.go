package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// searchCommitsTool returns the tool definition for search_commits
func searchCommitsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_commits",
		Description: "Search captured commit history with natural language, keywords, code fragments, or function names",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search query (natural language, keywords, or a function name)",
				},
				"search_type": map[string]interface{}{
					"type":        "string",
					"description": "Strategy override: auto routes by query shape, hybrid runs everything",
					"enum":        []string{"auto", "hybrid", "keyword", "code", "function", "semantic"},
					"default":     "auto",
				},
				"repo": map[string]interface{}{
					"type":        "string",
					"description": "Filter by repository name substring",
				},
				"language": map[string]interface{}{
					"type":        "string",
					"description": "Filter by language tag (e.g. python, go)",
				},
				"after": map[string]interface{}{
					"type":        "string",
					"description": "Only commits at or after this RFC 3339 timestamp or YYYY-MM-DD date",
				},
				"before": map[string]interface{}{
					"type":        "string",
					"description": "Only commits at or before this RFC 3339 timestamp or YYYY-MM-DD date",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results to return (1-100)",
					"default":     10,
					"minimum":     1,
					"maximum":     100,
				},
			},
			Required: []string{"query"},
		},
	}
}

// trackRepoTool returns the tool definition for track_repo
func trackRepoTool() mcp.Tool {
	return mcp.Tool{
		Name:        "track_repo",
		Description: "Start tracking a git repository so its commits can be captured",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to the git repository",
				},
				"name": map[string]interface{}{
					"type":        "string",
					"description": "Display name for the repository (defaults to the directory name)",
				},
			},
			Required: []string{"path"},
		},
	}
}

// untrackRepoTool returns the tool definition for untrack_repo
func untrackRepoTool() mcp.Tool {
	return mcp.Tool{
		Name:        "untrack_repo",
		Description: "Stop tracking a repository. Captured history is kept but excluded from search",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"name": map[string]interface{}{
					"type":        "string",
					"description": "Name of the tracked repository",
				},
			},
			Required: []string{"name"},
		},
	}
}

// captureCommitTool returns the tool definition for capture_commit
func captureCommitTool() mcp.Tool {
	return mcp.Tool{
		Name:        "capture_commit",
		Description: "Capture one commit (metadata, per-file diffs, and file contents) from a tracked repository",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to the tracked repository",
				},
				"rev": map[string]interface{}{
					"type":        "string",
					"description": "Commit to capture, any rev git resolves",
					"default":     "HEAD",
				},
			},
			Required: []string{"path"},
		},
	}
}

// embedCommitsTool returns the tool definition for embed_commits
func embedCommitsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "embed_commits",
		Description: "Generate embeddings for all captured commits that don't have one yet (enables semantic search)",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Report tracked repositories and commit store statistics",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
