package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/devlog-mcp/internal/capture"
	"github.com/dshills/devlog-mcp/internal/searcher"
	"github.com/dshills/devlog-mcp/internal/storage"
)

// MCP error codes
const (
	ErrorCodeInvalidParams  = -32602 // Invalid method parameters
	ErrorCodeInternalError  = -32603 // Internal JSON-RPC error
	ErrorCodeRepoNotFound   = -32001 // Repository is not tracked
	ErrorCodeNotARepository = -32002 // Path is not a git repository
)

// handleSearchCommits handles the search_commits tool invocation
func (s *Server) handleSearchCommits(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query, ok := args["query"].(string)
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "query parameter is required", map[string]interface{}{
			"param":  "query",
			"reason": "missing",
		})
	}

	limit := getIntDefault(args, "limit", searcher.DefaultLimit)
	if limit < 1 || limit > searcher.MaxLimit {
		return nil, newMCPError(ErrorCodeInvalidParams, "limit must be between 1 and 100", map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}

	mode := searcher.Mode(getStringDefault(args, "search_type", string(searcher.ModeAuto)))
	switch mode {
	case searcher.ModeAuto, searcher.ModeHybrid, searcher.ModeKeyword,
		searcher.ModeCode, searcher.ModeFunction, searcher.ModeSemantic:
	default:
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid search_type", map[string]interface{}{
			"param":   "search_type",
			"value":   string(mode),
			"allowed": []string{"auto", "hybrid", "keyword", "code", "function", "semantic"},
		})
	}

	filters := &storage.SearchFilters{
		RepoName: getStringDefault(args, "repo", ""),
		Language: getStringDefault(args, "language", ""),
	}
	var err error
	if filters.After, err = parseTimeArg(args, "after"); err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid after timestamp", map[string]interface{}{
			"param": "after", "reason": err.Error(),
		})
	}
	if filters.Before, err = parseTimeArg(args, "before"); err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid before timestamp", map[string]interface{}{
			"param": "before", "reason": err.Error(),
		})
	}

	resp, err := s.searcher.Search(ctx, searcher.SearchRequest{
		Query:    query,
		Limit:    limit,
		Mode:     mode,
		Filters:  filters,
		UseCache: true,
	})
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "search failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	results := make([]map[string]interface{}, len(resp.Results))
	for i, r := range resp.Results {
		files := make([]string, len(r.Files))
		for j, f := range r.Files {
			files[j] = f.Path
		}
		results[i] = map[string]interface{}{
			"rank":         r.Rank,
			"score":        r.Score,
			"match_type":   string(r.MatchType),
			"repo":         r.RepoName,
			"short_hash":   r.ShortHash,
			"message":      r.Message,
			"author":       r.Author,
			"committed_at": r.CommittedAt.Format(time.RFC3339),
			"files":        files,
			"snippets":     r.Snippets,
		}
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"query":       query,
		"search_type": string(resp.Mode),
		"count":       resp.TotalResults,
		"degraded":    resp.Degraded,
		"duration_ms": resp.Duration.Milliseconds(),
		"results":     results,
	})), nil
}

// handleTrackRepo handles the track_repo tool invocation
func (s *Server) handleTrackRepo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path, ok := args["path"].(string)
	if !ok || path == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "path parameter is required", map[string]interface{}{
			"param":  "path",
			"reason": "missing or empty",
		})
	}
	if err := validatePath(path); err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid path", map[string]interface{}{
			"param":  "path",
			"reason": err.Error(),
		})
	}

	name := getStringDefault(args, "name", "")
	repo, err := s.capture.TrackRepo(ctx, path, name)
	if err != nil {
		if errors.Is(err, capture.ErrNotARepo) {
			return nil, newMCPError(ErrorCodeNotARepository, "not a git repository", map[string]interface{}{
				"path": path,
			})
		}
		return nil, newMCPError(ErrorCodeInternalError, "track failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"tracked": true,
		"name":    repo.Name,
		"path":    repo.Path,
	})), nil
}

// handleUntrackRepo handles the untrack_repo tool invocation
func (s *Server) handleUntrackRepo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	name, ok := args["name"].(string)
	if !ok || name == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "name parameter is required", map[string]interface{}{
			"param":  "name",
			"reason": "missing or empty",
		})
	}

	if err := s.capture.UntrackRepo(ctx, name); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, newMCPError(ErrorCodeRepoNotFound, "repository not tracked", map[string]interface{}{
				"name": name,
			})
		}
		return nil, newMCPError(ErrorCodeInternalError, "untrack failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"untracked": true,
		"name":      name,
		"note":      "captured history is kept; the repo is just excluded from search",
	})), nil
}

// handleCaptureCommit handles the capture_commit tool invocation
func (s *Server) handleCaptureCommit(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path, ok := args["path"].(string)
	if !ok || path == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "path parameter is required", map[string]interface{}{
			"param":  "path",
			"reason": "missing or empty",
		})
	}

	rev := getStringDefault(args, "rev", "HEAD")
	created, err := s.capture.CaptureCommit(ctx, path, rev)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, newMCPError(ErrorCodeRepoNotFound, "repository not tracked", map[string]interface{}{
				"path": path,
			})
		}
		return nil, newMCPError(ErrorCodeInternalError, "capture failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"captured":  created,
		"duplicate": !created,
		"rev":       rev,
	})), nil
}

// handleEmbedCommits handles the embed_commits tool invocation
func (s *Server) handleEmbedCommits(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	count, err := s.searcher.Index().EmbedAllPending(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "embedding failed", map[string]interface{}{
			"error":     err.Error(),
			"processed": count,
		})
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"processed": count,
	})), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status, err := s.storage.GetStatus(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get status", map[string]interface{}{
			"error": err.Error(),
		})
	}

	repos, err := s.storage.ListRepos(ctx, false)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to list repos", map[string]interface{}{
			"error": err.Error(),
		})
	}

	repoList := make([]map[string]interface{}, len(repos))
	for i, r := range repos {
		entry := map[string]interface{}{
			"name":         r.Name,
			"path":         r.Path,
			"active":       r.Active,
			"commit_count": r.CommitCount,
		}
		if !r.LastCommitAt.IsZero() {
			entry["last_commit_at"] = r.LastCommitAt.Format(time.RFC3339)
		}
		repoList[i] = entry
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"repos": repoList,
		"statistics": map[string]interface{}{
			"repos_count":      status.ReposCount,
			"active_repos":     status.ActiveRepos,
			"commits_count":    status.CommitsCount,
			"changes_count":    status.ChangesCount,
			"embeddings_count": status.EmbeddingsCount,
			"db_size_mb":       fmt.Sprintf("%.2f", status.DBSizeMB),
		},
	})), nil
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

// validatePath checks that a path is an absolute, readable directory
func validatePath(path string) error {
	if path == "" {
		return ErrPathRequired
	}
	if !filepath.IsAbs(path) {
		return ErrPathNotAbsolute
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return ErrPathNotFound
	}
	if err != nil {
		return ErrPathNotReadable
	}
	if !info.IsDir() {
		return ErrNotDirectory
	}
	return nil
}

// parseTimeArg reads an optional timestamp argument, accepting RFC 3339 or
// a bare YYYY-MM-DD date.
func parseTimeArg(args map[string]interface{}, key string) (time.Time, error) {
	raw := getStringDefault(args, key, "")
	if raw == "" {
		return time.Time{}, nil
	}
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return ts, nil
	}
	return time.Parse("2006-01-02", raw)
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

// Validation helpers

var (
	ErrPathRequired    = errors.New("path is required")
	ErrPathNotAbsolute = errors.New("path must be absolute")
	ErrPathNotFound    = errors.New("path does not exist")
	ErrPathNotReadable = errors.New("path is not readable")
	ErrNotDirectory    = errors.New("path is not a directory")
)
