package mcp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/server"

	"github.com/dshills/devlog-mcp/internal/capture"
	"github.com/dshills/devlog-mcp/internal/embedder"
	"github.com/dshills/devlog-mcp/internal/searcher"
	"github.com/dshills/devlog-mcp/internal/storage"
)

const (
	// ServerName is the MCP server name
	ServerName = "devlog-mcp"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp      *server.MCPServer
	storage  storage.Storage
	capture  *capture.Capture
	searcher *searcher.Searcher
}

// NewServer creates a new MCP server instance. An empty dbPath defaults to
// ~/.devlog/devlog.db.
func NewServer(dbPath string) (*Server, error) {
	if dbPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dbPath = filepath.Join(home, ".devlog", "devlog.db")
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	// The embedder is lazy: the model connection is established on the
	// first semantic query, not at startup.
	emb := embedder.NewLazy(embedder.NewFromEnv)

	s := &Server{
		mcp:      server.NewMCPServer(ServerName, ServerVersion),
		storage:  store,
		capture:  capture.New(store),
		searcher: searcher.NewSearcher(store, emb),
	}
	s.registerTools()
	return s, nil
}

// Serve starts the MCP server on stdio and blocks until shutdown
func (s *Server) Serve(ctx context.Context) error {
	defer func() { _ = s.storage.Close() }()
	return server.ServeStdio(s.mcp)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(searchCommitsTool(), s.handleSearchCommits)
	s.mcp.AddTool(trackRepoTool(), s.handleTrackRepo)
	s.mcp.AddTool(untrackRepoTool(), s.handleUntrackRepo)
	s.mcp.AddTool(captureCommitTool(), s.handleCaptureCommit)
	s.mcp.AddTool(embedCommitsTool(), s.handleEmbedCommits)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
}
