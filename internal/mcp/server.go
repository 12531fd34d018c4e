package mcp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/mforrest/repoctx/internal/chunker"
	"github.com/mforrest/repoctx/internal/config"
	"github.com/mforrest/repoctx/internal/embedder"
	"github.com/mforrest/repoctx/internal/indexer"
	"github.com/mforrest/repoctx/internal/remote"
	"github.com/mforrest/repoctx/internal/retriever"
	"github.com/mforrest/repoctx/internal/vectorstore"
)

const (
	// ServerName is the MCP server name
	ServerName = "repoctx"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp       *server.MCPServer
	cfg       *config.Config
	store     vectorstore.Store
	indexer   *indexer.Indexer
	retriever *retriever.Retriever
	logger    *zap.Logger
}

// NewServer wires the full pipeline behind an MCP stdio surface. The
// embedding provider comes from the environment; its dimension fixes
// the store's.
func NewServer(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	emb, err := embedder.NewFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	store, err := vectorstore.Open(cfg.DBPath, emb.Dimension(), logger.Named("store"))
	if err != nil {
		return nil, fmt.Errorf("failed to open vector store: %w", err)
	}

	var ghOpts []remote.GitHubOption
	if cfg.GitHub.BaseURL != "" {
		ghOpts = append(ghOpts, remote.WithBaseURL(cfg.GitHub.BaseURL))
	}
	client := remote.NewGitHubClient(cfg.GitHub.Token, logger.Named("github"), ghOpts...)

	ch := chunker.New(chunker.Config{
		MaxChars: cfg.Chunking.MaxChars,
		MaxLines: cfg.Chunking.MaxLines,
		Overlap:  cfg.Chunking.Overlap,
	}, logger.Named("chunker"))

	batcher := embedder.NewBatcher(emb,
		cfg.Embedding.BatchSize, cfg.Embedding.Concurrency, logger.Named("batcher"))

	idx := indexer.New(client, ch, batcher, store, logger.Named("indexer"), cfg.Embedding.Workers)
	ret := retriever.New(emb, store, logger.Named("retriever"))

	mcpServer := server.NewMCPServer(
		ServerName,
		ServerVersion,
	)

	s := &Server{
		mcp:       mcpServer,
		cfg:       cfg,
		store:     store,
		indexer:   idx,
		retriever: ret,
		logger:    logger,
	}

	s.registerTools()
	return s, nil
}

// Serve starts the MCP server on stdio and blocks until shutdown
func (s *Server) Serve(ctx context.Context) error {
	defer func() { _ = s.store.Close() }()
	s.logger.Info("mcp server starting",
		zap.String("name", ServerName),
		zap.String("version", ServerVersion))
	return server.ServeStdio(s.mcp)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(indexRepositoryTool(), s.handleIndexRepository)
	s.mcp.AddTool(searchCodeTool(), s.handleSearchCode)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
	s.mcp.AddTool(clearIndexTool(), s.handleClearIndex)
}
