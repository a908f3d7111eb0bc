package mcp

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/dshills/caresearch/internal/indexer"
	"github.com/dshills/caresearch/internal/logger"
	"github.com/dshills/caresearch/internal/records"
	"github.com/dshills/caresearch/internal/searcher"
)

const (
	// ServerName is the MCP server name
	ServerName = "caresearch"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
	// DefaultPageSize is used when a search omits page_size and Options leaves it unset
	DefaultPageSize = 20
)

// Options configures a Server.
type Options struct {
	DefaultPageSize int
	Logger          *zap.Logger
}

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp      *server.MCPServer
	searcher *searcher.Searcher
	records  *records.Service
	index    *indexer.Coordinator
	logger   *zap.Logger

	defaultPageSize int
}

// NewServer creates a new MCP server instance
func NewServer(srch *searcher.Searcher, rec *records.Service, idx *indexer.Coordinator, opts Options) (*Server, error) {
	if srch == nil || rec == nil || idx == nil {
		return nil, fmt.Errorf("searcher, records and index are required")
	}
	if opts.DefaultPageSize <= 0 {
		opts.DefaultPageSize = DefaultPageSize
	}

	s := &Server{
		mcp:             server.NewMCPServer(ServerName, ServerVersion),
		searcher:        srch,
		records:         rec,
		index:           idx,
		logger:          logger.OrNop(opts.Logger).Named("mcp"),
		defaultPageSize: opts.DefaultPageSize,
	}

	// Register tools
	if err := s.registerTools(); err != nil {
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}

	return s, nil
}

// Serve starts the MCP server on stdio and blocks until the client
// disconnects. The caller owns the store and the index.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("serving MCP on stdio")
	return server.ServeStdio(s.mcp)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() error {
	s.mcp.AddTool(searchRecordsTool(), s.handleSearchRecords)
	s.mcp.AddTool(reindexRecordTool(), s.handleReindexRecord)
	s.mcp.AddTool(rebuildIndexTool(), s.handleRebuildIndex)
	s.mcp.AddTool(indexStatusTool(), s.handleIndexStatus)

	return nil
}
