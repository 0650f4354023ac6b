package mcp

import (
	"context"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/dshills/codeingest/internal/ingest"
	"github.com/dshills/codeingest/internal/storage"
)

const (
	// ServerName is the MCP server name
	ServerName = "ingestd"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp      *server.MCPServer
	pipeline *ingest.Pipeline
	index    storage.VectorIndex
	ledger   storage.Ledger
	logger   *slog.Logger
}

// Config holds the components the tools are served from
type Config struct {
	Pipeline *ingest.Pipeline
	Index    storage.VectorIndex
	Ledger   storage.Ledger
	Version  string
	Logger   *slog.Logger
}

// NewServer creates a new MCP server instance with every tool registered
func NewServer(cfg Config) *Server {
	version := cfg.Version
	if version == "" {
		version = ServerVersion
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		mcp:      server.NewMCPServer(ServerName, version, server.WithToolCapabilities(false)),
		pipeline: cfg.Pipeline,
		index:    cfg.Index,
		ledger:   cfg.Ledger,
		logger:   logger,
	}
	s.registerTools()
	return s
}

// Serve runs the MCP server on stdio until ctx is cancelled or the client disconnects
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("serving MCP on stdio", "name", ServerName)
	return server.NewStdioServer(s.mcp).Listen(ctx, os.Stdin, os.Stdout)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(ingestProjectTool(), s.handleIngestProject)
	s.mcp.AddTool(ingestionStatusTool(), s.handleIngestionStatus)
	s.mcp.AddTool(listJobsTool(), s.handleListJobs)
	s.mcp.AddTool(ingestFileTool(), s.handleIngestFile)
	s.mcp.AddTool(parserCapabilitiesTool(), s.handleParserCapabilities)
	s.mcp.AddTool(searchCodeTool(), s.handleSearchCode)
	s.mcp.AddTool(projectStatsTool(), s.handleProjectStats)
	s.mcp.AddTool(deleteProjectTool(), s.handleDeleteProject)
}
