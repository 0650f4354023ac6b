package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/codeingest/internal/ingest"
)

// MCP error codes
const (
	ErrorCodeInvalidParams       = -32602 // Invalid method parameters
	ErrorCodeInternalError       = -32603 // Internal JSON-RPC error
	ErrorCodeJobNotFound         = -32001 // Unknown job id
	ErrorCodeIngestionInProgress = -32002 // Another job is running for the project
	ErrorCodeEmptyQuery          = -32004 // Query parameter is empty
)

// Argument limits
const (
	DefaultSearchLimit = 10
	MaxSearchLimit     = 100
	DefaultRecentLimit = 10
	MaxWorkersLimit    = 64
)

// handleIngestProject handles the ingest_project tool invocation
func (s *Server) handleIngestProject(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path, err := requireString(args, "project_path")
	if err != nil {
		return nil, err
	}
	projectID, err := requireString(args, "project_id")
	if err != nil {
		return nil, err
	}

	if err := validatePath(path); err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid path", map[string]interface{}{
			"param":  "project_path",
			"reason": err.Error(),
		})
	}

	workers := getIntDefault(args, "max_workers", 0)
	if workers < 0 || workers > MaxWorkersLimit {
		return nil, newMCPError(ErrorCodeInvalidParams, fmt.Sprintf("max_workers must be between 1 and %d", MaxWorkersLimit), map[string]interface{}{
			"param": "max_workers",
			"value": workers,
		})
	}

	resp, err := s.pipeline.Submit(ctx, ingest.SubmitRequest{
		ProjectPath: path,
		ProjectID:   projectID,
		MaxWorkers:  workers,
	})
	if errors.Is(err, ingest.ErrJobInProgress) {
		return nil, newMCPError(ErrorCodeIngestionInProgress, "ingestion already in progress", map[string]interface{}{
			"project_id": projectID,
		})
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to submit ingestion", map[string]interface{}{
			"error": err.Error(),
		})
	}

	return mcp.NewToolResultText(formatJSON(resp)), nil
}

// handleIngestionStatus handles the ingestion_status tool invocation
func (s *Server) handleIngestionStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	jobID, err := requireString(args, "job_id")
	if err != nil {
		return nil, err
	}

	snap, err := s.pipeline.Status(jobID)
	if errors.Is(err, ingest.ErrJobNotFound) {
		return nil, newMCPError(ErrorCodeJobNotFound, "job not found", map[string]interface{}{
			"job_id": jobID,
		})
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get job status", map[string]interface{}{
			"error": err.Error(),
		})
	}

	return mcp.NewToolResultText(formatJSON(snap)), nil
}

// handleListJobs handles the list_jobs tool invocation
func (s *Server) handleListJobs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"jobs": s.pipeline.Jobs(),
	})), nil
}

// handleIngestFile handles the ingest_file tool invocation
func (s *Server) handleIngestFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	// Empty content is a valid (empty) file
	content, ok := args["content"].(string)
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "content parameter is required", map[string]interface{}{
			"param":  "content",
			"reason": "missing",
		})
	}
	filePath, err := requireString(args, "file_path")
	if err != nil {
		return nil, err
	}
	projectID, err := requireString(args, "project_id")
	if err != nil {
		return nil, err
	}

	resp, err := s.pipeline.IngestFile(ctx, ingest.FileRequest{
		Content:   content,
		FilePath:  filePath,
		ProjectID: projectID,
	})
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "ingestion failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	return mcp.NewToolResultText(formatJSON(resp)), nil
}

// handleParserCapabilities handles the parser_capabilities tool invocation
func (s *Server) handleParserCapabilities(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(formatJSON(s.pipeline.Capabilities())), nil
}

// handleSearchCode handles the search_code tool invocation
func (s *Server) handleSearchCode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	projectID, err := requireString(args, "project_id")
	if err != nil {
		return nil, err
	}

	query, ok := args["query"].(string)
	if !ok || query == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	limit := getIntDefault(args, "limit", DefaultSearchLimit)
	if limit < 1 || limit > MaxSearchLimit {
		return nil, newMCPError(ErrorCodeInvalidParams, "limit must be between 1 and 100", map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}

	hits, err := s.index.QuerySimilar(ctx, projectID, query, limit)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "search failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	results := make([]map[string]interface{}, 0, len(hits))
	for _, h := range hits {
		results = append(results, map[string]interface{}{
			"chunk_id": h.ChunkID,
			"content":  h.Content,
			"metadata": h.Metadata,
			"score":    h.Score,
		})
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"project_id":  projectID,
		"query":       query,
		"total_count": len(results),
		"results":     results,
	})), nil
}

// handleProjectStats handles the project_stats tool invocation
func (s *Server) handleProjectStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	projectID, err := requireString(args, "project_id")
	if err != nil {
		return nil, err
	}

	limit := getIntDefault(args, "recent_limit", DefaultRecentLimit)
	if limit < 0 || limit > MaxSearchLimit {
		return nil, newMCPError(ErrorCodeInvalidParams, "recent_limit must be between 0 and 100", map[string]interface{}{
			"param": "recent_limit",
			"value": limit,
		})
	}

	stats, err := s.ledger.ProjectStats(ctx, projectID)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get project stats", map[string]interface{}{
			"error": err.Error(),
		})
	}

	recent := make([]map[string]interface{}, 0)
	if limit > 0 {
		entries, err := s.ledger.RecentFiles(ctx, projectID, limit)
		if err != nil {
			return nil, newMCPError(ErrorCodeInternalError, "failed to list recent files", map[string]interface{}{
				"error": err.Error(),
			})
		}
		for _, e := range entries {
			recent = append(recent, map[string]interface{}{
				"file_path":       e.FilePath,
				"chunk_count":     e.ChunkCount,
				"content_hash":    e.ContentHash,
				"last_indexed_at": e.LastIndexedAt.Format("2006-01-02T15:04:05Z07:00"),
			})
		}
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"project_id":   projectID,
		"statistics":   stats,
		"recent_files": recent,
	})), nil
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
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

// requireString extracts a non-empty string parameter
func requireString(args map[string]interface{}, key string) (string, error) {
	val, ok := args[key].(string)
	if !ok || val == "" {
		return "", newMCPError(ErrorCodeInvalidParams, key+" parameter is required", map[string]interface{}{
			"param":  key,
			"reason": "missing or empty",
		})
	}
	return val, nil
}

// validatePath checks if a path is an accessible directory
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

	f, err := os.Open(path)
	if err != nil {
		return ErrPathNotReadable
	}
	_ = f.Close()

	return nil
}

// formatJSON formats a value as indented JSON
func formatJSON(data interface{}) string {
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

// Validation helpers

var (
	ErrPathRequired    = errors.New("path is required")
	ErrPathNotAbsolute = errors.New("path must be absolute")
	ErrPathNotFound    = errors.New("path does not exist")
	ErrPathNotReadable = errors.New("path is not readable")
	ErrNotDirectory    = errors.New("path is not a directory")
)

// handleDeleteProject handles the delete_project tool invocation
func (s *Server) handleDeleteProject(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	projectID, err := requireString(args, "project_id")
	if err != nil {
		return nil, err
	}

	err = s.pipeline.DeleteProject(ctx, projectID)
	if errors.Is(err, ingest.ErrJobInProgress) {
		return nil, newMCPError(ErrorCodeIngestionInProgress, "ingestion in progress", map[string]interface{}{
			"project_id": projectID,
		})
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to delete project", map[string]interface{}{
			"error": err.Error(),
		})
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"project_id": projectID,
		"deleted":    true,
	})), nil
}
