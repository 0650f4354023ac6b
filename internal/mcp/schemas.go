package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

var readOnlyAnnotation = mcp.ToolAnnotation{
	ReadOnlyHint:    mcp.ToBoolPtr(true),
	DestructiveHint: mcp.ToBoolPtr(false),
	IdempotentHint:  mcp.ToBoolPtr(true),
	OpenWorldHint:   mcp.ToBoolPtr(false),
}

// ingestProjectTool returns the tool definition for ingest_project
func ingestProjectTool() mcp.Tool {
	return mcp.Tool{
		Name:        "ingest_project",
		Description: "Start ingesting a source tree into the chunk index. Returns a job id to poll with ingestion_status.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"project_path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to the project root directory",
				},
				"project_id": map[string]interface{}{
					"type":        "string",
					"description": "Identifier the project's chunks and ledger entries are stored under",
				},
				"max_workers": map[string]interface{}{
					"type":        "integer",
					"description": "Resize the store worker pool before starting (1-64)",
					"minimum":     1,
					"maximum":     MaxWorkersLimit,
				},
			},
			Required: []string{"project_path", "project_id"},
		},
	}
}

// ingestionStatusTool returns the tool definition for ingestion_status
func ingestionStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "ingestion_status",
		Description: "Get the status, counters, strategy usage and errors of an ingestion job",
		Annotations: readOnlyAnnotation,
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"job_id": map[string]interface{}{
					"type":        "string",
					"description": "Job id returned by ingest_project",
				},
			},
			Required: []string{"job_id"},
		},
	}
}

// listJobsTool returns the tool definition for list_jobs
func listJobsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "list_jobs",
		Description: "List retained ingestion jobs, newest first",
		Annotations: readOnlyAnnotation,
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// ingestFileTool returns the tool definition for ingest_file
func ingestFileTool() mcp.Tool {
	return mcp.Tool{
		Name:        "ingest_file",
		Description: "Parse and store a single file synchronously",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"content": map[string]interface{}{
					"type":        "string",
					"description": "Full file content",
				},
				"file_path": map[string]interface{}{
					"type":        "string",
					"description": "Path used for language detection and as the ledger key",
				},
				"project_id": map[string]interface{}{
					"type":        "string",
					"description": "Project the file belongs to",
				},
			},
			Required: []string{"content", "file_path", "project_id"},
		},
	}
}

// parserCapabilitiesTool returns the tool definition for parser_capabilities
func parserCapabilitiesTool() mcp.Tool {
	return mcp.Tool{
		Name:        "parser_capabilities",
		Description: "Report whether the advanced parser is available and which strategies are supported",
		Annotations: readOnlyAnnotation,
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// searchCodeTool returns the tool definition for search_code
func searchCodeTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_code",
		Description: "Find the chunks of an ingested project most similar to a query",
		Annotations: readOnlyAnnotation,
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"project_id": map[string]interface{}{
					"type":        "string",
					"description": "Project to search",
				},
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search query (natural language, code or keywords)",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results to return (1-100)",
					"default":     DefaultSearchLimit,
					"minimum":     1,
					"maximum":     MaxSearchLimit,
				},
			},
			Required: []string{"project_id", "query"},
		},
	}
}

// projectStatsTool returns the tool definition for project_stats
func projectStatsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "project_stats",
		Description: "Get ledger coverage for a project and its most recently indexed files",
		Annotations: readOnlyAnnotation,
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"project_id": map[string]interface{}{
					"type":        "string",
					"description": "Project to report on",
				},
				"recent_limit": map[string]interface{}{
					"type":        "integer",
					"description": "Number of recently indexed files to list (0-100)",
					"default":     DefaultRecentLimit,
					"minimum":     0,
					"maximum":     MaxSearchLimit,
				},
			},
			Required: []string{"project_id"},
		},
	}
}

// deleteProjectTool returns the tool definition for delete_project
func deleteProjectTool() mcp.Tool {
	return mcp.Tool{
		Name:        "delete_project",
		Description: "Remove a project's indexed chunks and ledger entries",
		Annotations: mcp.ToolAnnotation{
			ReadOnlyHint:    mcp.ToBoolPtr(false),
			DestructiveHint: mcp.ToBoolPtr(true),
			IdempotentHint:  mcp.ToBoolPtr(true),
			OpenWorldHint:   mcp.ToBoolPtr(false),
		},
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"project_id": map[string]interface{}{
					"type":        "string",
					"description": "Project to delete",
				},
			},
			Required: []string{"project_id"},
		},
	}
}
