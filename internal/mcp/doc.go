// Package mcp implements the Model Context Protocol (MCP) server for ingestd.
//
// The server exposes the ingestion pipeline as tools:
//   - ingest_project: Start an asynchronous ingestion job for a project tree
//   - ingestion_status: Poll a job's counters, strategy histogram and errors
//   - list_jobs: List retained jobs, newest first
//   - ingest_file: Parse and store a single file supplied inline
//   - parser_capabilities: Report which parsing strategies are usable
//   - search_code: Query a project's chunk index
//   - project_stats: Ledger coverage and recently indexed files
//   - delete_project: Remove a project's chunks and ledger entries
//
// # Basic Usage
//
// The server is started by the serve command and speaks JSON-RPC over stdio:
//
//	ingestd serve
//
// Logs go to stderr; stdout carries protocol messages only.
//
// # Tool: ingest_project
//
//	Request:
//	{
//	  "name": "ingest_project",
//	  "arguments": {
//	    "project_path": "/path/to/project",
//	    "project_id": "my-project",
//	    "max_workers": 4
//	  }
//	}
//
//	Response:
//	{
//	  "job_id": "7d6c1f1e-...",
//	  "capabilities": {
//	    "advanced_parser_available": true,
//	    "supported_strategies": ["syntax_tree", "regex", "lines"]
//	  }
//	}
//
// # Tool: ingestion_status
//
//	Request:
//	{
//	  "name": "ingestion_status",
//	  "arguments": {"job_id": "7d6c1f1e-..."}
//	}
//
//	Response:
//	{
//	  "job_id": "7d6c1f1e-...",
//	  "status": "completed",
//	  "total_files": 2,
//	  "processed_files": 2,
//	  "successful_files": 1,
//	  "failed_files": 1,
//	  "total_chunks": 1,
//	  "strategies_used": {"regex": 1},
//	  "errors": ["/path/to/project/b.py: permission denied"]
//	}
//
// # Error Handling
//
// Invalid arguments, unknown jobs and concurrent jobs for one project are
// returned as *MCPError values carrying a JSON-RPC error code.
package mcp
