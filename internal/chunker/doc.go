// Package chunker divides parsed source files into chunks for indexing.
//
// Two modes exist, chosen by whether the parser found any declarations:
//
//   - Structure-aware: one chunk per function or class. The end of a
//     declaration is estimated as start+FunctionSpan for functions and
//     start+ClassSpan for classes, and the window is widened by ContextLines
//     on both sides, clamped to the file. Overlapping windows are kept as-is.
//   - Fixed-window: windows of WindowSize lines advancing by
//     WindowSize-WindowOverlap lines. The final window is emitted even when
//     it is shorter than WindowSize.
//
// # Basic Usage
//
//	c := chunker.New()
//	lines := chunker.SplitLines(content)
//	chunks := c.Chunk(meta, lines)
//
// # Identifiers
//
// Structure-aware chunks are addressed by file path, declaration kind, name
// and window start; fixed-window chunks by file path and window start. The
// same content always yields the same identifiers, so index backends can
// upsert chunks across re-ingestion runs.
//
// # Example: 120-line file without declarations
//
//	chunks := chunker.New().ChunkLines("notes.txt", "text", lines, types.StrategyLines)
//	// chunks cover [0,50) [40,90) [80,120)
package chunker
