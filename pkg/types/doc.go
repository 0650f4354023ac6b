// Package types provides shared type definitions for the ingestion service.
//
// This package defines the language-agnostic domain types that flow between the
// parser, the chunker, the ingestion pipeline and the index backends.
//
// # Core Types
//
// FileMetadata describes one parsed file: its language, the declarations found
// in it, its import targets, a content hash and the parsing strategy that
// produced the result:
//
//	meta := &types.FileMetadata{
//	    Language:     "python",
//	    FilePath:     "app/main.py",
//	    Functions:    []types.Declaration{{Name: "main", Kind: types.DeclFunction, StartLine: 4}},
//	    StrategyUsed: types.StrategyRegex,
//	}
//
// Chunk is a bounded slice of a file's text and the unit sent to an index:
//
//	chunk := types.Chunk{
//	    ID:        types.StructureChunkID("app/main.py", types.DeclFunction, "main", 2),
//	    Content:   body,
//	    StartLine: 2,
//	    EndLine:   26,
//	    Strategy:  types.StrategyRegex,
//	}
//
// # Line numbering
//
// Line numbers are 0-based and chunk ranges are half-open: a chunk with
// StartLine 80 and EndLine 120 covers lines 80 through 119.
//
// # Identifiers
//
// Chunk identifiers are derived from the file path, the addressing scheme of
// the producing chunker and the chunk position. Re-parsing unchanged content
// reproduces the same identifiers, which lets index backends upsert instead of
// duplicating.
package types
