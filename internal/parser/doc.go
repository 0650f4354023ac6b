// Package parser extracts language-agnostic structure from source files.
//
// Parsing is a chain of strategies tried in a fixed order: the strategy
// recommended for the file's language first, then every other available
// strategy once. Each attempt yields a tagged result (Attempt) instead of
// unwinding the stack, and the first success wins. When every strategy
// fails the parser still returns a result: a single fallback chunk holding
// a prefix of the file and an error message in the metadata.
//
// Strategies:
//
//   - syntax_tree: gated on a working tree-sitter backend (see Capabilities).
//     Declarations are located with the same pattern families as regex.
//   - regex: per-language regular expressions for functions, classes and
//     imports. Languages without a family succeed with no declarations.
//   - lines: no structure at all; the file is chunked in fixed windows.
//
// # Usage
//
//	caps := parser.DetectCapabilities()
//	p := parser.New(caps, parser.WithLogger(logger))
//	meta, chunks := p.Parse("app/main.py", content)
//
// Parse never returns an error. ParseFile reads from disk and only fails
// when the file cannot be read.
package parser
