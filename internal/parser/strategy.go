package parser

import (
	"bytes"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/dshills/codeingest/pkg/types"
)

// Structure is what a strategy extracts from one file
type Structure struct {
	Functions []types.Declaration
	Classes   []types.Declaration
	Imports   []string
}

// Extractor runs one parsing strategy over file content
type Extractor interface {
	Extract(language string, content []byte) (*Structure, error)
}

// ExtractorFunc adapts a function to the Extractor interface
type ExtractorFunc func(language string, content []byte) (*Structure, error)

// Extract calls f(language, content)
func (f ExtractorFunc) Extract(language string, content []byte) (*Structure, error) {
	return f(language, content)
}

// syntaxTreeExtractor is gated on the tree-sitter probe. Declarations are
// located with the regex families.
type syntaxTreeExtractor struct {
	caps *Capabilities
}

func (e *syntaxTreeExtractor) Extract(language string, content []byte) (*Structure, error) {
	if !e.caps.AdvancedAvailable() {
		return nil, ErrAdvancedUnavailable
	}
	if !richSupport[language] {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, language)
	}
	return extractPatterns(language, content)
}

type regexExtractor struct{}

func (regexExtractor) Extract(language string, content []byte) (*Structure, error) {
	return extractPatterns(language, content)
}

type lineExtractor struct{}

func (lineExtractor) Extract(_ string, content []byte) (*Structure, error) {
	if isBinary(content) {
		return nil, ErrBinaryContent
	}
	return &Structure{}, nil
}

// defaultExtractors returns the built-in extractor for every strategy
func defaultExtractors(caps *Capabilities) map[types.Strategy]Extractor {
	return map[types.Strategy]Extractor{
		types.StrategySyntaxTree: &syntaxTreeExtractor{caps: caps},
		types.StrategyRegex:      regexExtractor{},
		types.StrategyLines:      lineExtractor{},
	}
}

func extractPatterns(language string, content []byte) (*Structure, error) {
	if isBinary(content) {
		return nil, ErrBinaryContent
	}

	family, ok := families[language]
	if !ok {
		return &Structure{}, nil
	}

	return &Structure{
		Functions: findDeclarations(family.functions, content, types.DeclFunction),
		Classes:   findDeclarations(family.classes, content, types.DeclClass),
		Imports:   findImports(language, family.imports, content),
	}, nil
}

// findDeclarations returns one declaration per match, in match order. The
// start line is the number of newlines preceding the match.
func findDeclarations(re *regexp.Regexp, content []byte, kind types.DeclKind) []types.Declaration {
	if re == nil {
		return nil
	}

	var decls []types.Declaration
	line, offset := 0, 0
	for _, m := range re.FindAllSubmatchIndex(content, -1) {
		line += bytes.Count(content[offset:m[0]], []byte{'\n'})
		offset = m[0]
		decls = append(decls, types.Declaration{
			Name:      string(content[m[2]:m[3]]),
			Kind:      kind,
			StartLine: line,
		})
	}
	return decls
}

// findImports returns the deduplicated import targets, sorted
func findImports(language string, patterns []*regexp.Regexp, content []byte) []string {
	seen := make(map[string]struct{})
	add := func(target string) {
		target = strings.TrimSpace(target)
		if target != "" {
			seen[target] = struct{}{}
		}
	}

	for _, re := range patterns {
		for _, m := range re.FindAllSubmatch(content, -1) {
			add(string(m[1]))
		}
	}

	if language == "go" {
		for _, block := range goBlockImport.FindAllSubmatch(content, -1) {
			for _, m := range goQuoted.FindAllSubmatch(block[1], -1) {
				add(string(m[1]))
			}
		}
	}

	if len(seen) == 0 {
		return nil
	}
	imports := make([]string, 0, len(seen))
	for target := range seen {
		imports = append(imports, target)
	}
	sort.Strings(imports)
	return imports
}

func isBinary(content []byte) bool {
	return bytes.IndexByte(content, 0) >= 0
}
