//go:build cgo

package parser

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

const probeSnippet = "def probe():\n    return 1\n"

// probeSyntaxTree loads the python grammar and parses a trivial snippet
func probeSyntaxTree() error {
	p := sitter.NewParser()
	p.SetLanguage(python.GetLanguage())

	tree, err := p.ParseCtx(context.Background(), nil, []byte(probeSnippet))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAdvancedUnavailable, err)
	}
	defer tree.Close()

	if tree.RootNode().HasError() {
		return fmt.Errorf("%w: probe snippet did not parse cleanly", ErrAdvancedUnavailable)
	}
	return nil
}
