//go:build !cgo

package parser

import "fmt"

// probeSyntaxTree always fails: tree-sitter grammars need cgo
func probeSyntaxTree() error {
	return fmt.Errorf("%w: built without cgo", ErrAdvancedUnavailable)
}
