//go:build windows

package grammar

import (
	sitter "github.com/tree-sitter/go-tree-sitter"
)

// LoadDynamic always fails on Windows; the native frontend covers it.
func LoadDynamic(path, language string) (*sitter.Language, error) {
	return nil, &LoadError{Path: path, Symbol: SymbolName(language), Reason: "dynamic grammars are not supported on windows"}
}
