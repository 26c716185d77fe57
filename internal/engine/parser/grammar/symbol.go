package grammar

import (
	"fmt"
	"strings"
)

// SymbolName is the C entry point a tree-sitter grammar exports for language,
// e.g. "system-verilog" -> "tree_sitter_system_verilog".
func SymbolName(language string) string {
	name := strings.ToLower(strings.TrimSpace(language))
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
	return "tree_sitter_" + name
}

// LoadError reports a grammar library that could not be opened.
type LoadError struct {
	Path   string
	Symbol string
	Reason string
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s from %s: %s", e.Symbol, e.Path, e.Reason)
}
