package symbols

import (
	"svorder/internal/core/errors"
	"svorder/internal/engine/parser"
)

// Namespace separates module-like names (modules, interfaces, programs) from
// package-like names (packages, classes).
type Namespace string

const (
	NamespaceModule  Namespace = "module"
	NamespacePackage Namespace = "package"
)

// Symbols is what one file defines and uses in each namespace.
type Symbols struct {
	ModulesDefined  Set
	ModulesUsed     Set
	PackagesDefined Set
	PackagesUsed    Set
}

func New() Symbols {
	return Symbols{
		ModulesDefined:  make(Set),
		ModulesUsed:     make(Set),
		PackagesDefined: make(Set),
		PackagesUsed:    make(Set),
	}
}

// Extract walks tree once and sorts every recognized node into one of the four
// sets. A node whose identifier cannot be resolved means the frontend broke its
// contract; the file is rejected rather than silently losing an edge.
func Extract(tree *parser.Tree) (Symbols, error) {
	syms := New()
	for n := range tree.All() {
		name, err := identName(tree, n)
		if err != nil {
			return Symbols{}, err
		}
		switch n.Kind {
		case parser.KindModuleInstantiation:
			syms.ModulesUsed.Add(name)
		case parser.KindModuleDeclaration, parser.KindInterfaceDeclaration, parser.KindProgramDeclaration:
			syms.ModulesDefined.Add(name)
		case parser.KindPackageDeclaration, parser.KindClassDeclaration:
			syms.PackagesDefined.Add(name)
		case parser.KindPackageImportItem, parser.KindClassScope, parser.KindClassExtends:
			syms.PackagesUsed.Add(name)
		default:
			return Symbols{}, malformed(tree, n, "unexpected node kind")
		}
	}
	return syms, nil
}

func identName(tree *parser.Tree, n parser.Node) (string, error) {
	if n.Ident == nil {
		return "", malformed(tree, n, "node has no identifier")
	}
	name, ok := tree.Text(*n.Ident)
	if !ok {
		return "", malformed(tree, n, "identifier does not resolve")
	}
	return name, nil
}

func malformed(tree *parser.Tree, n parser.Node, msg string) error {
	file := n.File
	if file == "" {
		file = tree.Path
	}
	return errors.Newf(errors.CodeMalformedTree, "%s: %s", n.Kind, msg).
		WithContext(errors.CtxPath, file).
		WithContext(errors.CtxLine, n.Line).
		WithContext(errors.CtxNodeKind, n.Kind.String())
}

// Each yields every (namespace, role, name) triple in a stable order. role is
// "defined" or "used".
func (s Symbols) Each(yield func(ns Namespace, role, name string) bool) {
	groups := []struct {
		ns   Namespace
		role string
		set  Set
	}{
		{NamespaceModule, "defined", s.ModulesDefined},
		{NamespaceModule, "used", s.ModulesUsed},
		{NamespacePackage, "defined", s.PackagesDefined},
		{NamespacePackage, "used", s.PackagesUsed},
	}
	for _, g := range groups {
		for _, name := range g.set.Sorted() {
			if !yield(g.ns, g.role, name) {
				return
			}
		}
	}
}
