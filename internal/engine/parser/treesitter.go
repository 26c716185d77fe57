package parser

import (
	"context"
	"os"
	"strings"

	"svorder/internal/core/errors"
	"svorder/internal/engine/parser/grammar"

	"fortio.org/safecast"
	sitter "github.com/tree-sitter/go-tree-sitter"
)

// TreeSitterConfig selects a grammar shared object and says which of its node
// kinds carry the symbol facts.
type TreeSitterConfig struct {
	GrammarPath string
	Manifest    string // optional; verified before loading when set
	Language    string
	NodeKinds   map[string]string // CST kind -> NodeKind name
	IdentKinds  []string
	EscapedKind string
}

// DefaultTreeSitterConfig matches the node names of tree-sitter-verilog.
func DefaultTreeSitterConfig() TreeSitterConfig {
	return TreeSitterConfig{
		Language: "verilog",
		NodeKinds: map[string]string{
			"module_declaration":    KindModuleDeclaration.String(),
			"module_instantiation":  KindModuleInstantiation.String(),
			"package_declaration":   KindPackageDeclaration.String(),
			"class_declaration":     KindClassDeclaration.String(),
			"package_import_item":   KindPackageImportItem.String(),
			"class_scope":           KindClassScope.String(),
			"package_scope":         KindClassScope.String(),
			"interface_declaration": KindInterfaceDeclaration.String(),
			"program_declaration":   KindProgramDeclaration.String(),
		},
		IdentKinds:  []string{"simple_identifier", "escaped_identifier"},
		EscapedKind: "escaped_identifier",
	}
}

// ParseNodeKind maps a NodeKind name back to its value.
func ParseNodeKind(name string) (NodeKind, bool) {
	for i, n := range kindNames {
		if NodeKind(i) != KindInvalid && strings.EqualFold(n, name) {
			return NodeKind(i), true
		}
	}
	return KindInvalid, false
}

type kindMapping struct {
	kinds   map[string]NodeKind
	idents  map[string]IdentForm
	escaped string
}

func newKindMapping(cfg TreeSitterConfig) (*kindMapping, error) {
	m := &kindMapping{
		kinds:   make(map[string]NodeKind, len(cfg.NodeKinds)),
		idents:  make(map[string]IdentForm, len(cfg.IdentKinds)),
		escaped: cfg.EscapedKind,
	}
	for cst, name := range cfg.NodeKinds {
		kind, ok := ParseNodeKind(name)
		if !ok {
			return nil, errors.Newf(errors.CodeValidationError, "unknown node kind %q for %q", name, cst)
		}
		m.kinds[cst] = kind
	}
	if len(m.kinds) == 0 {
		return nil, errors.New(errors.CodeValidationError, "tree-sitter node kind map is empty")
	}
	if len(cfg.IdentKinds) == 0 {
		return nil, errors.New(errors.CodeValidationError, "tree-sitter identifier kinds are empty")
	}
	for _, k := range cfg.IdentKinds {
		m.idents[k] = IdentSimple
	}
	if cfg.EscapedKind != "" {
		m.idents[cfg.EscapedKind] = IdentEscaped
	}
	return m, nil
}

func (m *kindMapping) kind(cst string) NodeKind {
	return m.kinds[cst]
}

func (m *kindMapping) ident(cst string) (IdentForm, bool) {
	form, ok := m.idents[cst]
	return form, ok
}

// TreeSitterFrontend parses with a grammar loaded at run time. It performs no
// preprocessing, so the defines table is returned unchanged.
type TreeSitterFrontend struct {
	pool    *ParserPool
	mapping *kindMapping
}

func NewTreeSitterFrontend(cfg TreeSitterConfig) (*TreeSitterFrontend, error) {
	mapping, err := newKindMapping(cfg)
	if err != nil {
		return nil, err
	}
	path := cfg.GrammarPath
	if cfg.Manifest != "" {
		manifest, err := grammar.LoadManifest(cfg.Manifest)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeValidationError, "load grammar manifest")
		}
		if err := grammar.Verify(manifest); err != nil {
			return nil, errors.Wrap(err, errors.CodeValidationError, "verify grammar")
		}
		path = manifest.Artifact.SharedObjectPath
	}
	if path == "" {
		return nil, errors.New(errors.CodeValidationError, "tree-sitter frontend needs grammar_path or manifest")
	}
	lang, err := grammar.LoadDynamic(path, cfg.Language)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeNotSupported, "load grammar")
	}
	return &TreeSitterFrontend{pool: NewParserPool(lang), mapping: mapping}, nil
}

func (f *TreeSitterFrontend) Name() string { return FrontendTreeSitter }

func (f *TreeSitterFrontend) Parse(ctx context.Context, path string, defines Defines, _ []string) (*Tree, Defines, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, errors.AddContext(errors.Wrap(err, errors.CodeNotFound, "read source"), errors.CtxPath, path)
	}

	sp := f.pool.Get()
	defer f.pool.Put(sp)
	ts := sp.Parse(src, nil)
	if ts == nil {
		return nil, nil, errors.New(errors.CodeInternal, "tree-sitter returned no tree")
	}
	defer ts.Close()

	root := ts.RootNode()
	if root.HasError() {
		bad := firstError(root)
		return nil, nil, errors.Newf(errors.CodeParse, "syntax error near %q", nodeText(src, bad, 40)).
			WithContext(errors.CtxPath, path).
			WithContext(errors.CtxLine, int(bad.StartPosition().Row)+1)
	}

	tree := newTreeWithSource(path, src)
	if err := f.walk(tree, root); err != nil {
		return nil, nil, err
	}
	return tree, defines, nil
}

// walk visits the CST in pre-order with an explicit stack. Mapped nodes are
// recorded and their children still visited, since declarations contain
// instantiations and imports.
func (f *TreeSitterFrontend) walk(tree *Tree, root *sitter.Node) error {
	stack := []*sitter.Node{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if kind := f.mapping.kind(n.Kind()); kind != KindInvalid {
			line := int(n.StartPosition().Row) + 1
			id, err := f.identOf(n)
			if err != nil {
				return errors.AddContext(errors.AddContext(err, errors.CtxPath, tree.Path), errors.CtxLine, line)
			}
			if id == nil {
				return errors.Newf(errors.CodeMalformedTree, "%s without identifier", kind).
					WithContext(errors.CtxPath, tree.Path).
					WithContext(errors.CtxLine, line).
					WithContext(errors.CtxNodeKind, n.Kind())
			}
			tree.Push(Node{Kind: kind, Ident: id, File: tree.Path, Line: line})
		}

		for i := int(n.ChildCount()) - 1; i >= 0; i-- {
			if c := n.Child(uint(i)); c != nil {
				stack = append(stack, c)
			}
		}
	}
	return nil
}

// identOf returns the first identifier in n's subtree, depth first, or nil
// when there is none.
func (f *TreeSitterFrontend) identOf(n *sitter.Node) (*Ident, error) {
	stack := []*sitter.Node{n}
	for len(stack) > 0 {
		c := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if form, ok := f.mapping.ident(c.Kind()); ok {
			return spanIdent(form, c.StartByte(), c.EndByte())
		}
		for i := int(c.ChildCount()) - 1; i >= 0; i-- {
			if cc := c.Child(uint(i)); cc != nil {
				stack = append(stack, cc)
			}
		}
	}
	return nil, nil
}

func spanIdent(form IdentForm, start, end uint) (*Ident, error) {
	if end < start {
		return nil, errors.Newf(errors.CodeMalformedTree, "identifier span %d..%d is inverted", start, end)
	}
	off, err := safecast.Conv[uint32](start)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeMalformedTree, "identifier offset out of range")
	}
	n, err := safecast.Conv[uint32](end - start)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeMalformedTree, "identifier length out of range")
	}
	return &Ident{Form: form, Off: off, Len: n}, nil
}

func firstError(n *sitter.Node) *sitter.Node {
	if n.IsError() || n.IsMissing() {
		return n
	}
	for i := uint(0); i < n.ChildCount(); i++ {
		c := n.Child(i)
		if c != nil && c.HasError() {
			return firstError(c)
		}
	}
	return n
}

func nodeText(src []byte, n *sitter.Node, limit int) string {
	start, end := n.StartByte(), n.EndByte()
	if end > uint(len(src)) || start > end {
		return ""
	}
	text := string(src[start:end])
	if len(text) > limit {
		text = text[:limit] + "..."
	}
	return strings.TrimSpace(text)
}
