package parser

import (
	"iter"
	"strings"

	"svorder/internal/core/errors"

	"fortio.org/safecast"
)

// NodeKind enumerates the syntax-tree nodes that carry cross-file symbol
// facts. Everything else the frontends see is discarded.
type NodeKind uint8

const (
	KindInvalid NodeKind = iota
	KindModuleDeclaration
	KindModuleInstantiation
	KindPackageDeclaration
	KindClassDeclaration
	KindPackageImportItem
	KindClassScope
	KindInterfaceDeclaration
	KindProgramDeclaration
	KindClassExtends
)

var kindNames = [...]string{
	KindInvalid:              "Invalid",
	KindModuleDeclaration:    "ModuleDeclaration",
	KindModuleInstantiation:  "ModuleInstantiation",
	KindPackageDeclaration:   "PackageDeclaration",
	KindClassDeclaration:     "ClassDeclaration",
	KindPackageImportItem:    "PackageImportItem",
	KindClassScope:           "ClassScope",
	KindInterfaceDeclaration: "InterfaceDeclaration",
	KindProgramDeclaration:   "ProgramDeclaration",
	KindClassExtends:         "ClassExtends",
}

func (k NodeKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Invalid"
}

// IdentForm distinguishes the two lexical forms of an identifier.
type IdentForm uint8

const (
	IdentSimple IdentForm = iota
	IdentEscaped
)

// Ident locates an identifier's text inside its Tree's source buffer.
type Ident struct {
	Form IdentForm
	Off  uint32
	Len  uint32
}

type Node struct {
	Kind  NodeKind
	Ident *Ident // nil when the frontend could not locate one
	File  string // file the node came from; differs from Tree.Path for includes
	Line  int
}

// Tree is the flattened syntax tree of one compilation unit. Nodes are kept in
// source order; Text resolves identifiers against the expanded source.
type Tree struct {
	Path   string
	source []byte
	nodes  []Node
}

func NewTree(path string) *Tree {
	return &Tree{Path: path}
}

// newTreeWithSource is used by frontends whose identifiers point into the
// original file bytes rather than an expansion buffer.
func newTreeWithSource(path string, source []byte) *Tree {
	return &Tree{Path: path, source: source}
}

// All yields every node in source order.
func (t *Tree) All() iter.Seq[Node] {
	return func(yield func(Node) bool) {
		for _, n := range t.nodes {
			if !yield(n) {
				return
			}
		}
	}
}

func (t *Tree) Len() int { return len(t.nodes) }

// Text returns the identifier's name. Escaped identifiers lose their leading
// backslash and terminating white space so that `\leaf ` and `leaf` match.
func (t *Tree) Text(id Ident) (string, bool) {
	end := uint64(id.Off) + uint64(id.Len)
	if id.Len == 0 || end > uint64(len(t.source)) {
		return "", false
	}
	text := string(t.source[id.Off:end])
	if id.Form == IdentEscaped {
		text = strings.TrimRight(strings.TrimPrefix(text, `\`), " \t\r\n")
	}
	if text == "" {
		return "", false
	}
	return text, true
}

// AddIdent stores text in the tree's buffer and returns an Ident for it.
func (t *Tree) AddIdent(form IdentForm, text string) (*Ident, error) {
	off, err := safecast.Conv[uint32](len(t.source))
	if err != nil {
		return nil, identRangeError(t.Path, err)
	}
	n, err := safecast.Conv[uint32](len(text))
	if err != nil {
		return nil, identRangeError(t.Path, err)
	}
	t.source = append(t.source, text...)
	t.source = append(t.source, ' ')
	return &Ident{Form: form, Off: off, Len: n}, nil
}

// identRangeError reports an identifier whose offset or length does not fit
// an Ident.
func identRangeError(path string, err error) error {
	return errors.AddContext(errors.Wrap(err, errors.CodeMalformedTree, "identifier out of range"), errors.CtxPath, path)
}

// Push appends a node; frontends call it in source order.
func (t *Tree) Push(n Node) {
	t.nodes = append(t.nodes, n)
}

// Macro is a `define as seen by the preprocessor.
type Macro struct {
	Name    string
	HasArgs bool
	Params  []MacroParam
	Body    string
	File    string
	Line    int
}

type MacroParam struct {
	Name       string
	Default    string
	HasDefault bool
}

// Defines maps macro names to their definitions.
type Defines map[string]*Macro

func (d Defines) Clone() Defines {
	out := make(Defines, len(d))
	for k, v := range d {
		m := *v
		m.Params = append([]MacroParam(nil), v.Params...)
		out[k] = &m
	}
	return out
}

// ParseDefine turns a command-line style NAME[=VALUE] into an object-like
// macro.
func ParseDefine(spec string) (*Macro, bool) {
	name, value, _ := strings.Cut(strings.TrimSpace(spec), "=")
	name = strings.TrimSpace(name)
	if !isIdentifier(name) {
		return nil, false
	}
	return &Macro{Name: name, Body: strings.TrimSpace(value), File: "<command-line>"}, true
}

// DefinesFrom builds a Defines table from NAME[=VALUE] entries, reporting the
// first malformed one.
func DefinesFrom(specs []string) (Defines, string, bool) {
	out := make(Defines, len(specs))
	for _, spec := range specs {
		m, ok := ParseDefine(spec)
		if !ok {
			return nil, spec, false
		}
		out[m.Name] = m
	}
	return out, "", true
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isIdentStart(c) || (i > 0 && isIdentPart(c)) {
			continue
		}
		return false
	}
	return true
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9') || c == '$'
}
