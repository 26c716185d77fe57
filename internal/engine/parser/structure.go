package parser

import (
	"svorder/internal/core/errors"
)

type tokenSource interface {
	Next() (Token, error)
}

type scope struct {
	kind        NodeKind
	end         string
	name        string
	open        Token
	inHeader    bool
	headerDepth int
	extern      bool
}

// structParser recognizes just enough SystemVerilog structure to find design
// unit declarations, instantiations, imports and class scopes. It does not
// build an expression or statement tree.
type structParser struct {
	src    tokenSource
	tree   *Tree
	buf    []Token
	hist   [3]Token // hist[0] is the most recently consumed token
	scopes []scope
}

func newStructParser(src tokenSource, tree *Tree) *structParser {
	return &structParser{src: src, tree: tree}
}

func (p *structParser) peek(n int) (Token, error) {
	for len(p.buf) <= n {
		if len(p.buf) > 0 && p.buf[len(p.buf)-1].Kind == TokEOF {
			return p.buf[len(p.buf)-1], nil
		}
		tok, err := p.src.Next()
		if err != nil {
			return Token{}, err
		}
		p.buf = append(p.buf, tok)
	}
	return p.buf[n], nil
}

func (p *structParser) advance() Token {
	tok := p.buf[0]
	if tok.Kind != TokEOF {
		p.buf = p.buf[1:]
	}
	p.hist[2], p.hist[1], p.hist[0] = p.hist[1], p.hist[0], tok
	return tok
}

func (p *structParser) top() *scope {
	if len(p.scopes) == 0 {
		return nil
	}
	return &p.scopes[len(p.scopes)-1]
}

func (p *structParser) emit(kind NodeKind, name Token) error {
	form := IdentSimple
	if name.Kind == TokEscapedIdent {
		form = IdentEscaped
	}
	id, err := p.tree.AddIdent(form, name.Text)
	if err != nil {
		return errors.AddContext(err, errors.CtxLine, name.Line)
	}
	p.tree.Push(Node{
		Kind:  kind,
		Ident: id,
		File:  name.File,
		Line:  name.Line,
	})
	return nil
}

func (p *structParser) run() error {
	for {
		tok, err := p.peek(0)
		if err != nil {
			return err
		}
		if tok.Kind == TokEOF {
			if s := p.top(); s != nil {
				return errors.Newf(errors.CodeParse, "missing %s for %s %q", s.end, s.open.Text, s.name).
					WithContext(errors.CtxPath, s.open.File).
					WithContext(errors.CtxLine, s.open.Line)
			}
			return nil
		}

		switch {
		case tok.Kind == TokKeyword:
			err = p.keyword(tok)
		case tok.isName():
			err = p.name(tok)
		case tok.isOp(";"):
			p.advance()
			p.endHeader()
		case tok.isOp("("):
			p.advance()
			if s := p.top(); s != nil && s.inHeader {
				s.headerDepth++
			}
		case tok.isOp(")"):
			p.advance()
			if s := p.top(); s != nil && s.inHeader && s.headerDepth > 0 {
				s.headerDepth--
			}
		default:
			p.advance()
		}
		if err != nil {
			return err
		}
	}
}

func (p *structParser) endHeader() {
	s := p.top()
	if s == nil || !s.inHeader || s.headerDepth > 0 {
		return
	}
	s.inHeader = false
	if s.extern {
		p.scopes = p.scopes[:len(p.scopes)-1]
	}
}

func (p *structParser) keyword(tok Token) error {
	switch tok.Text {
	case "module", "macromodule":
		return p.declaration(KindModuleDeclaration, "endmodule")
	case "program":
		return p.declaration(KindProgramDeclaration, "endprogram")
	case "package":
		return p.declaration(KindPackageDeclaration, "endpackage")
	case "interface":
		next, err := p.peek(1)
		if err != nil {
			return err
		}
		s := p.top()
		if next.isKeyword("class") || p.hist[0].isKeyword("virtual") || (s != nil && s.inHeader) {
			p.advance()
			return nil
		}
		return p.declaration(KindInterfaceDeclaration, "endinterface")
	case "class":
		if p.hist[0].isKeyword("typedef") || (p.hist[0].isKeyword("interface") && p.hist[1].isKeyword("typedef")) {
			p.advance()
			return nil
		}
		return p.declaration(KindClassDeclaration, "endclass")
	case "extends", "implements":
		return p.baseClasses()
	case "import", "export":
		return p.importItems()
	case "bind":
		return p.bind()
	case "endmodule", "endinterface", "endprogram", "endpackage", "endclass":
		return p.closeScope(tok)
	}
	p.advance()
	return nil
}

func (p *structParser) declaration(kind NodeKind, end string) error {
	extern := p.hist[0].isKeyword("extern")
	kw := p.advance()

	next, err := p.peek(0)
	if err != nil {
		return err
	}
	if next.isKeyword("static") || next.isKeyword("automatic") {
		p.advance()
		if next, err = p.peek(0); err != nil {
			return err
		}
	}

	sc := scope{kind: kind, end: end, open: kw, inHeader: true, extern: extern}
	if !next.isName() {
		if kind == KindProgramDeclaration && next.isOp(";") {
			// anonymous program
			p.scopes = append(p.scopes, sc)
			return nil
		}
		return errors.Newf(errors.CodeParse, "expected identifier after %q", kw.Text).
			WithContext(errors.CtxPath, kw.File).
			WithContext(errors.CtxLine, kw.Line)
	}
	p.advance()
	if err := p.emit(kind, next); err != nil {
		return err
	}
	sc.name = next.Text
	p.scopes = append(p.scopes, sc)
	return nil
}

func (p *structParser) closeScope(tok Token) error {
	s := p.top()
	if s == nil || s.end != tok.Text {
		return errors.Newf(errors.CodeParse, "unexpected %s", tok.Text).
			WithContext(errors.CtxPath, tok.File).
			WithContext(errors.CtxLine, tok.Line)
	}
	p.advance()
	p.scopes = p.scopes[:len(p.scopes)-1]
	return nil
}

// baseClasses handles `extends A` and `implements A, B`. Package-qualified
// bases are left to the class-scope rule.
func (p *structParser) baseClasses() error {
	p.advance()
	for {
		name, err := p.peek(0)
		if err != nil {
			return err
		}
		if !name.isName() {
			return nil
		}
		after, err := p.peek(1)
		if err != nil {
			return err
		}
		if after.isOp("::") {
			return nil
		}
		p.advance()
		if err := p.emit(KindClassExtends, name); err != nil {
			return err
		}
		if !after.isOp(",") {
			return nil
		}
		p.advance()
	}
}

// importItems records each package named by an import or export
// declaration. DPI imports and modport import lists fall through untouched.
func (p *structParser) importItems() error {
	p.advance()
	for {
		pkg, err := p.peek(0)
		if err != nil {
			return err
		}
		sep, err := p.peek(1)
		if err != nil {
			return err
		}
		item, err := p.peek(2)
		if err != nil {
			return err
		}
		if pkg.isOp("*") && sep.isOp("::") && item.isOp("*") {
			// export *::*
			p.advance()
			p.advance()
			p.advance()
		} else {
			if !pkg.isName() || !sep.isOp("::") || !(item.isOp("*") || item.isName() || item.Kind == TokKeyword) {
				return nil
			}
			p.advance()
			p.advance()
			p.advance()
			if err := p.emit(KindPackageImportItem, pkg); err != nil {
				return err
			}
		}

		next, err := p.peek(0)
		if err != nil {
			return err
		}
		switch {
		case next.isOp(","):
			p.advance()
		case next.isOp(";"):
			// consumed here so a module header does not end on it
			p.advance()
			return nil
		default:
			return nil
		}
	}
}

// bind target[.path][: inst, ...] Module inst (...);
func (p *structParser) bind() error {
	p.advance()
	if err := p.skipHierarchicalName(); err != nil {
		return err
	}
	for {
		tok, err := p.peek(0)
		if err != nil {
			return err
		}
		if !tok.isOp(":") && !tok.isOp(",") {
			break
		}
		p.advance()
		if err := p.skipHierarchicalName(); err != nil {
			return err
		}
	}
	tok, err := p.peek(0)
	if err != nil {
		return err
	}
	if !tok.isName() {
		return nil
	}
	ok, err := p.instantiationAt()
	if err != nil {
		return err
	}
	p.advance()
	if ok {
		return p.emit(KindModuleInstantiation, tok)
	}
	return nil
}

func (p *structParser) skipHierarchicalName() error {
	tok, err := p.peek(0)
	if err != nil {
		return err
	}
	if !tok.isName() && tok.Kind != TokSystemIdent {
		return nil
	}
	p.advance()
	for {
		tok, err = p.peek(0)
		if err != nil {
			return err
		}
		switch {
		case tok.isOp("["):
			end, err := p.skipBalanced(0)
			if err != nil || end < 0 {
				return err
			}
			for i := 0; i < end; i++ {
				p.advance()
			}
		case tok.isOp("."):
			p.advance()
			if tok, err = p.peek(0); err != nil {
				return err
			}
			if tok.isName() {
				p.advance()
			}
		default:
			return nil
		}
	}
}

func (p *structParser) name(tok Token) error {
	next, err := p.peek(1)
	if err != nil {
		return err
	}
	if next.isOp("::") {
		p.advance()
		if !p.hist[1].isOp("::") {
			return p.emit(KindClassScope, tok)
		}
		return nil
	}
	if next.isOp("#") {
		scoped, err := p.parameterizedScopeAt()
		if err != nil {
			return err
		}
		if scoped {
			p.advance()
			if !p.hist[1].isOp("::") {
				return p.emit(KindClassScope, tok)
			}
			return nil
		}
	}

	if p.instantiationContext() {
		ok, err := p.instantiationAt()
		if err != nil {
			return err
		}
		if ok {
			p.advance()
			return p.emit(KindModuleInstantiation, tok)
		}
	}
	p.advance()
	return nil
}

func (p *structParser) instantiationContext() bool {
	s := p.top()
	if s == nil || s.inHeader {
		return false
	}
	switch s.kind {
	case KindModuleDeclaration, KindInterfaceDeclaration, KindProgramDeclaration:
	default:
		return false
	}
	return p.atItemBoundary()
}

var boundaryKeywords = map[string]bool{
	"begin": true, "end": true, "generate": true, "endgenerate": true, "else": true,
	"endfunction": true, "endtask": true, "endclass": true, "endgroup": true,
	"endcase": true, "endproperty": true, "endsequence": true, "endclocking": true,
	"endspecify": true, "endchecker": true, "endmodule": true, "endinterface": true,
	"endprogram": true, "fork": true, "join": true, "join_any": true, "join_none": true,
}

// atItemBoundary reports whether the previously consumed tokens end an item,
// so the upcoming name may start an instantiation.
func (p *structParser) atItemBoundary() bool {
	prev := p.hist[0]
	switch {
	case prev.isOp(";"), prev.isOp(")"), prev.isOp(":"):
		return true
	case prev.Kind == TokKeyword:
		return boundaryKeywords[prev.Text]
	case prev.isName():
		// begin : label / end : label
		return p.hist[1].isOp(":") && p.hist[2].Kind == TokKeyword && boundaryKeywords[p.hist[2].Text]
	}
	return false
}

// instantiationAt matches `Type [#(...) | #delay] inst [dims] (` starting at
// the buffered token 0.
func (p *structParser) instantiationAt() (bool, error) {
	j := 1
	tok, err := p.peek(j)
	if err != nil {
		return false, err
	}
	if tok.isOp("#") {
		j++
		if tok, err = p.peek(j); err != nil {
			return false, err
		}
		if tok.isOp("(") {
			if j, err = p.skipBalanced(j); err != nil || j < 0 {
				return false, err
			}
		} else {
			j++
		}
	}
	if tok, err = p.peek(j); err != nil {
		return false, err
	}
	if !tok.isName() {
		return false, nil
	}
	j++
	for {
		if tok, err = p.peek(j); err != nil {
			return false, err
		}
		if !tok.isOp("[") {
			break
		}
		if j, err = p.skipBalanced(j); err != nil || j < 0 {
			return false, err
		}
	}
	return tok.isOp("("), nil
}

// parameterizedScopeAt matches `Name #( ... ) ::` starting at the buffered
// token 0.
func (p *structParser) parameterizedScopeAt() (bool, error) {
	open, err := p.peek(2)
	if err != nil || !open.isOp("(") {
		return false, err
	}
	end, err := p.skipBalanced(2)
	if err != nil || end < 0 {
		return false, err
	}
	tok, err := p.peek(end)
	if err != nil {
		return false, err
	}
	return tok.isOp("::"), nil
}

// skipBalanced returns the buffer index just past the bracket group opening
// at index i, or -1 at end of input.
func (p *structParser) skipBalanced(i int) (int, error) {
	depth := 0
	for ; ; i++ {
		tok, err := p.peek(i)
		if err != nil {
			return -1, err
		}
		switch {
		case tok.Kind == TokEOF:
			return -1, nil
		case tok.isOp("("), tok.isOp("["), tok.isOp("{"):
			depth++
		case tok.isOp(")"), tok.isOp("]"), tok.isOp("}"):
			depth--
			if depth == 0 {
				return i + 1, nil
			}
		}
	}
}
