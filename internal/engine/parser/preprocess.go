package parser

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"svorder/internal/core/errors"
)

const (
	maxIncludeDepth = 64
	maxMacroDepth   = 256
)

// Directives that take the rest of the line as arguments we do not need.
var lineDirectives = map[string]bool{
	"timescale":               true,
	"default_nettype":         true,
	"line":                    true,
	"pragma":                  true,
	"begin_keywords":          true,
	"unconnected_drive":       true,
	"default_decay_time":      true,
	"default_trireg_strength": true,
	"delay_mode_distributed":  true,
	"delay_mode_path":         true,
	"delay_mode_unit":         true,
	"delay_mode_zero":         true,
}

// Directives without arguments.
var bareDirectives = map[string]bool{
	"resetall":            true,
	"celldefine":          true,
	"endcelldefine":       true,
	"end_keywords":        true,
	"nounconnected_drive": true,
	"protect":             true,
	"endprotect":          true,
}

type ppFrame struct {
	lex     *Lexer
	toks    []Token
	pos     int
	macro   string
	include bool
}

type condState struct {
	active  bool // this branch is being emitted
	taken   bool // some branch of this conditional was already emitted
	sawElse bool
	line    int
	file    string
}

// Preprocessor expands macros, conditionals and includes, handing a flat
// token stream to the structural parser.
type Preprocessor struct {
	path        string
	defines     Defines
	includeDirs []string
	frames      []*ppFrame
	conds       []condState
	depth       int
	readFile    func(string) ([]byte, error)
}

func NewPreprocessor(path string, src []byte, defines Defines, includeDirs []string) *Preprocessor {
	if defines == nil {
		defines = make(Defines)
	}
	p := &Preprocessor{
		path:        path,
		defines:     defines,
		includeDirs: includeDirs,
		readFile:    os.ReadFile,
	}
	p.frames = append(p.frames, &ppFrame{lex: NewLexer(path, src, 1)})
	return p
}

// Defines returns the macro table as it stands after everything consumed so
// far.
func (p *Preprocessor) Defines() Defines { return p.defines }

func (p *Preprocessor) active() bool {
	if len(p.conds) == 0 {
		return true
	}
	return p.conds[len(p.conds)-1].active
}

func (p *Preprocessor) parentActive() bool {
	if len(p.conds) < 2 {
		return true
	}
	return p.conds[len(p.conds)-2].active
}

func parseErr(tok Token, format string, args ...interface{}) *errors.DomainError {
	return errors.Newf(errors.CodeParse, format, args...).
		WithContext(errors.CtxPath, tok.File).
		WithContext(errors.CtxLine, tok.Line)
}

// raw returns the next token from the innermost frame without interpreting
// directives.
func (p *Preprocessor) raw() (Token, error) {
	for len(p.frames) > 0 {
		f := p.frames[len(p.frames)-1]
		if f.lex != nil {
			tok, err := f.lex.Next()
			if err != nil {
				return Token{}, err
			}
			if tok.Kind != TokEOF {
				return tok, nil
			}
			if f.include {
				p.depth--
			}
		} else if f.pos < len(f.toks) {
			tok := f.toks[f.pos]
			f.pos++
			return tok, nil
		}
		if len(p.frames) == 1 {
			return Token{Kind: TokEOF, File: p.path, Line: eofLine(f)}, nil
		}
		p.frames = p.frames[:len(p.frames)-1]
	}
	return Token{Kind: TokEOF, File: p.path}, nil
}

func eofLine(f *ppFrame) int {
	if f.lex != nil {
		return f.lex.line
	}
	return 0
}

// lexFrame returns the innermost lexer when the directive being handled came
// straight from source text rather than a macro expansion.
func (p *Preprocessor) lexFrame() *Lexer {
	if len(p.frames) == 0 {
		return nil
	}
	return p.frames[len(p.frames)-1].lex
}

// Next returns the next token of the expanded stream.
func (p *Preprocessor) Next() (Token, error) {
	for {
		tok, err := p.raw()
		if err != nil {
			return Token{}, err
		}
		if tok.Kind == TokEOF {
			if len(p.conds) > 0 {
				c := p.conds[len(p.conds)-1]
				return Token{}, errors.Newf(errors.CodeParse, "unterminated conditional directive").
					WithContext(errors.CtxPath, c.file).
					WithContext(errors.CtxLine, c.line)
			}
			return tok, nil
		}
		if tok.Kind == TokDirective {
			out, emit, err := p.directive(tok)
			if err != nil {
				return Token{}, err
			}
			if emit {
				return out, nil
			}
			continue
		}
		if p.active() {
			return tok, nil
		}
	}
}

func (p *Preprocessor) directive(tok Token) (Token, bool, error) {
	switch tok.Text {
	case "ifdef", "ifndef":
		name, err := p.macroName(tok)
		if err != nil {
			return Token{}, false, err
		}
		_, defined := p.defines[name]
		cond := defined == (tok.Text == "ifdef")
		on := p.active() && cond
		p.conds = append(p.conds, condState{active: on, taken: on, line: tok.Line, file: tok.File})
		return Token{}, false, nil

	case "elsif":
		name, err := p.macroName(tok)
		if err != nil {
			return Token{}, false, err
		}
		if len(p.conds) == 0 {
			return Token{}, false, parseErr(tok, "`elsif without `ifdef")
		}
		c := &p.conds[len(p.conds)-1]
		if c.sawElse {
			return Token{}, false, parseErr(tok, "`elsif after `else")
		}
		_, defined := p.defines[name]
		c.active = !c.taken && defined && p.parentActive()
		c.taken = c.taken || c.active
		return Token{}, false, nil

	case "else":
		if len(p.conds) == 0 {
			return Token{}, false, parseErr(tok, "`else without `ifdef")
		}
		c := &p.conds[len(p.conds)-1]
		if c.sawElse {
			return Token{}, false, parseErr(tok, "duplicate `else")
		}
		c.sawElse = true
		c.active = !c.taken && p.parentActive()
		c.taken = true
		return Token{}, false, nil

	case "endif":
		if len(p.conds) == 0 {
			return Token{}, false, parseErr(tok, "`endif without `ifdef")
		}
		p.conds = p.conds[:len(p.conds)-1]
		return Token{}, false, nil
	}

	if !p.active() {
		// A `define body may contain text that would confuse the token
		// stream, so it is consumed even when the branch is off.
		if tok.Text == "define" {
			_, err := p.readDefine(tok)
			return Token{}, false, err
		}
		return Token{}, false, nil
	}

	switch tok.Text {
	case "define":
		m, err := p.readDefine(tok)
		if err != nil {
			return Token{}, false, err
		}
		p.defines[m.Name] = m
		return Token{}, false, nil

	case "undef":
		name, err := p.macroName(tok)
		if err != nil {
			return Token{}, false, err
		}
		delete(p.defines, name)
		return Token{}, false, nil

	case "undefineall":
		p.defines = make(Defines)
		return Token{}, false, nil

	case "include":
		return Token{}, false, p.include(tok)

	case "__FILE__":
		return Token{Kind: TokString, Text: strconv.Quote(tok.File), File: tok.File, Line: tok.Line}, true, nil

	case "__LINE__":
		return Token{Kind: TokNumber, Text: strconv.Itoa(tok.Line), File: tok.File, Line: tok.Line}, true, nil
	}

	if lineDirectives[tok.Text] {
		if lx := p.lexFrame(); lx != nil {
			lx.SkipLine()
		}
		return Token{}, false, nil
	}
	if bareDirectives[tok.Text] {
		return Token{}, false, nil
	}
	return Token{}, false, p.expand(tok)
}

func (p *Preprocessor) macroName(tok Token) (string, error) {
	next, err := p.raw()
	if err != nil {
		return "", err
	}
	if next.Kind != TokIdent && next.Kind != TokKeyword && next.Kind != TokEscapedIdent {
		return "", parseErr(tok, "expected macro name after `%s", tok.Text)
	}
	return next.Text, nil
}

func (p *Preprocessor) readDefine(tok Token) (*Macro, error) {
	lx := p.lexFrame()
	if lx == nil {
		return nil, parseErr(tok, "`define inside a macro expansion is not supported")
	}
	name, err := lx.Next()
	if err != nil {
		return nil, err
	}
	if name.Kind != TokIdent && name.Kind != TokKeyword {
		return nil, parseErr(tok, "expected macro name after `define")
	}
	return lx.ReadMacroDefinition(name.Text, tok.Line)
}

func (p *Preprocessor) include(tok Token) error {
	next, err := p.raw()
	if err != nil {
		return err
	}
	var name string
	switch {
	case next.Kind == TokString:
		name = strings.Trim(next.Text, `"`)
	case next.isOp("<"):
		var b strings.Builder
		for {
			part, err := p.raw()
			if err != nil {
				return err
			}
			if part.Kind == TokEOF || part.Line != next.Line {
				return parseErr(tok, "unterminated `include <...> path")
			}
			if part.isOp(">") {
				break
			}
			b.WriteString(part.Text)
		}
		name = b.String()
	default:
		return parseErr(tok, "expected file name after `include")
	}
	if name == "" {
		return parseErr(tok, "empty `include path")
	}
	if p.depth >= maxIncludeDepth {
		return parseErr(tok, "`include nesting deeper than %d", maxIncludeDepth).
			WithContext(errors.CtxInclude, name)
	}

	resolved, ok := p.resolveInclude(tok.File, name)
	if !ok {
		return parseErr(tok, "cannot find include file %q", name).WithContext(errors.CtxInclude, name)
	}
	src, err := p.readFile(resolved)
	if err != nil {
		return errors.AddContext(
			errors.Wrap(err, errors.CodeParse, "read include file"),
			errors.CtxInclude, resolved,
		)
	}
	p.depth++
	p.frames = append(p.frames, &ppFrame{lex: NewLexer(resolved, src, 1), include: true})
	return nil
}

// resolveInclude searches the including file's directory first, then the
// configured include directories in order.
func (p *Preprocessor) resolveInclude(from, name string) (string, bool) {
	if filepath.IsAbs(name) {
		return name, fileExists(name)
	}
	dirs := make([]string, 0, len(p.includeDirs)+1)
	dirs = append(dirs, filepath.Dir(from))
	dirs = append(dirs, p.includeDirs...)
	for _, dir := range dirs {
		candidate := filepath.Join(dir, name)
		if fileExists(candidate) {
			return candidate, true
		}
	}
	return "", false
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func (p *Preprocessor) macroDepth() int {
	n := 0
	for _, f := range p.frames {
		if f.macro != "" {
			n++
		}
	}
	return n
}

func (p *Preprocessor) expand(tok Token) error {
	m, ok := p.defines[tok.Text]
	if !ok {
		return parseErr(tok, "undefined macro `%s", tok.Text).WithContext(errors.CtxMacro, tok.Text)
	}
	if p.macroDepth() >= maxMacroDepth {
		return parseErr(tok, "macro expansion of `%s nested deeper than %d", m.Name, maxMacroDepth).
			WithContext(errors.CtxMacro, m.Name)
	}

	var args [][]Token
	if m.HasArgs {
		var err error
		args, err = p.macroArgs(tok, m)
		if err != nil {
			return err
		}
	}

	body, err := lexAll(NewLexer(tok.File, []byte(m.Body), tok.Line))
	if err != nil {
		return errors.AddContext(err, errors.CtxMacro, m.Name)
	}
	for i := range body {
		body[i].Line = tok.Line
	}

	if m.HasArgs {
		body, err = substitute(m, body, args, tok)
		if err != nil {
			return err
		}
	}
	p.frames = append(p.frames, &ppFrame{toks: pasteTokens(body), macro: m.Name})
	return nil
}

func (p *Preprocessor) macroArgs(tok Token, m *Macro) ([][]Token, error) {
	open, err := p.raw()
	if err != nil {
		return nil, err
	}
	if !open.isOp("(") {
		return nil, parseErr(tok, "macro `%s expects arguments", m.Name).WithContext(errors.CtxMacro, m.Name)
	}
	var args [][]Token
	var cur []Token
	depth := 0
	for {
		t, err := p.raw()
		if err != nil {
			return nil, err
		}
		switch {
		case t.Kind == TokEOF:
			return nil, parseErr(tok, "unterminated arguments to macro `%s", m.Name).WithContext(errors.CtxMacro, m.Name)
		case t.isOp("(") || t.isOp("[") || t.isOp("{"):
			depth++
		case t.isOp(")") && depth == 0:
			args = append(args, cur)
			if len(args) > len(m.Params) && !(len(m.Params) == 0 && len(args) == 1 && len(args[0]) == 0) {
				return nil, parseErr(tok, "too many arguments to macro `%s", m.Name).WithContext(errors.CtxMacro, m.Name)
			}
			return args, nil
		case t.isOp(")") || t.isOp("]") || t.isOp("}"):
			depth--
		case t.isOp(",") && depth == 0:
			args = append(args, cur)
			cur = nil
			continue
		}
		cur = append(cur, t)
	}
}

func substitute(m *Macro, body []Token, args [][]Token, at Token) ([]Token, error) {
	bind := make(map[string][]Token, len(m.Params))
	for i, param := range m.Params {
		var val []Token
		if i < len(args) {
			val = args[i]
		}
		if len(val) == 0 && param.HasDefault {
			def, err := lexAll(NewLexer(at.File, []byte(param.Default), at.Line))
			if err != nil {
				return nil, err
			}
			val = def
		}
		bind[param.Name] = val
	}
	out := make([]Token, 0, len(body))
	for _, t := range body {
		if t.Kind == TokIdent || t.Kind == TokKeyword {
			if val, ok := bind[t.Text]; ok {
				for _, v := range val {
					v.Line = at.Line
					out = append(out, v)
				}
				continue
			}
		}
		out = append(out, t)
	}
	return out, nil
}

// pasteTokens joins the operands of `` into a single token.
func pasteTokens(toks []Token) []Token {
	out := make([]Token, 0, len(toks))
	for i := 0; i < len(toks); i++ {
		t := toks[i]
		if t.isOp("``") && len(out) > 0 && i+1 < len(toks) {
			prev := out[len(out)-1]
			text := prev.Text + toks[i+1].Text
			kind := TokOp
			switch {
			case isIdentifier(text) && isKeyword(text):
				kind = TokKeyword
			case isIdentifier(text):
				kind = TokIdent
			}
			out[len(out)-1] = Token{Kind: kind, Text: text, File: prev.File, Line: prev.Line}
			i++
			continue
		}
		if t.isOp("``") {
			continue
		}
		out = append(out, t)
	}
	return out
}

func lexAll(lx *Lexer) ([]Token, error) {
	var out []Token
	for {
		t, err := lx.Next()
		if err != nil {
			return nil, err
		}
		if t.Kind == TokEOF {
			return out, nil
		}
		out = append(out, t)
	}
}
