package parser

import (
	"strings"

	"svorder/internal/core/errors"
)

// Lexer splits SystemVerilog source into tokens. Comments and attribute
// instances are dropped; compiler directives come back as TokDirective and are
// interpreted by the preprocessor.
type Lexer struct {
	src  []byte
	off  int
	line int
	file string
}

func NewLexer(file string, src []byte, line int) *Lexer {
	if line <= 0 {
		line = 1
	}
	return &Lexer{src: src, file: file, line: line}
}

func (l *Lexer) errorf(line int, format string, args ...interface{}) error {
	return errors.Newf(errors.CodeParse, format, args...).
		WithContext(errors.CtxPath, l.file).
		WithContext(errors.CtxLine, line)
}

func (l *Lexer) peek(n int) byte {
	if l.off+n < len(l.src) {
		return l.src[l.off+n]
	}
	return 0
}

func (l *Lexer) tok(kind TokenKind, text string, line int) Token {
	return Token{Kind: kind, Text: text, File: l.file, Line: line}
}

func (l *Lexer) Next() (Token, error) {
	if err := l.skipTrivia(); err != nil {
		return Token{}, err
	}
	if l.off >= len(l.src) {
		return l.tok(TokEOF, "", l.line), nil
	}

	start, line := l.off, l.line
	c := l.src[l.off]
	switch {
	case isIdentStart(c):
		l.off++
		for l.off < len(l.src) && isIdentPart(l.src[l.off]) {
			l.off++
		}
		text := string(l.src[start:l.off])
		if isKeyword(text) {
			return l.tok(TokKeyword, text, line), nil
		}
		return l.tok(TokIdent, text, line), nil

	case c == '\\':
		l.off++
		for l.off < len(l.src) && !isSpace(l.src[l.off]) {
			l.off++
		}
		if l.off == start+1 {
			return Token{}, l.errorf(line, "empty escaped identifier")
		}
		return l.tok(TokEscapedIdent, string(l.src[start:l.off]), line), nil

	case c == '$':
		l.off++
		for l.off < len(l.src) && isIdentPart(l.src[l.off]) {
			l.off++
		}
		if l.off == start+1 {
			return l.tok(TokOp, "$", line), nil
		}
		return l.tok(TokSystemIdent, string(l.src[start:l.off]), line), nil

	case c >= '0' && c <= '9':
		l.scanNumber()
		return l.tok(TokNumber, string(l.src[start:l.off]), line), nil

	case c == '\'':
		if l.scanUnsizedLiteral() {
			return l.tok(TokNumber, string(l.src[start:l.off]), line), nil
		}
		l.off++
		return l.tok(TokOp, "'", line), nil

	case c == '"':
		text, err := l.scanString()
		if err != nil {
			return Token{}, err
		}
		return l.tok(TokString, text, line), nil

	case c == '`':
		return l.scanBacktick()

	case c == ':' && l.peek(1) == ':':
		l.off += 2
		return l.tok(TokOp, "::", line), nil
	}

	l.off++
	return l.tok(TokOp, string(c), line), nil
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}

func (l *Lexer) skipTrivia() error {
	for l.off < len(l.src) {
		c := l.src[l.off]
		switch {
		case c == '\n':
			l.line++
			l.off++
		case isSpace(c):
			l.off++
		case c == '/' && l.peek(1) == '/':
			for l.off < len(l.src) && l.src[l.off] != '\n' {
				l.off++
			}
		case c == '/' && l.peek(1) == '*':
			if err := l.skipUntil("*/", "unterminated block comment"); err != nil {
				return err
			}
		case c == '(' && l.peek(1) == '*' && l.peek(2) != ')':
			if err := l.skipUntil("*)", "unterminated attribute instance"); err != nil {
				return err
			}
		default:
			return nil
		}
	}
	return nil
}

// skipUntil consumes the two-byte opener at l.off and everything through the
// closing delimiter.
func (l *Lexer) skipUntil(closer, msg string) error {
	line := l.line
	l.off += 2
	for l.off < len(l.src) {
		if l.src[l.off] == '\n' {
			l.line++
		}
		if l.src[l.off] == closer[0] && l.peek(1) == closer[1] {
			l.off += 2
			return nil
		}
		l.off++
	}
	return l.errorf(line, "%s", msg)
}

func (l *Lexer) scanNumber() {
	for l.off < len(l.src) {
		c := l.src[l.off]
		if isIdentPart(c) || c == '.' || c == '?' {
			l.off++
			continue
		}
		if c == '\'' && l.scanUnsizedLiteral() {
			continue
		}
		return
	}
}

// scanUnsizedLiteral consumes 'b101, 'sh1F, '0, '1, 'x, 'z when l.off sits on
// the apostrophe. It leaves l.off untouched for casts and assignment patterns.
func (l *Lexer) scanUnsizedLiteral() bool {
	i := l.off + 1
	if i < len(l.src) && (l.src[i] == 's' || l.src[i] == 'S') {
		i++
	}
	if i < len(l.src) && strings.IndexByte("bBoOdDhH", l.src[i]) >= 0 {
		i++
		for i < len(l.src) && (l.src[i] == ' ' || l.src[i] == '\t') {
			i++
		}
		j := i
		for j < len(l.src) && (isIdentPart(l.src[j]) || l.src[j] == '?') {
			j++
		}
		if j == i {
			return false
		}
		l.off = j
		return true
	}
	i = l.off + 1
	if i < len(l.src) && strings.IndexByte("01xXzZ", l.src[i]) >= 0 {
		if i+1 < len(l.src) && isIdentPart(l.src[i+1]) {
			return false
		}
		l.off = i + 1
		return true
	}
	return false
}

func (l *Lexer) scanString() (string, error) {
	start, line := l.off, l.line
	l.off++
	for l.off < len(l.src) {
		switch l.src[l.off] {
		case '\\':
			if l.peek(1) == '\n' {
				l.line++
			}
			l.off += 2
		case '\n':
			return "", l.errorf(line, "unterminated string literal")
		case '"':
			l.off++
			return string(l.src[start:l.off]), nil
		default:
			l.off++
		}
	}
	return "", l.errorf(line, "unterminated string literal")
}

func (l *Lexer) scanBacktick() (Token, error) {
	line := l.line
	switch next := l.peek(1); {
	case next == '`':
		l.off += 2
		return l.tok(TokOp, "``", line), nil
	case next == '"':
		// `" ... `" inside macro bodies: keep the quoted text as a string.
		start := l.off
		l.off += 2
		for l.off < len(l.src) {
			if l.src[l.off] == '`' && l.peek(1) == '"' {
				l.off += 2
				return l.tok(TokString, string(l.src[start:l.off]), line), nil
			}
			if l.src[l.off] == '\n' {
				l.line++
			}
			l.off++
		}
		return Token{}, l.errorf(line, "unterminated `\" string")
	case isIdentStart(next):
		l.off++
		start := l.off
		for l.off < len(l.src) && isIdentPart(l.src[l.off]) {
			l.off++
		}
		return l.tok(TokDirective, string(l.src[start:l.off]), line), nil
	}
	return Token{}, l.errorf(line, "stray backtick")
}

// SkipLine drops the rest of the current line, used for directives whose
// arguments do not matter (`timescale, `default_nettype, ...).
func (l *Lexer) SkipLine() {
	for l.off < len(l.src) && l.src[l.off] != '\n' {
		l.off++
	}
}

// ReadMacroDefinition reads the formal arguments and body of a `define whose
// name token was just returned by Next.
func (l *Lexer) ReadMacroDefinition(name string, line int) (*Macro, error) {
	m := &Macro{Name: name, File: l.file, Line: line}
	if l.peek(0) == '(' {
		params, err := l.readMacroParams()
		if err != nil {
			return nil, err
		}
		m.HasArgs = true
		m.Params = params
	}

	var body strings.Builder
	for l.off < len(l.src) {
		c := l.src[l.off]
		switch {
		case c == '\n':
			m.Body = strings.TrimSpace(body.String())
			return m, nil
		case c == '\\' && l.continuation():
			body.WriteByte('\n')
		case c == '/' && l.peek(1) == '/':
			l.SkipLine()
		case c == '/' && l.peek(1) == '*':
			if err := l.skipUntil("*/", "unterminated block comment"); err != nil {
				return nil, err
			}
			body.WriteByte(' ')
		case c == '"':
			text, err := l.scanString()
			if err != nil {
				return nil, err
			}
			body.WriteString(text)
		default:
			body.WriteByte(c)
			l.off++
		}
	}
	m.Body = strings.TrimSpace(body.String())
	return m, nil
}

// continuation consumes a backslash-newline pair (trailing blanks allowed).
func (l *Lexer) continuation() bool {
	i := l.off + 1
	for i < len(l.src) && (l.src[i] == ' ' || l.src[i] == '\t' || l.src[i] == '\r') {
		i++
	}
	if i < len(l.src) && l.src[i] == '\n' {
		l.off = i + 1
		l.line++
		return true
	}
	return false
}

func (l *Lexer) readMacroParams() ([]MacroParam, error) {
	line := l.line
	l.off++ // (
	depth := 0
	start := l.off
	var raw []string
	for l.off < len(l.src) {
		c := l.src[l.off]
		switch c {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			if depth == 0 && c == ')' {
				raw = append(raw, string(l.src[start:l.off]))
				l.off++
				return buildMacroParams(raw), nil
			}
			depth--
		case ',':
			if depth == 0 {
				raw = append(raw, string(l.src[start:l.off]))
				start = l.off + 1
			}
		case '\n':
			return nil, l.errorf(line, "unterminated macro argument list")
		case '\\':
			if l.continuation() {
				continue
			}
		}
		l.off++
	}
	return nil, l.errorf(line, "unterminated macro argument list")
}

func buildMacroParams(raw []string) []MacroParam {
	if len(raw) == 1 && strings.TrimSpace(raw[0]) == "" {
		return nil
	}
	params := make([]MacroParam, 0, len(raw))
	for _, r := range raw {
		name, def, hasDefault := strings.Cut(r, "=")
		params = append(params, MacroParam{
			Name:       strings.Trim(name, " \t\r\n\\"),
			Default:    strings.TrimSpace(def),
			HasDefault: hasDefault,
		})
	}
	return params
}
