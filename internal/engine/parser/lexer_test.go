package parser

import (
	"testing"

	"svorder/internal/core/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lexString(t *testing.T, src string) []Token {
	t.Helper()
	toks, err := lexAll(NewLexer("test.sv", []byte(src), 1))
	require.NoError(t, err)
	return toks
}

func tokenTexts(toks []Token) []string {
	out := make([]string, len(toks))
	for i, tok := range toks {
		out[i] = tok.Text
	}
	return out
}

func TestLexerIdentifierForms(t *testing.T) {
	toks := lexString(t, `module \bus[0]  plain $display my$sig`)
	require.Len(t, toks, 5)
	assert.Equal(t, Token{Kind: TokKeyword, Text: "module", File: "test.sv", Line: 1}, toks[0])
	assert.Equal(t, TokEscapedIdent, toks[1].Kind)
	assert.Equal(t, `\bus[0]`, toks[1].Text)
	assert.Equal(t, TokIdent, toks[2].Kind)
	assert.Equal(t, TokSystemIdent, toks[3].Kind)
	assert.Equal(t, "my$sig", toks[4].Text)
}

func TestLexerDropsCommentsAndAttributes(t *testing.T) {
	src := "(* keep = 1 *) module // line comment\n/* block\ncomment */ m; always @(*) x;"
	toks := lexString(t, src)
	assert.Equal(t, []string{"module", "m", ";", "always", "@", "(", "*", ")", "x", ";"}, tokenTexts(toks))
	assert.Equal(t, 3, toks[1].Line)
}

func TestLexerOperatorsAndLiterals(t *testing.T) {
	toks := lexString(t, `pkg::item 8'hFF 'b1 '0 3.5 "a \"q\" b" x = '{default: 0};`)
	assert.Equal(t, []string{
		"pkg", "::", "item", "8'hFF", "'b1", "'0", "3.5", `"a \"q\" b"`,
		"x", "=", "'", "{", "default", ":", "0", "}", ";",
	}, tokenTexts(toks))
	assert.Equal(t, TokNumber, toks[3].Kind)
	assert.Equal(t, TokString, toks[7].Kind)
}

func TestLexerDirectives(t *testing.T) {
	toks := lexString(t, "`define `FOO a``b `\"s`\"")
	require.Len(t, toks, 6)
	assert.Equal(t, Token{Kind: TokDirective, Text: "define", File: "test.sv", Line: 1}, toks[0])
	assert.Equal(t, TokDirective, toks[1].Kind)
	assert.Equal(t, "FOO", toks[1].Text)
	assert.True(t, toks[3].isOp("``"))
	assert.Equal(t, TokString, toks[5].Kind)
}

func TestLexerErrors(t *testing.T) {
	cases := map[string]string{
		"unterminated string":  "x = \"abc\n;",
		"unterminated comment": "/* never closed",
		"unterminated attr":    "(* attr",
		"stray backtick":       "` x",
		"empty escaped ident":  "\\ x",
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := lexAll(NewLexer("bad.sv", []byte(src), 1))
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.CodeParse))
			path, ok := errors.ContextValue(err, errors.CtxPath)
			require.True(t, ok)
			assert.Equal(t, "bad.sv", path)
		})
	}
}

func TestReadMacroDefinition(t *testing.T) {
	lx := NewLexer("m.svh", []byte("MAX(a, b = 2) ((a) > (b) ? \\\n (a) : (b)) // tail\nnext"), 1)
	name, err := lx.Next()
	require.NoError(t, err)
	m, err := lx.ReadMacroDefinition(name.Text, 1)
	require.NoError(t, err)

	assert.Equal(t, "MAX", m.Name)
	assert.True(t, m.HasArgs)
	assert.Equal(t, []MacroParam{{Name: "a"}, {Name: "b", Default: "2", HasDefault: true}}, m.Params)
	assert.Equal(t, "((a) > (b) ? \n (a) : (b))", m.Body)

	next, err := lx.Next()
	require.NoError(t, err)
	assert.Equal(t, "next", next.Text)
	assert.Equal(t, 3, next.Line)
}

func TestReadMacroDefinitionObjectLike(t *testing.T) {
	// A space before the parenthesis makes it part of the body.
	lx := NewLexer("m.svh", []byte("W (8)\n"), 1)
	name, err := lx.Next()
	require.NoError(t, err)
	m, err := lx.ReadMacroDefinition(name.Text, 1)
	require.NoError(t, err)
	assert.False(t, m.HasArgs)
	assert.Equal(t, "(8)", m.Body)
}
