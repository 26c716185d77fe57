package parser

import (
	"math"
	"testing"

	"svorder/internal/core/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultKindMapping(t *testing.T) {
	m, err := newKindMapping(DefaultTreeSitterConfig())
	require.NoError(t, err)

	assert.Equal(t, KindModuleDeclaration, m.kind("module_declaration"))
	assert.Equal(t, KindModuleInstantiation, m.kind("module_instantiation"))
	assert.Equal(t, KindClassScope, m.kind("package_scope"))
	assert.Equal(t, KindInvalid, m.kind("always_construct"))

	form, ok := m.ident("escaped_identifier")
	require.True(t, ok)
	assert.Equal(t, IdentEscaped, form)
	form, ok = m.ident("simple_identifier")
	require.True(t, ok)
	assert.Equal(t, IdentSimple, form)
	_, ok = m.ident("number")
	assert.False(t, ok)
}

func TestKindMappingValidation(t *testing.T) {
	cfg := DefaultTreeSitterConfig()
	cfg.NodeKinds = map[string]string{"module_declaration": "Modul"}
	_, err := newKindMapping(cfg)
	assert.True(t, errors.IsCode(err, errors.CodeValidationError))

	cfg = DefaultTreeSitterConfig()
	cfg.NodeKinds = nil
	_, err = newKindMapping(cfg)
	assert.True(t, errors.IsCode(err, errors.CodeValidationError))

	cfg = DefaultTreeSitterConfig()
	cfg.IdentKinds = nil
	_, err = newKindMapping(cfg)
	assert.True(t, errors.IsCode(err, errors.CodeValidationError))
}

func TestParseNodeKind(t *testing.T) {
	kind, ok := ParseNodeKind("moduleinstantiation")
	require.True(t, ok)
	assert.Equal(t, KindModuleInstantiation, kind)

	_, ok = ParseNodeKind("Invalid")
	assert.False(t, ok)
}

func TestNewTreeSitterFrontendNeedsGrammar(t *testing.T) {
	_, err := NewFrontend(FrontendTreeSitter, DefaultTreeSitterConfig())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeValidationError))
}

func TestSpanIdent(t *testing.T) {
	id, err := spanIdent(IdentSimple, 4, 9)
	require.NoError(t, err)
	assert.Equal(t, Ident{Form: IdentSimple, Off: 4, Len: 5}, *id)

	_, err = spanIdent(IdentSimple, 9, 4)
	assert.True(t, errors.IsCode(err, errors.CodeMalformedTree))

	past := uint(math.MaxUint32)
	past++
	_, err = spanIdent(IdentSimple, past, past+1)
	assert.True(t, errors.IsCode(err, errors.CodeMalformedTree))

	_, err = spanIdent(IdentEscaped, 0, past)
	assert.True(t, errors.IsCode(err, errors.CodeMalformedTree))
}
