package symbols

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"svorder/internal/core/errors"
	"svorder/internal/engine/parser"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func node(t *testing.T, tree *parser.Tree, kind parser.NodeKind, name string) {
	t.Helper()
	form := parser.IdentSimple
	if len(name) > 0 && name[0] == '\\' {
		form = parser.IdentEscaped
	}
	id, err := tree.AddIdent(form, name)
	require.NoError(t, err)
	tree.Push(parser.Node{Kind: kind, Ident: id, File: tree.Path, Line: 1})
}

func TestExtractSortsNodesIntoNamespaces(t *testing.T) {
	tree := parser.NewTree("a.sv")
	node(t, tree, parser.KindModuleDeclaration, "top")
	node(t, tree, parser.KindInterfaceDeclaration, "bus_if")
	node(t, tree, parser.KindProgramDeclaration, "tb")
	node(t, tree, parser.KindModuleInstantiation, "leaf")
	node(t, tree, parser.KindModuleInstantiation, `\leaf`)
	node(t, tree, parser.KindPackageDeclaration, "pkg")
	node(t, tree, parser.KindClassDeclaration, "cls")
	node(t, tree, parser.KindPackageImportItem, "uvm_pkg")
	node(t, tree, parser.KindClassScope, "cfg_pkg")
	node(t, tree, parser.KindClassExtends, "base")

	syms, err := Extract(tree)
	require.NoError(t, err)
	assert.Equal(t, []string{"bus_if", "tb", "top"}, syms.ModulesDefined.Sorted())
	assert.Equal(t, []string{"leaf"}, syms.ModulesUsed.Sorted())
	assert.Equal(t, []string{"cls", "pkg"}, syms.PackagesDefined.Sorted())
	assert.Equal(t, []string{"base", "cfg_pkg", "uvm_pkg"}, syms.PackagesUsed.Sorted())
}

func TestExtractEmptyTree(t *testing.T) {
	syms, err := Extract(parser.NewTree("empty.sv"))
	require.NoError(t, err)
	assert.Zero(t, syms.ModulesDefined.Len()+syms.ModulesUsed.Len()+syms.PackagesDefined.Len()+syms.PackagesUsed.Len())
}

func TestExtractMalformedTree(t *testing.T) {
	cases := map[string]parser.Node{
		"missing identifier":  {Kind: parser.KindModuleInstantiation, Line: 7},
		"dangling identifier": {Kind: parser.KindModuleDeclaration, Ident: &parser.Ident{Off: 99, Len: 4}, Line: 7},
		"unknown kind":        {Kind: parser.KindInvalid, Ident: &parser.Ident{}, Line: 7},
	}
	for name, n := range cases {
		t.Run(name, func(t *testing.T) {
			tree := parser.NewTree("bad.sv")
			if n.Kind == parser.KindInvalid {
				id, err := tree.AddIdent(parser.IdentSimple, "x")
				require.NoError(t, err)
				n.Ident = id
			}
			tree.Push(n)

			_, err := Extract(tree)
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.CodeMalformedTree))
			path, _ := errors.ContextValue(err, errors.CtxPath)
			assert.Equal(t, "bad.sv", path)
			line, _ := errors.ContextValue(err, errors.CtxLine)
			assert.Equal(t, 7, line)
		})
	}
}

func TestExtractFromNativeFrontend(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "env.sv")
	require.NoError(t, os.WriteFile(path, []byte(`
package env_pkg;
  import uvm_pkg::*;
  class env extends uvm_env;
    cfg_pkg::cfg c;
  endclass
endpackage
module \top_esc ;
  leaf u_leaf ();
endmodule
`), 0o644))

	tree, _, err := parser.NewNativeFrontend().Parse(context.Background(), path, nil, nil)
	require.NoError(t, err)
	syms, err := Extract(tree)
	require.NoError(t, err)

	assert.Equal(t, []string{"top_esc"}, syms.ModulesDefined.Sorted())
	assert.Equal(t, []string{"leaf"}, syms.ModulesUsed.Sorted())
	assert.Equal(t, []string{"env", "env_pkg"}, syms.PackagesDefined.Sorted())
	assert.Equal(t, []string{"cfg_pkg", "uvm_env", "uvm_pkg"}, syms.PackagesUsed.Sorted())
}

func TestSymbolsEachOrder(t *testing.T) {
	syms := New()
	syms.ModulesUsed.Add("b")
	syms.ModulesUsed.Add("a")
	syms.PackagesDefined.Add("p")

	var got []string
	syms.Each(func(ns Namespace, role, name string) bool {
		got = append(got, string(ns)+"/"+role+"/"+name)
		return true
	})
	assert.Equal(t, []string{"module/used/a", "module/used/b", "package/defined/p"}, got)
}

func TestSetSortedAndHas(t *testing.T) {
	s := NewSet("b", "a", "b")
	assert.Equal(t, 2, s.Len())
	assert.True(t, s.Has("a"))
	assert.False(t, s.Has("c"))
	assert.Equal(t, []string{"a", "b"}, s.Sorted())
}
