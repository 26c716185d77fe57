package graph

import (
	"slices"
	"testing"

	"svorder/internal/core/errors"
	"svorder/internal/engine/symbols"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fileSpec struct {
	path string
	mdef []string
	muse []string
	pdef []string
	puse []string
}

func build(t *testing.T, files ...fileSpec) *Graph {
	t.Helper()
	recs := NewRecords(len(files))
	for _, f := range files {
		syms := symbols.Symbols{
			ModulesDefined:  symbols.NewSet(f.mdef...),
			ModulesUsed:     symbols.NewSet(f.muse...),
			PackagesDefined: symbols.NewSet(f.pdef...),
			PackagesUsed:    symbols.NewSet(f.puse...),
		}
		_, err := recs.Add(f.path, syms)
		require.NoError(t, err)
	}
	return Resolve(recs, BuildTables(recs))
}

func id(t *testing.T, g *Graph, path string) FileID {
	t.Helper()
	f, ok := g.Records().Lookup(path)
	require.True(t, ok, path)
	return f.ID
}

func orderPaths(g *Graph) []string {
	return g.Records().Paths(g.Order().Order)
}

// assertTopological checks every edge's target precedes its source.
func assertTopological(t *testing.T, g *Graph, order []FileID) {
	t.Helper()
	pos := make(map[FileID]int, len(order))
	for i, f := range order {
		_, dup := pos[f]
		require.False(t, dup, "file %d emitted twice", f)
		pos[f] = i
	}
	for _, e := range g.Edges() {
		from, okFrom := pos[e.From]
		to, okTo := pos[e.To]
		if okFrom && okTo {
			assert.Less(t, to, from, "%s must precede %s", g.Records().Get(e.To).Path, g.Records().Get(e.From).Path)
		}
	}
}

func TestOrderIsTopologicalWithoutDuplicates(t *testing.T) {
	g := build(t,
		fileSpec{path: "top.sv", mdef: []string{"top"}, muse: []string{"mid_a", "mid_b"}},
		fileSpec{path: "mid_a.sv", mdef: []string{"mid_a"}, muse: []string{"leaf"}, puse: []string{"cfg"}},
		fileSpec{path: "mid_b.sv", mdef: []string{"mid_b"}, muse: []string{"leaf"}},
		fileSpec{path: "leaf.sv", mdef: []string{"leaf"}, puse: []string{"cfg"}},
		fileSpec{path: "cfg_pkg.sv", pdef: []string{"cfg"}},
	)
	res := g.Order()
	assert.Empty(t, res.Omitted)
	assert.Len(t, res.Order, 5)
	assertTopological(t, g, res.Order)
	assert.Equal(t, []string{"cfg_pkg.sv", "leaf.sv", "mid_a.sv", "mid_b.sv", "top.sv"}, orderPaths(g))
}

func TestPriorityRuleSuppressesModuleEdge(t *testing.T) {
	g := build(t,
		fileSpec{path: "a.sv", pdef: []string{"P"}, muse: []string{"M"}},
		fileSpec{path: "b.sv", mdef: []string{"M"}, puse: []string{"P"}},
	)
	a, b := id(t, g, "a.sv"), id(t, g, "b.sv")

	assert.False(t, g.HasEdge(a, b))
	assert.True(t, g.HasEdge(b, a))
	assert.Equal(t, []Suppressed{{From: a, To: b, Name: "M", Via: "P"}}, g.Suppressed())
	assert.Equal(t, []string{"a.sv", "b.sv"}, orderPaths(g))
}

func TestPriorityRuleNeedsPackageOverlap(t *testing.T) {
	g := build(t,
		fileSpec{path: "a.sv", pdef: []string{"P"}, muse: []string{"M"}},
		fileSpec{path: "b.sv", mdef: []string{"M"}, puse: []string{"OTHER"}},
	)
	assert.True(t, g.HasEdge(id(t, g, "a.sv"), id(t, g, "b.sv")))
	assert.Empty(t, g.Suppressed())
	assert.Equal(t, []string{"b.sv", "a.sv"}, orderPaths(g))
}

func TestIsolatedFileIsARoot(t *testing.T) {
	g := build(t,
		fileSpec{path: "iso.sv", mdef: []string{"iso"}},
		fileSpec{path: "top.sv", mdef: []string{"top"}, muse: []string{"leaf"}},
		fileSpec{path: "leaf.sv", mdef: []string{"leaf"}},
	)
	res := g.Order()
	assert.Equal(t, []string{"iso.sv", "top.sv"}, g.Records().Paths(res.Roots))
	assert.Equal(t, []string{"iso.sv", "leaf.sv", "top.sv"}, g.Records().Paths(res.Order))
}

func TestSharedDependencyEmittedOnce(t *testing.T) {
	g := build(t,
		fileSpec{path: "x.sv", mdef: []string{"x"}, muse: []string{"m"}},
		fileSpec{path: "y.sv", mdef: []string{"y"}, muse: []string{"m"}},
		fileSpec{path: "z.sv", mdef: []string{"m"}},
	)
	assert.Equal(t, []string{"z.sv", "x.sv", "y.sv"}, orderPaths(g))
	z := id(t, g, "z.sv")
	assert.ElementsMatch(t, []FileID{id(t, g, "x.sv"), id(t, g, "y.sv")}, g.Dependents(z))
}

func TestUnresolvedUseProducesNoEdge(t *testing.T) {
	g := build(t,
		fileSpec{path: "top.sv", mdef: []string{"top"}, muse: []string{"UNDEFINED_EXTERNAL"}, puse: []string{"uvm_pkg"}},
	)
	assert.Empty(t, g.Edges())
	assert.Equal(t, []string{"top.sv"}, orderPaths(g))
}

func TestSelfUseIsNotAnEdge(t *testing.T) {
	g := build(t,
		fileSpec{path: "both.sv", mdef: []string{"top", "leaf"}, muse: []string{"leaf"}, pdef: []string{"p"}, puse: []string{"p"}},
	)
	assert.Empty(t, g.Edges())
	assert.Equal(t, []string{"both.sv"}, orderPaths(g))
}

func TestMutualCycleIsOmittedWithoutCrash(t *testing.T) {
	g := build(t,
		fileSpec{path: "p.sv", mdef: []string{"P"}, muse: []string{"Q"}},
		fileSpec{path: "q.sv", mdef: []string{"Q"}, muse: []string{"P"}},
	)
	res := g.Order()
	assert.Empty(t, res.Order)
	assert.Empty(t, res.Roots)
	assert.Equal(t, []string{"p.sv", "q.sv"}, g.Records().Paths(res.Omitted))

	p, q := id(t, g, "p.sv"), id(t, g, "q.sv")
	assert.Equal(t, [][]FileID{{p, q}}, g.StronglyConnected())
	assert.Equal(t, []FileID{p, q, p}, g.CyclePath([]FileID{p, q}))
}

func TestCycleWithOutsideUserIsEmitted(t *testing.T) {
	g := build(t,
		fileSpec{path: "t.sv", mdef: []string{"T"}, muse: []string{"P"}},
		fileSpec{path: "p.sv", mdef: []string{"P"}, muse: []string{"Q"}},
		fileSpec{path: "q.sv", mdef: []string{"Q"}, muse: []string{"P"}},
	)
	res := g.Order()
	assert.Empty(t, res.Omitted)
	assert.Equal(t, []string{"q.sv", "p.sv", "t.sv"}, g.Records().Paths(res.Order))
}

func TestLongerCycleIsNotArbitrated(t *testing.T) {
	g := build(t,
		fileSpec{path: "a.sv", mdef: []string{"A"}, muse: []string{"B"}, pdef: []string{"PA"}},
		fileSpec{path: "b.sv", mdef: []string{"B"}, muse: []string{"C"}},
		fileSpec{path: "c.sv", mdef: []string{"C"}, puse: []string{"PA"}},
		fileSpec{path: "top.sv", mdef: []string{"top"}},
	)
	res := g.Order()
	assert.Equal(t, []string{"top.sv"}, g.Records().Paths(res.Order))
	assert.Equal(t, []string{"a.sv", "b.sv", "c.sv"}, g.Records().Paths(res.Omitted))
	require.Len(t, g.StronglyConnected(), 1)
	assert.Len(t, g.StronglyConnected()[0], 3)
}

func TestFileBehindCycleIsOmitted(t *testing.T) {
	g := build(t,
		fileSpec{path: "p.sv", mdef: []string{"P"}, muse: []string{"Q", "L"}},
		fileSpec{path: "q.sv", mdef: []string{"Q"}, muse: []string{"P"}},
		fileSpec{path: "l.sv", mdef: []string{"L"}},
	)
	res := g.Order()
	assert.Empty(t, res.Order)
	assert.Len(t, res.Omitted, 3)
	assert.Len(t, g.StronglyConnected(), 1, "l.sv is omitted but not part of the cycle")
}

func TestSiblingOrderFollowsNames(t *testing.T) {
	for _, order := range [][]string{{"top.sv", "b.sv", "a.sv"}, {"a.sv", "top.sv", "b.sv"}} {
		var specs []fileSpec
		for _, p := range order {
			switch p {
			case "top.sv":
				specs = append(specs, fileSpec{path: p, mdef: []string{"top"}, muse: []string{"b", "a"}})
			case "a.sv":
				specs = append(specs, fileSpec{path: p, mdef: []string{"a"}})
			case "b.sv":
				specs = append(specs, fileSpec{path: p, mdef: []string{"b"}})
			}
		}
		assert.Equal(t, []string{"a.sv", "b.sv", "top.sv"}, orderPaths(build(t, specs...)))
	}
}

func TestEdgesAreDeduplicated(t *testing.T) {
	g := build(t,
		fileSpec{path: "user.sv", mdef: []string{"user"}, muse: []string{"m1", "m2"}, puse: []string{"p"}},
		fileSpec{path: "lib.sv", mdef: []string{"m1", "m2"}, pdef: []string{"p"}},
	)
	require.Len(t, g.Edges(), 1)
	assert.Equal(t, Edge{From: 0, To: 1, Kind: EdgePackage, Name: "p"}, g.Edges()[0])
	assert.Equal(t, []FileID{1}, g.Deps(0))
}

func TestLaterDefinitionWins(t *testing.T) {
	g := build(t,
		fileSpec{path: "top.sv", mdef: []string{"top"}, muse: []string{"leaf"}},
		fileSpec{path: "leaf_old.sv", mdef: []string{"leaf"}},
		fileSpec{path: "leaf_new.sv", mdef: []string{"leaf"}},
	)
	tables := BuildTables(g.Records())
	assert.Equal(t, id(t, g, "leaf_new.sv"), tables.Modules["leaf"])
	assert.Equal(t, []Shadowed{{
		Namespace: symbols.NamespaceModule,
		Name:      "leaf",
		Previous:  id(t, g, "leaf_old.sv"),
		Winner:    id(t, g, "leaf_new.sv"),
	}}, tables.Shadowed)

	// leaf_old.sv is used by nobody, so it becomes a root of its own.
	order := orderPaths(g)
	assert.Equal(t, []string{"leaf_new.sv", "top.sv", "leaf_old.sv"}, order)
	assert.Less(t, slices.Index(order, "leaf_new.sv"), slices.Index(order, "top.sv"))
}

func TestRecordsRejectDuplicatePath(t *testing.T) {
	recs := NewRecords(1)
	_, err := recs.Add("a.sv", symbols.New())
	require.NoError(t, err)
	_, err = recs.Add("a.sv", symbols.New())
	assert.True(t, errors.IsCode(err, errors.CodeValidationError))
	assert.Nil(t, recs.Get(5))
}

func TestChain(t *testing.T) {
	g := build(t,
		fileSpec{path: "top.sv", mdef: []string{"top"}, muse: []string{"mid", "leaf"}},
		fileSpec{path: "mid.sv", mdef: []string{"mid"}, muse: []string{"leaf"}},
		fileSpec{path: "leaf.sv", mdef: []string{"leaf"}},
	)
	top, leaf := id(t, g, "top.sv"), id(t, g, "leaf.sv")
	path, ok := g.Chain(top, leaf)
	require.True(t, ok)
	assert.Equal(t, []FileID{top, leaf}, path)

	_, ok = g.Chain(leaf, top)
	assert.False(t, ok)
	_, ok = g.Chain(top, 99)
	assert.False(t, ok)
}
