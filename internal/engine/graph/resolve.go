package graph

import (
	"svorder/internal/engine/symbols"
)

type EdgeKind string

const (
	EdgePackage EdgeKind = "package"
	EdgeModule  EdgeKind = "module"
)

// Edge says From must be compiled after To. Name is the first identifier that
// produced the edge.
type Edge struct {
	From FileID
	To   FileID
	Kind EdgeKind
	Name string
}

// Suppressed is a module edge dropped by the package priority rule: To uses
// package Via, which From defines, so To already depends on From.
type Suppressed struct {
	From FileID
	To   FileID
	Name string
	Via  string
}

// Shadowed records a definition overwritten by a later file.
type Shadowed struct {
	Namespace symbols.Namespace
	Name      string
	Previous  FileID
	Winner    FileID
}

// Tables maps every defined name to its defining file.
type Tables struct {
	Modules  map[string]FileID
	Packages map[string]FileID
	Shadowed []Shadowed
}

// BuildTables folds over records in input order. A name defined twice resolves
// to the later file.
func BuildTables(recs *Records) Tables {
	t := Tables{
		Modules:  make(map[string]FileID),
		Packages: make(map[string]FileID),
	}
	for f := range recs.All() {
		t.define(symbols.NamespaceModule, t.Modules, f.ModulesDefined, f.ID)
		t.define(symbols.NamespacePackage, t.Packages, f.PackagesDefined, f.ID)
	}
	return t
}

func (t *Tables) define(ns symbols.Namespace, table map[string]FileID, names symbols.Set, id FileID) {
	for name := range names.All() {
		if prev, ok := table[name]; ok && prev != id {
			t.Shadowed = append(t.Shadowed, Shadowed{Namespace: ns, Name: name, Previous: prev, Winner: id})
		}
		table[name] = id
	}
}

// Graph is the resolved file-level dependency graph. deps and dependents are
// indexed by FileID and kept in discovery order.
type Graph struct {
	records    *Records
	deps       [][]FileID
	dependents [][]FileID
	edges      []Edge
	suppressed []Suppressed
	seen       map[[2]FileID]struct{}
}

// Resolve computes each file's dependencies: package uses first, then module
// uses, skipping a module edge when the module's file uses a package this
// file defines.
func Resolve(recs *Records, tables Tables) *Graph {
	n := recs.Len()
	g := &Graph{
		records:    recs,
		deps:       make([][]FileID, n),
		dependents: make([][]FileID, n),
		seen:       make(map[[2]FileID]struct{}),
	}
	for cur := range recs.All() {
		for name := range cur.PackagesUsed.All() {
			if dep, ok := tables.Packages[name]; ok && dep != cur.ID {
				g.addEdge(Edge{From: cur.ID, To: dep, Kind: EdgePackage, Name: name})
			}
		}
		for name := range cur.ModulesUsed.All() {
			dep, ok := tables.Modules[name]
			if !ok || dep == cur.ID {
				continue
			}
			if via, clash := priorityClash(cur, recs.Get(dep)); clash {
				g.suppressed = append(g.suppressed, Suppressed{From: cur.ID, To: dep, Name: name, Via: via})
				continue
			}
			g.addEdge(Edge{From: cur.ID, To: dep, Kind: EdgeModule, Name: name})
		}
	}
	return g
}

// priorityClash returns the first package, in name order, that dep uses and
// cur defines.
func priorityClash(cur, dep *FileRecord) (string, bool) {
	for name := range dep.PackagesUsed.All() {
		if cur.PackagesDefined.Has(name) {
			return name, true
		}
	}
	return "", false
}

func (g *Graph) addEdge(e Edge) {
	key := [2]FileID{e.From, e.To}
	if _, dup := g.seen[key]; dup {
		return
	}
	g.seen[key] = struct{}{}
	g.deps[e.From] = append(g.deps[e.From], e.To)
	g.dependents[e.To] = append(g.dependents[e.To], e.From)
	g.edges = append(g.edges, e)
}

func (g *Graph) Records() *Records { return g.records }

// Deps returns the files id depends on, in discovery order.
func (g *Graph) Deps(id FileID) []FileID { return g.deps[id] }

// Dependents returns the files that depend on id.
func (g *Graph) Dependents(id FileID) []FileID { return g.dependents[id] }

func (g *Graph) HasEdge(from, to FileID) bool {
	_, ok := g.seen[[2]FileID{from, to}]
	return ok
}

// Edges returns every edge in discovery order.
func (g *Graph) Edges() []Edge { return g.edges }

func (g *Graph) Suppressed() []Suppressed { return g.suppressed }
