package symbols

import (
	"iter"
	"maps"
	"slices"
)

// Set is a set of identifier names.
type Set map[string]struct{}

func NewSet(names ...string) Set {
	s := make(Set, len(names))
	for _, n := range names {
		s.Add(n)
	}
	return s
}

func (s Set) Add(name string) { s[name] = struct{}{} }

func (s Set) Has(name string) bool {
	_, ok := s[name]
	return ok
}

func (s Set) Len() int { return len(s) }

// Sorted returns the names in lexical order.
func (s Set) Sorted() []string {
	return slices.Sorted(maps.Keys(s))
}

// All yields the names in lexical order.
func (s Set) All() iter.Seq[string] {
	return slices.Values(s.Sorted())
}
