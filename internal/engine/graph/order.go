package graph

// Ordering is the outcome of a traversal. Omitted lists, in input order, the
// files no root reaches; they sit on or behind a cycle with no outside user.
type Ordering struct {
	Order   []FileID
	Roots   []FileID
	Omitted []FileID
}

// Roots returns the files nothing depends on, in input order.
func (g *Graph) Roots() []FileID {
	var roots []FileID
	for f := range g.records.All() {
		if len(g.dependents[f.ID]) == 0 {
			roots = append(roots, f.ID)
		}
	}
	return roots
}

type frame struct {
	id   FileID
	next int
}

// Order walks deps post-order from every root, so each file comes after
// everything it reaches. One visited set spans all roots; a file is emitted
// at most once.
func (g *Graph) Order() Ordering {
	n := g.records.Len()
	visited := make([]bool, n)
	out := Ordering{Roots: g.Roots(), Order: make([]FileID, 0, n)}

	var stack []frame
	for _, root := range out.Roots {
		if visited[root] {
			continue
		}
		visited[root] = true
		stack = append(stack[:0], frame{id: root})
		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			if deps := g.deps[top.id]; top.next < len(deps) {
				d := deps[top.next]
				top.next++
				if !visited[d] {
					visited[d] = true
					stack = append(stack, frame{id: d})
				}
				continue
			}
			out.Order = append(out.Order, top.id)
			stack = stack[:len(stack)-1]
		}
	}

	for id, ok := range visited {
		if !ok {
			out.Omitted = append(out.Omitted, FileID(id))
		}
	}
	return out
}
