package graph

import "slices"

// StronglyConnected returns the dependency cycles: components with more than
// one file, each sorted by id, ordered by their smallest member. Tarjan's
// algorithm, run iteratively.
func (g *Graph) StronglyConnected() [][]FileID {
	n := g.records.Len()
	const unvisited = -1
	index := make([]int, n)
	low := make([]int, n)
	onStack := make([]bool, n)
	for i := range index {
		index[i] = unvisited
	}

	var (
		counter int
		stack   []FileID
		comps   [][]FileID
		work    []frame
	)
	for start := 0; start < n; start++ {
		if index[start] != unvisited {
			continue
		}
		work = append(work[:0], frame{id: FileID(start)})
		index[start], low[start] = counter, counter
		counter++
		stack = append(stack, FileID(start))
		onStack[start] = true

		for len(work) > 0 {
			top := &work[len(work)-1]
			v := top.id
			if deps := g.deps[v]; top.next < len(deps) {
				w := deps[top.next]
				top.next++
				switch {
				case index[w] == unvisited:
					index[w], low[w] = counter, counter
					counter++
					stack = append(stack, w)
					onStack[w] = true
					work = append(work, frame{id: w})
				case onStack[w]:
					low[v] = min(low[v], index[w])
				}
				continue
			}

			work = work[:len(work)-1]
			if len(work) > 0 {
				parent := work[len(work)-1].id
				low[parent] = min(low[parent], low[v])
			}
			if low[v] != index[v] {
				continue
			}
			var comp []FileID
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				comp = append(comp, w)
				if w == v {
					break
				}
			}
			if len(comp) > 1 {
				slices.Sort(comp)
				comps = append(comps, comp)
			}
		}
	}
	slices.SortFunc(comps, func(a, b []FileID) int { return int(a[0]) - int(b[0]) })
	return comps
}

// Chain returns a shortest dependency path from one file to another,
// breadth first with neighbours in discovery order.
func (g *Graph) Chain(from, to FileID) ([]FileID, bool) {
	n := FileID(g.records.Len())
	if from >= n || to >= n {
		return nil, false
	}
	if from == to {
		return []FileID{from}, true
	}

	queue := []FileID{from}
	visited := map[FileID]bool{from: true}
	prev := make(map[FileID]FileID)

	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]

		for _, next := range g.deps[curr] {
			if visited[next] {
				continue
			}
			visited[next] = true
			prev[next] = curr

			if next == to {
				path := []FileID{to}
				for node := to; node != from; {
					p := prev[node]
					path = append(path, p)
					node = p
				}
				slices.Reverse(path)
				return path, true
			}
			queue = append(queue, next)
		}
	}
	return nil, false
}

// CyclePath returns one loop through the component's first file, starting and
// ending there.
func (g *Graph) CyclePath(comp []FileID) []FileID {
	if len(comp) == 0 {
		return nil
	}
	start := comp[0]
	for _, d := range g.deps[start] {
		if !slices.Contains(comp, d) {
			continue
		}
		if back, ok := g.Chain(d, start); ok {
			return append([]FileID{start}, back...)
		}
	}
	return nil
}
