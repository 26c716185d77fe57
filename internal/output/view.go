package output

import (
	"fmt"

	"svorder/internal/engine/graph"
)

// View is what the graph generators render: the resolved graph, a display
// label per FileID and the strongly connected components to highlight.
type View struct {
	Graph  *graph.Graph
	Labels []string
	Cycles [][]graph.FileID

	inCycle   map[graph.FileID]int
	omitted   map[graph.FileID]bool
	positions map[graph.FileID]int
}

// NewView indexes g for rendering. labels must hold one entry per file.
func NewView(g *graph.Graph, labels []string, ordering graph.Ordering) (*View, error) {
	if len(labels) != g.Records().Len() {
		return nil, fmt.Errorf("got %d labels for %d files", len(labels), g.Records().Len())
	}
	v := &View{
		Graph:     g,
		Labels:    labels,
		Cycles:    g.StronglyConnected(),
		inCycle:   make(map[graph.FileID]int),
		omitted:   make(map[graph.FileID]bool, len(ordering.Omitted)),
		positions: make(map[graph.FileID]int, len(ordering.Order)),
	}
	for i, comp := range v.Cycles {
		for _, id := range comp {
			v.inCycle[id] = i
		}
	}
	for _, id := range ordering.Omitted {
		v.omitted[id] = true
	}
	for i, id := range ordering.Order {
		v.positions[id] = i
	}
	return v, nil
}

func (v *View) label(id graph.FileID) string { return v.Labels[id] }

// cycleEdge reports whether both ends sit in the same component.
func (v *View) cycleEdge(e graph.Edge) bool {
	a, ok := v.inCycle[e.From]
	if !ok {
		return false
	}
	b, ok := v.inCycle[e.To]
	return ok && a == b
}

const (
	GraphDOT     = "dot"
	GraphTSV     = "tsv"
	GraphMermaid = "mermaid"
)

// RenderGraph renders v in one of the graph export formats.
func RenderGraph(format string, v *View) (string, error) {
	switch format {
	case "", GraphDOT:
		return NewDOTGenerator(v).Generate()
	case GraphTSV:
		return NewTSVGenerator(v).Generate()
	case GraphMermaid:
		return NewMermaidGenerator(v).Generate()
	default:
		return "", fmt.Errorf("unknown graph format %q", format)
	}
}
