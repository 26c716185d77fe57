package output

import (
	"fmt"
	"strings"

	"svorder/internal/engine/graph"
)

type DOTGenerator struct {
	view *View
}

func NewDOTGenerator(v *View) *DOTGenerator {
	return &DOTGenerator{view: v}
}

func (d *DOTGenerator) Generate() (string, error) {
	var buf strings.Builder
	v := d.view

	buf.WriteString("digraph dependencies {\n")
	buf.WriteString("  rankdir=LR;\n")
	buf.WriteString("  node [shape=box, style=rounded, fontname=\"Helvetica\", fontsize=10];\n")
	buf.WriteString("  edge [fontname=\"Helvetica\", fontsize=8, penwidth=1.2];\n")
	buf.WriteString("  ranksep=1.5;\n")
	buf.WriteString("  nodesep=0.6;\n")
	buf.WriteString("  splines=polyline;\n")
	buf.WriteString("  overlap=false;\n\n")

	for f := range v.Graph.Records().All() {
		name := dotQuote(v.label(f.ID))
		switch {
		case v.omitted[f.ID]:
			_, cyc := v.inCycle[f.ID]
			color := "grey"
			if cyc {
				color = "red"
			}
			buf.WriteString(fmt.Sprintf("  %s [label=%s, fillcolor=\"mistyrose\", style=\"rounded,filled\", color=\"%s\", penwidth=2.0];\n",
				name, dotQuote(v.label(f.ID)+"\\n(omitted)"), color))
		default:
			buf.WriteString(fmt.Sprintf("  %s [label=%s, color=\"darkslategrey\"];\n",
				name, dotQuote(fmt.Sprintf("%s\\n#%d", v.label(f.ID), v.positions[f.ID]+1))))
		}
	}
	buf.WriteString("\n")

	for _, e := range v.Graph.Edges() {
		from, to := dotQuote(v.label(e.From)), dotQuote(v.label(e.To))
		switch {
		case v.cycleEdge(e):
			buf.WriteString(fmt.Sprintf("  %s -> %s [color=\"red\", penwidth=3.0, label=\"CYCLE\"];\n", from, to))
		case e.Kind == graph.EdgePackage:
			buf.WriteString(fmt.Sprintf("  %s -> %s [color=\"royalblue\", penwidth=1.8, label=%s];\n", from, to, dotQuote(e.Name)))
		default:
			buf.WriteString(fmt.Sprintf("  %s -> %s [color=\"forestgreen\", penwidth=1.8, label=%s];\n", from, to, dotQuote(e.Name)))
		}
	}
	for _, s := range v.Graph.Suppressed() {
		buf.WriteString(fmt.Sprintf("  %s -> %s [color=\"grey\", style=dashed, label=%s];\n",
			dotQuote(v.label(s.From)), dotQuote(v.label(s.To)), dotQuote(s.Name+" (suppressed by "+s.Via+")")))
	}

	buf.WriteString("\n  subgraph cluster_legend {\n")
	buf.WriteString("    label=\"Legend\";\n")
	buf.WriteString("    style=dashed;\n")
	buf.WriteString("    legend_package [label=\"Package Use\", shape=plaintext, fontcolor=\"royalblue\"];\n")
	buf.WriteString("    legend_module [label=\"Module Use\", shape=plaintext, fontcolor=\"forestgreen\"];\n")
	buf.WriteString("    legend_suppressed [label=\"Suppressed Module Use\", shape=plaintext, fontcolor=\"grey\"];\n")
	buf.WriteString("    legend_cycle [label=\"Cycle\", fillcolor=\"mistyrose\", color=\"red\", style=\"rounded,filled\"];\n")
	buf.WriteString("  }\n")

	buf.WriteString("}\n")

	return buf.String(), nil
}

func dotQuote(s string) string {
	return "\"" + strings.ReplaceAll(s, "\"", "\\\"") + "\""
}
