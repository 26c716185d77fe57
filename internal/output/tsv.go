package output

import (
	"fmt"
	"strings"
)

type TSVGenerator struct {
	view *View
}

func NewTSVGenerator(v *View) *TSVGenerator {
	return &TSVGenerator{view: v}
}

// Generate lists one row per edge. Suppressed module uses are included with
// kind "suppressed" and the package that caused them in Via.
func (t *TSVGenerator) Generate() (string, error) {
	var buf strings.Builder
	v := t.view

	buf.WriteString("From\tTo\tKind\tName\tVia\tCycle\n")
	for _, e := range v.Graph.Edges() {
		buf.WriteString(fmt.Sprintf("%s\t%s\t%s\t%s\t\t%t\n",
			v.label(e.From), v.label(e.To), e.Kind, e.Name, v.cycleEdge(e)))
	}
	for _, s := range v.Graph.Suppressed() {
		buf.WriteString(fmt.Sprintf("%s\t%s\tsuppressed\t%s\t%s\tfalse\n",
			v.label(s.From), v.label(s.To), s.Name, s.Via))
	}

	return buf.String(), nil
}
