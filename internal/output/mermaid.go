package output

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode"
)

type MermaidGenerator struct {
	view *View
}

func NewMermaidGenerator(v *View) *MermaidGenerator {
	return &MermaidGenerator{view: v}
}

func (m *MermaidGenerator) Generate() (string, error) {
	var b strings.Builder
	v := m.view
	b.WriteString("%%{init: {'flowchart': {'nodeSpacing': 80, 'rankSpacing': 110, 'curve': 'basis'}}}%%\n")
	b.WriteString("flowchart LR\n")

	ids := makeMermaidIDs(v.Labels)
	var ordered, omitted, cyclic []string
	for f := range v.Graph.Records().All() {
		label := v.label(f.ID)
		b.WriteString(fmt.Sprintf("  %s[\"%s\"]\n", ids[f.ID], escapeMermaidLabel(label)))
		if v.omitted[f.ID] {
			omitted = append(omitted, ids[f.ID])
		} else {
			ordered = append(ordered, ids[f.ID])
		}
		if _, ok := v.inCycle[f.ID]; ok {
			cyclic = append(cyclic, ids[f.ID])
		}
	}

	b.WriteString("\n")
	linkIndex := 0
	var cycleLinks, suppressedLinks []int
	for _, e := range v.Graph.Edges() {
		b.WriteString(fmt.Sprintf("  %s -->|%s| %s\n", ids[e.From], escapeMermaidLabel(e.Name), ids[e.To]))
		if v.cycleEdge(e) {
			cycleLinks = append(cycleLinks, linkIndex)
		}
		linkIndex++
	}
	for _, s := range v.Graph.Suppressed() {
		b.WriteString(fmt.Sprintf("  %s -.->|%s| %s\n", ids[s.From], escapeMermaidLabel(s.Name), ids[s.To]))
		suppressedLinks = append(suppressedLinks, linkIndex)
		linkIndex++
	}

	b.WriteString("\n")
	if len(ordered) > 0 {
		b.WriteString("  classDef orderedNode fill:#f7fbff,stroke:#4d6480,stroke-width:1px;\n")
		b.WriteString("  class " + strings.Join(ordered, ",") + " orderedNode;\n")
	}
	if len(omitted) > 0 {
		b.WriteString("  classDef omittedNode fill:#ffe5e5,stroke:#c62828,stroke-width:2px;\n")
		b.WriteString("  class " + strings.Join(omitted, ",") + " omittedNode;\n")
	}
	if len(cyclic) > 0 {
		b.WriteString("  classDef cycleNode stroke:#c62828,stroke-width:3px;\n")
		b.WriteString("  class " + strings.Join(cyclic, ",") + " cycleNode;\n")
	}
	if len(cycleLinks) > 0 {
		b.WriteString("  linkStyle " + joinInts(cycleLinks) + " stroke:#d62728,stroke-width:3px;\n")
	}
	if len(suppressedLinks) > 0 {
		b.WriteString("  linkStyle " + joinInts(suppressedLinks) + " stroke:#9e9e9e,stroke-dasharray:4 4;\n")
	}

	return b.String(), nil
}

// mermaidKeywords break flowchart parsing when used as a bare node id.
var mermaidKeywords = map[string]bool{
	"end": true, "graph": true, "flowchart": true, "subgraph": true,
	"class": true, "classdef": true, "click": true, "style": true,
	"linkstyle": true, "direction": true, "default": true,
}

func sanitizeMermaidID(name string) string {
	base := filepath.Base(name)
	if base == "." || base == string(filepath.Separator) {
		base = ""
	}
	name = strings.TrimSuffix(base, filepath.Ext(base))
	if name == "" {
		return "f"
	}
	var b strings.Builder
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}
		b.WriteRune('_')
	}
	out := b.String()
	if unicode.IsDigit(rune(out[0])) || mermaidKeywords[strings.ToLower(out)] {
		return "f_" + out
	}
	return out
}

// makeMermaidIDs derives a node id per file from its base name, suffixing
// repeats in input order until the id is unused.
func makeMermaidIDs(labels []string) []string {
	ids := make([]string, len(labels))
	taken := make(map[string]bool, len(labels))
	next := make(map[string]int, len(labels))
	for i, label := range labels {
		base := sanitizeMermaidID(label)
		id := base
		for n := max(next[base], 2); taken[id]; n++ {
			id = fmt.Sprintf("%s_%d", base, n)
			next[base] = n + 1
		}
		taken[id] = true
		ids[i] = id
	}
	return ids
}

func escapeMermaidLabel(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

func joinInts(v []int) string {
	parts := make([]string, len(v))
	for i, n := range v {
		parts[i] = fmt.Sprint(n)
	}
	return strings.Join(parts, ",")
}
