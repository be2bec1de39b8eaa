package graph

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// ExportJSON returns the model as pretty-printed JSON.
func (m *Model) ExportJSON() ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

// ExportYAML returns the model as YAML.
func (m *Model) ExportYAML() ([]byte, error) {
	return yaml.Marshal(m)
}

// ExportDOT returns the model in Graphviz DOT format. Edge pen widths follow
// StrokeWidth; the hub is filled red, counterparties green.
func (m *Model) ExportDOT() string {
	var b strings.Builder
	b.WriteString("digraph ripple {\n")
	b.WriteString("  layout=neato;\n")
	b.WriteString("  overlap=false;\n")
	b.WriteString("  node [shape=circle, style=filled, fontsize=10];\n\n")

	for i, n := range m.Nodes {
		if m.IsHub(i) {
			b.WriteString(fmt.Sprintf("  %q [label=%q, fillcolor=\"#ff6b6b\", width=0.4];\n", n.ID, n.ID))
			continue
		}
		b.WriteString(fmt.Sprintf("  %q [label=%q, fillcolor=\"#4CAF50\", width=0.27, tooltip=%q];\n",
			n.ID, n.ID, "interactions: "+n.InteractionFrequency.String()))
	}

	b.WriteString("\n")
	for _, l := range m.Links {
		b.WriteString(fmt.Sprintf("  %q -> %q [penwidth=%.3f, color=\"#aaaaaa\"];\n", l.Source, l.Target, StrokeWidth(l.Value)))
	}

	b.WriteString("}\n")
	return b.String()
}

// RenderTree produces a terminal tree view of the hub and its
// counterparties, in node order.
func RenderTree(m *Model, brandFn, subtleFn, infoFn func(string) string) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("  ● %s\n", brandFn(m.Hub)))

	var spokes []Node
	for i, n := range m.Nodes {
		if !m.IsHub(i) {
			spokes = append(spokes, n)
		}
	}
	if len(spokes) == 0 {
		b.WriteString(fmt.Sprintf("  └── %s\n", subtleFn("no counterparties")))
		return b.String()
	}

	b.WriteString("  │\n")
	for i, n := range spokes {
		prefix := "  ├── "
		if i == len(spokes)-1 {
			prefix = "  └── "
		}
		b.WriteString(fmt.Sprintf("%s%s %s %s\n", prefix, infoFn(n.InteractionFrequency.String()), subtleFn("──"), n.ID))
	}
	return b.String()
}
