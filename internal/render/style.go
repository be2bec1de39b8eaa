package render

import "github.com/msalah0e/ripple/internal/graph"

// Drawing constants.
const (
	HubRadius  = 15
	NodeRadius = 10
	HubFill    = "#ff6b6b"
	NodeFill   = "#4CAF50"
	LinkStroke = "#aaa"

	LabelFontSize = "10px"
	LabelFill     = "white"
	LabelDX       = 15
	LabelDY       = ".35em"
)

// NodeStyle is how one node is drawn.
type NodeStyle struct {
	Radius float64 `json:"r"`
	Fill   string  `json:"fill"`
	Hub    bool    `json:"hub"`
}

// Style computes node styles once for m. Every node whose id equals the hub
// id gets the hub look, including a duplicate left by append mode.
func Style(m *graph.Model) []NodeStyle {
	out := make([]NodeStyle, len(m.Nodes))
	for i := range m.Nodes {
		if m.IsHub(i) {
			out[i] = NodeStyle{Radius: HubRadius, Fill: HubFill, Hub: true}
		} else {
			out[i] = NodeStyle{Radius: NodeRadius, Fill: NodeFill}
		}
	}
	return out
}
