// Package render turns a laid-out graph into drawable scenes: JSON for the
// live page, static SVG, and self-contained HTML.
package render

import (
	"github.com/msalah0e/ripple/internal/graph"
	"github.com/msalah0e/ripple/internal/interact"
	"github.com/msalah0e/ripple/internal/layout"
)

// SceneNode is one drawn node.
type SceneNode struct {
	ID                   string          `json:"id"`
	InteractionFrequency graph.Frequency `json:"interaction_frequency"`
	X                    float64         `json:"x"`
	Y                    float64         `json:"y"`
	Style                NodeStyle       `json:"style"`
}

// SceneLink is one drawn link. Source and Target index into Scene.Nodes.
type SceneLink struct {
	Source int     `json:"source"`
	Target int     `json:"target"`
	Value  float64 `json:"value"`
	Width  float64 `json:"width"`
}

// Scene is everything needed to draw one graph.
type Scene struct {
	Model     *graph.Model       `json:"-"`
	Hub       string             `json:"hub"`
	Nodes     []SceneNode        `json:"nodes"`
	Links     []SceneLink        `json:"links"`
	Viewport  layout.Viewport    `json:"viewport"`
	Transform interact.Transform `json:"transform"`
	Stroke    string             `json:"stroke"`
}

// NewScene snapshots sim for m under the view transform tr.
func NewScene(m *graph.Model, sim *layout.Simulation, tr interact.Transform) *Scene {
	styles := Style(m)
	pos := sim.Positions()

	nodes := make([]SceneNode, len(m.Nodes))
	for i, n := range m.Nodes {
		nodes[i] = SceneNode{
			ID:                   n.ID,
			InteractionFrequency: n.InteractionFrequency,
			X:                    pos[i].X,
			Y:                    pos[i].Y,
			Style:                styles[i],
		}
	}

	ends := sim.LinkEnds()
	links := make([]SceneLink, len(m.Links))
	for i, l := range m.Links {
		links[i] = SceneLink{
			Source: ends[i][0],
			Target: ends[i][1],
			Value:  l.Value,
			Width:  graph.StrokeWidth(l.Value),
		}
	}

	return &Scene{
		Model:     m,
		Hub:       m.Hub,
		Nodes:     nodes,
		Links:     links,
		Viewport:  sim.Viewport(),
		Transform: tr,
		Stroke:    LinkStroke,
	}
}

// Update copies a fresh position snapshot into the scene. Extra or missing
// positions are ignored.
func (s *Scene) Update(pos []layout.Point) {
	for i := range s.Nodes {
		if i >= len(pos) {
			return
		}
		s.Nodes[i].X = pos[i].X
		s.Nodes[i].Y = pos[i].Y
	}
}
