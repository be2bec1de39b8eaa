package interact

import (
	"errors"
	"fmt"

	"github.com/msalah0e/ripple/internal/layout"
)

var (
	// ErrNotDragging is returned for a drag move or end on a node with no
	// drag in progress.
	ErrNotDragging = errors.New("interact: node is not being dragged")
	// ErrAlreadyDragging is returned when a drag starts on a node that is
	// already held.
	ErrAlreadyDragging = errors.New("interact: node is already being dragged")
)

// Layer holds the view transform and the drag state for one simulation.
// Like the simulation it is driven by a single goroutine.
type Layer struct {
	sim        *layout.Simulation
	zoom       Zoom
	transform  Transform
	dragTarget float64
	dragging   map[int]struct{}
}

// NewLayer creates a layer over sim with the identity transform.
func NewLayer(sim *layout.Simulation, zoom Zoom, dragAlphaTarget float64) *Layer {
	return &Layer{
		sim:        sim,
		zoom:       zoom,
		transform:  Identity,
		dragTarget: dragAlphaTarget,
		dragging:   make(map[int]struct{}),
	}
}

// Reset attaches a new simulation, drops all drags and returns the view to
// the identity transform.
func (l *Layer) Reset(sim *layout.Simulation) {
	l.sim = sim
	l.transform = Identity
	clear(l.dragging)
}

// Simulation returns the attached simulation.
func (l *Layer) Simulation() *layout.Simulation { return l.sim }

// Transform returns the current view transform.
func (l *Layer) Transform() Transform { return l.transform }

// Dragging reports how many drags are in progress.
func (l *Layer) Dragging() int { return len(l.dragging) }

func (l *Layer) node(i int) (*layout.SimNode, error) {
	if l.sim == nil {
		return nil, fmt.Errorf("node %d: %w", i, layout.ErrUnknownNode)
	}
	n := l.sim.Node(i)
	if n == nil {
		return nil, fmt.Errorf("node %d: %w", i, layout.ErrUnknownNode)
	}
	return n, nil
}

// DragStart begins dragging node i. The first concurrent drag reheats the
// simulation. The node is pinned where it currently is.
func (l *Layer) DragStart(i int) error {
	n, err := l.node(i)
	if err != nil {
		return err
	}
	if _, ok := l.dragging[i]; ok {
		return ErrAlreadyDragging
	}
	if len(l.dragging) == 0 {
		l.sim.SetAlphaTarget(l.dragTarget)
		l.sim.Restart()
	}
	l.dragging[i] = struct{}{}
	n.Pin(n.X, n.Y)
	return nil
}

// Drag moves node i under the pointer at screen position p.
func (l *Layer) Drag(i int, p layout.Point) error {
	n, err := l.node(i)
	if err != nil {
		return err
	}
	if _, ok := l.dragging[i]; !ok || n.State() != layout.Pinned {
		return ErrNotDragging
	}
	w := l.transform.Invert(p)
	n.Pin(w.X, w.Y)
	return nil
}

// DragEnd releases node i. When no drags remain the simulation is allowed
// to cool again.
func (l *Layer) DragEnd(i int) error {
	n, err := l.node(i)
	if err != nil {
		return err
	}
	if _, ok := l.dragging[i]; !ok {
		return ErrNotDragging
	}
	delete(l.dragging, i)
	if len(l.dragging) == 0 {
		l.sim.SetAlphaTarget(0)
	}
	n.Unpin()
	return nil
}

// Wheel zooms around the screen anchor.
func (l *Layer) Wheel(deltaY float64, mode int, anchor layout.Point) Transform {
	l.transform = l.zoom.ScaleBy(l.transform, WheelFactor(deltaY, mode), anchor)
	return l.transform
}

// ZoomTo sets the scale around the screen anchor.
func (l *Layer) ZoomTo(k float64, anchor layout.Point) Transform {
	l.transform = l.zoom.ScaleTo(l.transform, k, anchor)
	return l.transform
}

// Pan moves the view by (dx, dy) screen pixels. Node positions are not
// touched.
func (l *Layer) Pan(dx, dy float64) Transform {
	l.transform = l.zoom.TranslateBy(l.transform, dx, dy)
	return l.transform
}
