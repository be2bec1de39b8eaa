package interact

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/msalah0e/ripple/internal/graph"
	"github.com/msalah0e/ripple/internal/layout"
)

func newSim(t *testing.T) *layout.Simulation {
	t.Helper()
	m := graph.Build([]graph.Row{
		{Address: "0xB", InteractionFrequency: 3},
		{Address: "0xC", InteractionFrequency: 1},
	}, "0xA", graph.HubAppend)
	s, err := layout.Initialize(context.Background(), m, layout.Viewport{Width: 800, Height: 600}, layout.DefaultConfig())
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	return s
}

func near(a, b layout.Point) bool {
	return math.Abs(a.X-b.X) < 1e-9 && math.Abs(a.Y-b.Y) < 1e-9
}

func TestTransformInvert(t *testing.T) {
	tr := Transform{X: 30, Y: -20, K: 2}
	p := layout.Point{X: 12, Y: 7}

	if got := tr.Invert(tr.Apply(p)); !near(got, p) {
		t.Errorf("Invert(Apply(p)) = %+v, want %+v", got, p)
	}
	if got := tr.String(); got != "translate(30,-20) scale(2)" {
		t.Errorf("String() = %q", got)
	}
}

func TestScaleClamped(t *testing.T) {
	z := DefaultZoom
	anchor := layout.Point{X: 400, Y: 300}

	tests := []struct {
		factor float64
		want   float64
	}{
		{2, 2},
		{100, 5},
		{0.01, 0.5},
		{1, 1},
	}
	for _, tt := range tests {
		got := z.ScaleBy(Identity, tt.factor, anchor)
		if got.K != tt.want {
			t.Errorf("ScaleBy(%v).K = %v, want %v", tt.factor, got.K, tt.want)
		}
	}
}

func TestScaleKeepsAnchorFixed(t *testing.T) {
	z := DefaultZoom
	start := Transform{X: 15, Y: 40, K: 1.5}
	anchor := layout.Point{X: 250, Y: 120}

	world := start.Invert(anchor)
	next := z.ScaleBy(start, 1.7, anchor)

	if got := next.Apply(world); !near(got, anchor) {
		t.Errorf("anchor moved to %+v, want %+v", got, anchor)
	}
}

func TestWheelFactor(t *testing.T) {
	if f := WheelFactor(-500, DeltaPixel); math.Abs(f-2) > 1e-12 {
		t.Errorf("pixel wheel factor = %v, want 2", f)
	}
	if f := WheelFactor(20, DeltaLine); math.Abs(f-0.5) > 1e-12 {
		t.Errorf("line wheel factor = %v, want 0.5", f)
	}
	if f := WheelFactor(0, DeltaPage); f != 1 {
		t.Errorf("zero delta factor = %v, want 1", f)
	}
}

func TestPanLeavesNodes(t *testing.T) {
	sim := newSim(t)
	l := NewLayer(sim, DefaultZoom, 0.3)
	before := sim.Positions()

	tr := l.Pan(10, -5)
	if tr != (Transform{X: 10, Y: -5, K: 1}) {
		t.Errorf("pan transform = %+v", tr)
	}
	l.Wheel(-100, DeltaPixel, layout.Point{X: 1, Y: 1})

	after := sim.Positions()
	for i := range before {
		if before[i] != after[i] {
			t.Errorf("node %d moved during pan/zoom", i)
		}
	}
}

func TestDragLifecycle(t *testing.T) {
	sim := newSim(t)
	sim.Settle(1000)
	l := NewLayer(sim, DefaultZoom, 0.3)
	n := sim.Node(0)
	start := layout.Point{X: n.X, Y: n.Y}

	if err := l.DragStart(0); err != nil {
		t.Fatalf("DragStart: %v", err)
	}
	if sim.AlphaTarget() != 0.3 || !sim.Active() {
		t.Errorf("drag start should reheat: target=%v active=%v", sim.AlphaTarget(), sim.Active())
	}
	if x, y, ok := n.Fixed(); !ok || x != start.X || y != start.Y {
		t.Errorf("node pinned at (%v, %v, %v), want current position", x, y, ok)
	}

	l.Pan(100, 50)
	l.ZoomTo(2, layout.Point{X: 100, Y: 50})
	screen := layout.Point{X: 300, Y: 250}
	if err := l.Drag(0, screen); err != nil {
		t.Fatalf("Drag: %v", err)
	}
	sim.Step()
	want := l.Transform().Invert(screen)
	if !near(layout.Point{X: n.X, Y: n.Y}, want) {
		t.Errorf("dragged node at (%v, %v), want %+v", n.X, n.Y, want)
	}

	if err := l.DragEnd(0); err != nil {
		t.Fatalf("DragEnd: %v", err)
	}
	if sim.AlphaTarget() != 0 {
		t.Errorf("alpha target after drag end = %v, want 0", sim.AlphaTarget())
	}
	if n.State() != layout.Free {
		t.Errorf("node state after drag end = %v, want free", n.State())
	}
}

func TestOverlappingDrags(t *testing.T) {
	sim := newSim(t)
	l := NewLayer(sim, DefaultZoom, 0.3)

	if err := l.DragStart(0); err != nil {
		t.Fatal(err)
	}
	if err := l.DragStart(1); err != nil {
		t.Fatal(err)
	}
	if err := l.DragEnd(0); err != nil {
		t.Fatal(err)
	}
	if sim.AlphaTarget() != 0.3 {
		t.Errorf("alpha target dropped while a drag is still active: %v", sim.AlphaTarget())
	}
	if err := l.DragEnd(1); err != nil {
		t.Fatal(err)
	}
	if sim.AlphaTarget() != 0 {
		t.Errorf("alpha target = %v, want 0 after last drag", sim.AlphaTarget())
	}
}

func TestInvalidDragTransitions(t *testing.T) {
	sim := newSim(t)
	l := NewLayer(sim, DefaultZoom, 0.3)

	if err := l.Drag(0, layout.Point{}); !errors.Is(err, ErrNotDragging) {
		t.Errorf("Drag without start: %v", err)
	}
	if err := l.DragEnd(0); !errors.Is(err, ErrNotDragging) {
		t.Errorf("DragEnd without start: %v", err)
	}
	if err := l.DragStart(99); !errors.Is(err, layout.ErrUnknownNode) {
		t.Errorf("DragStart out of range: %v", err)
	}

	if err := l.DragStart(1); err != nil {
		t.Fatal(err)
	}
	if err := l.DragStart(1); !errors.Is(err, ErrAlreadyDragging) {
		t.Errorf("double DragStart: %v", err)
	}
}

func TestReset(t *testing.T) {
	l := NewLayer(newSim(t), DefaultZoom, 0.3)
	l.Pan(5, 5)
	_ = l.DragStart(0)

	next := newSim(t)
	l.Reset(next)
	if l.Transform() != Identity || l.Dragging() != 0 || l.Simulation() != next {
		t.Errorf("reset left state behind: %+v dragging=%d", l.Transform(), l.Dragging())
	}
}
