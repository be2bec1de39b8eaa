// Package interact maps pointer gestures onto the view transform and the
// layout simulation.
package interact

import (
	"fmt"
	"math"

	"github.com/msalah0e/ripple/internal/config"
	"github.com/msalah0e/ripple/internal/layout"
)

// Transform maps world coordinates to screen coordinates:
// screen = world*K + (X, Y).
type Transform struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	K float64 `json:"k"`
}

// Identity is the untransformed view.
var Identity = Transform{K: 1}

// Apply maps a world point to the screen.
func (t Transform) Apply(p layout.Point) layout.Point {
	return layout.Point{X: p.X*t.K + t.X, Y: p.Y*t.K + t.Y}
}

// Invert maps a screen point to world coordinates.
func (t Transform) Invert(p layout.Point) layout.Point {
	return layout.Point{X: (p.X - t.X) / t.K, Y: (p.Y - t.Y) / t.K}
}

// String renders the transform as an SVG transform attribute.
func (t Transform) String() string {
	return fmt.Sprintf("translate(%g,%g) scale(%g)", t.X, t.Y, t.K)
}

// Zoom bounds the scale factor.
type Zoom struct {
	Min float64
	Max float64
}

// DefaultZoom is the [0.5, 5] scale extent.
var DefaultZoom = Zoom{Min: 0.5, Max: 5}

// ZoomFrom maps the [view] config section.
func ZoomFrom(c config.ViewConfig) Zoom {
	return Zoom{Min: c.MinZoom, Max: c.MaxZoom}
}

func (z Zoom) clamp(k float64) float64 {
	return math.Max(z.Min, math.Min(z.Max, k))
}

// ScaleTo sets the scale to k, clamped, keeping the world point under the
// screen anchor fixed.
func (z Zoom) ScaleTo(t Transform, k float64, anchor layout.Point) Transform {
	k = z.clamp(k)
	w := Transform{K: k}.Apply(t.Invert(anchor))
	return Transform{X: anchor.X - w.X, Y: anchor.Y - w.Y, K: k}
}

// ScaleBy multiplies the scale by factor around anchor.
func (z Zoom) ScaleBy(t Transform, factor float64, anchor layout.Point) Transform {
	return z.ScaleTo(t, t.K*factor, anchor)
}

// TranslateBy pans the view by (dx, dy) screen pixels.
func (z Zoom) TranslateBy(t Transform, dx, dy float64) Transform {
	return Transform{X: t.X + dx, Y: t.Y + dy, K: t.K}
}

// Wheel delta modes as reported by browsers.
const (
	DeltaPixel = 0
	DeltaLine  = 1
	DeltaPage  = 2
)

// WheelFactor converts a wheel event into a scale multiplier.
func WheelFactor(deltaY float64, mode int) float64 {
	unit := 0.002
	switch mode {
	case DeltaLine:
		unit = 0.05
	case DeltaPage:
		unit = 1
	}
	return math.Pow(2, -deltaY*unit)
}
