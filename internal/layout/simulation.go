// Package layout positions graph nodes with a velocity Verlet force
// simulation: link springs, pairwise charge, and centering, cooled by a
// decaying alpha.
package layout

import (
	"context"
	"errors"
	"math"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/msalah0e/ripple/internal/config"
	"github.com/msalah0e/ripple/internal/graph"
	"github.com/msalah0e/ripple/internal/logging"
)

// ErrUnknownNode is returned when a link names an id no node carries.
var ErrUnknownNode = errors.New("layout: link references unknown node")

var ticksTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "ripple_layout_ticks_total",
	Help: "Force simulation ticks computed",
})

const (
	initialRadius = 10
	distanceMin   = 1
)

var initialAngle = math.Pi * (3 - math.Sqrt(5))

// Viewport is the drawing area in pixels.
type Viewport struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Center returns the middle of the viewport.
func (v Viewport) Center() Point {
	return Point{X: v.Width / 2, Y: v.Height / 2}
}

// Config holds simulation parameters.
type Config struct {
	LinkDistance  float64
	Charge        float64
	AlphaMin      float64
	AlphaDecay    float64
	VelocityDecay float64
	Seed          int64
	Fallback      Viewport // used when the requested viewport is empty
}

// DefaultConfig returns the standard parameters.
func DefaultConfig() Config {
	return ConfigFrom(config.Default().Layout)
}

// ConfigFrom maps the [layout] config section.
func ConfigFrom(c config.LayoutConfig) Config {
	return Config{
		LinkDistance:  c.LinkDistance,
		Charge:        c.Charge,
		AlphaMin:      c.AlphaMin,
		AlphaDecay:    1 - math.Pow(c.AlphaMin, 1.0/300),
		VelocityDecay: c.VelocityDecay,
		Seed:          c.Seed,
		Fallback:      Viewport{Width: c.Width, Height: c.Height},
	}
}

// Frame is the state published after each tick.
type Frame struct {
	Tick      int     `json:"tick"`
	Alpha     float64 `json:"alpha"`
	Positions []Point `json:"positions"`
}

// Simulation owns the node state for one rendered graph. It is not safe for
// concurrent use; a single goroutine drives it.
type Simulation struct {
	nodes    []*SimNode
	forces   []force
	viewport Viewport

	alpha         float64
	alphaMin      float64
	alphaDecay    float64
	alphaTarget   float64
	velocityDecay float64

	tick      int
	running   bool
	listeners []func(Frame)
}

// Initialize builds a fresh simulation for m. Every call starts from the
// initial spiral placement, so repeated searches never inherit positions.
func Initialize(ctx context.Context, m *graph.Model, vp Viewport, cfg Config) (*Simulation, error) {
	if vp.Width <= 0 || vp.Height <= 0 {
		logging.FromContext(ctx).Warn("empty viewport, using fallback",
			"width", vp.Width, "height", vp.Height,
			"fallback_width", cfg.Fallback.Width, "fallback_height", cfg.Fallback.Height)
		vp = cfg.Fallback
	}

	nodes := make([]*SimNode, len(m.Nodes))
	for i, n := range m.Nodes {
		r := initialRadius * math.Sqrt(0.5+float64(i))
		a := float64(i) * initialAngle
		nodes[i] = &SimNode{Index: i, ID: n.ID, X: r * math.Cos(a), Y: r * math.Sin(a)}
	}

	j := newJiggle(cfg.Seed)
	link, err := newLinkForce(nodes, m.Links, cfg.LinkDistance, j)
	if err != nil {
		return nil, err
	}
	c := vp.Center()

	s := &Simulation{
		nodes:    nodes,
		viewport: vp,
		forces: []force{
			link,
			&manyBody{strength: cfg.Charge, distanceMin: distanceMin, jiggle: j},
			&center{x: c.X, y: c.Y},
		},
		alpha:         1,
		alphaMin:      cfg.AlphaMin,
		alphaDecay:    cfg.AlphaDecay,
		velocityDecay: 1 - cfg.VelocityDecay,
		running:       true,
	}
	return s, nil
}

// OnTick registers fn to receive every frame.
func (s *Simulation) OnTick(fn func(Frame)) {
	s.listeners = append(s.listeners, fn)
}

// Step advances one tick if the simulation is active and reports whether
// it ran.
func (s *Simulation) Step() bool {
	if !s.running {
		return false
	}

	s.alpha += (s.alphaTarget - s.alpha) * s.alphaDecay
	for _, f := range s.forces {
		f.apply(s.nodes, s.alpha)
	}
	for _, n := range s.nodes {
		if x, y, ok := n.Fixed(); ok {
			n.X, n.Y = x, y
			n.VX, n.VY = 0, 0
			continue
		}
		n.VX *= s.velocityDecay
		n.VY *= s.velocityDecay
		n.X += n.VX
		n.Y += n.VY
	}
	s.tick++
	ticksTotal.Inc()

	if s.alpha < s.alphaMin {
		s.running = false
	}

	if len(s.listeners) > 0 {
		f := s.Frame()
		for _, fn := range s.listeners {
			fn(f)
		}
	}
	return true
}

// Settle steps until the simulation comes to rest or maxTicks ticks have
// run, and returns the number of ticks taken.
func (s *Simulation) Settle(maxTicks int) int {
	n := 0
	for n < maxTicks && s.Step() {
		n++
	}
	return n
}

// Restart reactivates a stopped simulation without resetting alpha.
func (s *Simulation) Restart() { s.running = true }

// Stop halts the simulation.
func (s *Simulation) Stop() { s.running = false }

// Active reports whether Step would advance.
func (s *Simulation) Active() bool { return s.running }

// SetAlphaTarget sets the value alpha decays toward.
func (s *Simulation) SetAlphaTarget(v float64) { s.alphaTarget = v }

// AlphaTarget returns the current alpha target.
func (s *Simulation) AlphaTarget() float64 { return s.alphaTarget }

// Alpha returns the current alpha.
func (s *Simulation) Alpha() float64 { return s.alpha }

// Ticks returns the number of ticks run so far.
func (s *Simulation) Ticks() int { return s.tick }

// Viewport returns the effective viewport after the empty-size guard.
func (s *Simulation) Viewport() Viewport { return s.viewport }

// Len returns the node count.
func (s *Simulation) Len() int { return len(s.nodes) }

// Node returns node i, or nil when i is out of range.
func (s *Simulation) Node(i int) *SimNode {
	if i < 0 || i >= len(s.nodes) {
		return nil
	}
	return s.nodes[i]
}

// Positions returns a snapshot of every node position.
func (s *Simulation) Positions() []Point {
	out := make([]Point, len(s.nodes))
	for i, n := range s.nodes {
		out[i] = Point{X: n.X, Y: n.Y}
	}
	return out
}

// Frame returns the current state as a frame.
func (s *Simulation) Frame() Frame {
	return Frame{Tick: s.tick, Alpha: s.alpha, Positions: s.Positions()}
}

// LinkEnds returns the resolved (source, target) node indices of every
// link, in link order.
func (s *Simulation) LinkEnds() [][2]int {
	lf, ok := s.forces[0].(*linkForce)
	if !ok {
		return nil
	}
	out := make([][2]int, len(lf.links))
	for i, l := range lf.links {
		out[i] = [2]int{l.source.Index, l.target.Index}
	}
	return out
}
