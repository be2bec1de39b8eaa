package layout

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/msalah0e/ripple/internal/graph"
)

// force mutates node velocities (or positions) for one tick at alpha.
type force interface {
	apply(nodes []*SimNode, alpha float64)
}

// jiggle returns a tiny random offset used to separate coincident nodes.
type jiggle struct {
	rng *rand.Rand
}

func newJiggle(seed int64) *jiggle {
	return &jiggle{rng: rand.New(rand.NewPCG(uint64(seed), 0x9e3779b97f4a7c15))}
}

func (j *jiggle) next() float64 {
	return (j.rng.Float64() - 0.5) * 1e-6
}

// ─── Link ───

type resolvedLink struct {
	source, target *SimNode
	distance       float64
	strength       float64
	bias           float64
}

type linkForce struct {
	links  []resolvedLink
	jiggle *jiggle
}

// newLinkForce resolves link endpoints by node id. When several nodes share
// an id the last one wins.
func newLinkForce(nodes []*SimNode, links []graph.Link, distance float64, j *jiggle) (*linkForce, error) {
	byID := make(map[string]*SimNode, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
	}

	resolved := make([]resolvedLink, len(links))
	count := make([]int, len(nodes))
	for i, l := range links {
		s, ok := byID[l.Source]
		if !ok {
			return nil, fmt.Errorf("link %d source %q: %w", i, l.Source, ErrUnknownNode)
		}
		t, ok := byID[l.Target]
		if !ok {
			return nil, fmt.Errorf("link %d target %q: %w", i, l.Target, ErrUnknownNode)
		}
		resolved[i] = resolvedLink{source: s, target: t, distance: distance}
		count[s.Index]++
		count[t.Index]++
	}

	for i := range resolved {
		cs, ct := count[resolved[i].source.Index], count[resolved[i].target.Index]
		resolved[i].strength = 1 / float64(min(cs, ct))
		resolved[i].bias = float64(cs) / float64(cs+ct)
	}
	return &linkForce{links: resolved, jiggle: j}, nil
}

func (f *linkForce) apply(_ []*SimNode, alpha float64) {
	for _, l := range f.links {
		s, t := l.source, l.target
		x := t.X + t.VX - s.X - s.VX
		if x == 0 {
			x = f.jiggle.next()
		}
		y := t.Y + t.VY - s.Y - s.VY
		if y == 0 {
			y = f.jiggle.next()
		}
		d := math.Sqrt(x*x + y*y)
		d = (d - l.distance) / d * alpha * l.strength
		x *= d
		y *= d

		t.VX -= x * l.bias
		t.VY -= y * l.bias
		s.VX += x * (1 - l.bias)
		s.VY += y * (1 - l.bias)
	}
}

// ─── Many-body ───

// manyBody is an exact pairwise charge force. Graphs here are a single hub
// with its counterparties, small enough that a quadtree does not pay off.
type manyBody struct {
	strength    float64
	distanceMin float64
	jiggle      *jiggle
}

func (f *manyBody) apply(nodes []*SimNode, alpha float64) {
	min2 := f.distanceMin * f.distanceMin
	for _, n := range nodes {
		for _, o := range nodes {
			if o == n {
				continue
			}
			x := o.X - n.X
			y := o.Y - n.Y
			if x == 0 {
				x = f.jiggle.next()
			}
			if y == 0 {
				y = f.jiggle.next()
			}
			l := x*x + y*y
			if l < min2 {
				l = math.Sqrt(min2 * l)
			}
			w := f.strength * alpha / l
			n.VX += x * w
			n.VY += y * w
		}
	}
}

// ─── Center ───

// center translates all nodes so their mean position sits on (x, y). It
// ignores alpha.
type center struct {
	x, y float64
}

func (f *center) apply(nodes []*SimNode, _ float64) {
	if len(nodes) == 0 {
		return
	}
	var sx, sy float64
	for _, n := range nodes {
		sx += n.X
		sy += n.Y
	}
	sx = sx/float64(len(nodes)) - f.x
	sy = sy/float64(len(nodes)) - f.y
	for _, n := range nodes {
		n.X -= sx
		n.Y -= sy
	}
}
