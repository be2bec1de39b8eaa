package layout

// NodeState reports whether a node moves under the forces or is held fixed.
type NodeState int

const (
	Free NodeState = iota
	Pinned
)

func (s NodeState) String() string {
	if s == Pinned {
		return "pinned"
	}
	return "free"
}

// SimNode is the mutable simulation state of one graph node.
type SimNode struct {
	Index  int
	ID     string
	X, Y   float64
	VX, VY float64

	fx, fy float64
	state  NodeState
}

// Pin fixes the node at (x, y). It may be called repeatedly to move a
// pinned node.
func (n *SimNode) Pin(x, y float64) {
	n.fx, n.fy = x, y
	n.state = Pinned
}

// Unpin releases the node back to the forces.
func (n *SimNode) Unpin() {
	n.state = Free
}

// State returns Free or Pinned.
func (n *SimNode) State() NodeState {
	return n.state
}

// Fixed returns the pin position and whether the node is pinned.
func (n *SimNode) Fixed() (x, y float64, ok bool) {
	return n.fx, n.fy, n.state == Pinned
}

// Point is a position in world coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}
