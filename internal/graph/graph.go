package graph

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Row is one counterparty record returned by the query.
type Row struct {
	Address              string  `json:"address" yaml:"address"`
	InteractionFrequency float64 `json:"interaction_frequency" yaml:"interaction_frequency"`
}

// Node is one address in the graph.
type Node struct {
	ID                   string    `json:"id" yaml:"id"`
	InteractionFrequency Frequency `json:"interaction_frequency" yaml:"interaction_frequency"`
}

// Link is a directed edge from a counterparty to the hub.
type Link struct {
	Source string  `json:"source" yaml:"source"`
	Target string  `json:"target" yaml:"target"`
	Value  float64 `json:"value" yaml:"value"`
}

// Model is the node/link set built for one search.
type Model struct {
	Hub   string `json:"hub" yaml:"hub"`
	Nodes []Node `json:"nodes" yaml:"nodes"`
	Links []Link `json:"links" yaml:"links"`
}

// Stats holds summary counts.
type Stats struct {
	Nodes          int
	Links          int
	Counterparties int
	TotalFrequency float64
}

// ─── Frequency ───

// NotApplicable is the frequency text of the hub node.
const NotApplicable = "N/A"

// Frequency is an interaction count, or the N/A sentinel carried by the hub.
// The zero value is the sentinel.
type Frequency struct {
	value float64
	ok    bool
}

// Count returns a numeric frequency.
func Count(v float64) Frequency {
	return Frequency{value: v, ok: true}
}

// Sentinel returns the N/A frequency.
func Sentinel() Frequency {
	return Frequency{}
}

// Value returns the count and whether the frequency is numeric.
func (f Frequency) Value() (float64, bool) {
	return f.value, f.ok
}

// Equal reports whether two frequencies are the same.
func (f Frequency) Equal(o Frequency) bool {
	return f.ok == o.ok && (!f.ok || f.value == o.value)
}

func (f Frequency) String() string {
	if !f.ok {
		return NotApplicable
	}
	return strconv.FormatFloat(f.value, 'f', -1, 64)
}

// MarshalJSON writes a number, or "N/A" for the sentinel.
func (f Frequency) MarshalJSON() ([]byte, error) {
	if !f.ok {
		return json.Marshal(NotApplicable)
	}
	return json.Marshal(f.value)
}

// UnmarshalJSON accepts a number or the "N/A" string.
func (f *Frequency) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s != NotApplicable {
			return fmt.Errorf("frequency: unexpected string %q", s)
		}
		*f = Sentinel()
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("frequency: %w", err)
	}
	*f = Count(v)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (f Frequency) MarshalYAML() (any, error) {
	if !f.ok {
		return NotApplicable, nil
	}
	return f.value, nil
}

// ─── Build ───

// HubMode selects how the hub node is added when the queried address also
// shows up as one of its own counterparties.
type HubMode int

const (
	// HubAppend always appends a synthetic hub node, even if that repeats
	// an id already present among the counterparties.
	HubAppend HubMode = iota
	// HubDedup promotes an existing counterparty node to the hub so ids
	// stay unique.
	HubDedup
)

func (m HubMode) String() string {
	switch m {
	case HubDedup:
		return "dedup"
	default:
		return "append"
	}
}

// ParseHubMode maps "append" or "dedup" to a HubMode.
func ParseHubMode(s string) (HubMode, error) {
	switch s {
	case "", "append":
		return HubAppend, nil
	case "dedup":
		return HubDedup, nil
	}
	return HubAppend, fmt.Errorf("unknown hub mode %q (use append or dedup)", s)
}

// Build turns query rows into a model centered on hub. Nodes keep the order
// in which addresses first appear, with the hub last; the first frequency
// seen for an address wins. Every row yields one link toward the hub.
func Build(rows []Row, hub string, mode HubMode) *Model {
	seen := orderedmap.New[string, Frequency]()
	links := make([]Link, 0, len(rows))

	for _, row := range rows {
		if _, ok := seen.Get(row.Address); !ok {
			seen.Set(row.Address, Count(row.InteractionFrequency))
		}
		links = append(links, Link{
			Source: row.Address,
			Target: hub,
			Value:  row.InteractionFrequency,
		})
	}

	if mode == HubDedup {
		seen.Delete(hub)
	}

	nodes := make([]Node, 0, seen.Len()+1)
	for pair := seen.Oldest(); pair != nil; pair = pair.Next() {
		nodes = append(nodes, Node{ID: pair.Key, InteractionFrequency: pair.Value})
	}
	nodes = append(nodes, Node{ID: hub, InteractionFrequency: Sentinel()})

	return &Model{Hub: hub, Nodes: nodes, Links: links}
}

// IsHub reports whether node i is drawn as the hub.
func (m *Model) IsHub(i int) bool {
	return m.Nodes[i].ID == m.Hub
}

// GetStats returns summary statistics.
func (m *Model) GetStats() Stats {
	st := Stats{Nodes: len(m.Nodes), Links: len(m.Links)}
	for i, n := range m.Nodes {
		if m.IsHub(i) {
			continue
		}
		st.Counterparties++
		if v, ok := n.InteractionFrequency.Value(); ok {
			st.TotalFrequency += v
		}
	}
	return st
}

// StrokeWidth maps a link value to a line width. It is monotonic and never
// negative; negative values are clamped to zero first.
func StrokeWidth(value float64) float64 {
	if value <= 0 || math.IsNaN(value) {
		return 0
	}
	return math.Sqrt(value)
}
