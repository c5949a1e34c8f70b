package agent

import (
	"github.com/steveyegge/jury/internal/types"
)

// Graph declares which agents notify which peers of their findings.
// Edges are kept in declaration order so the manager fans out
// notifications in the same order on every run. The graph is acyclic
// by construction of the default edge set; responses never re-enter
// the fan-out, so negotiation always terminates.
type Graph struct {
	edges []Edge
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{}
}

// AddEdge appends one directed notification edge. Duplicate edges are
// ignored so a graph assembled from config stays minimal.
func (g *Graph) AddEdge(from, to types.AgentID) {
	for _, e := range g.edges {
		if e.From == from && e.To == to {
			return
		}
	}
	g.edges = append(g.edges, Edge{From: from, To: to})
}

// Edges returns the notification edges in declaration order.
func (g *Graph) Edges() []Edge {
	out := make([]Edge, len(g.edges))
	copy(out, g.edges)
	return out
}

// PeersOf returns the agents notified by from, in declaration order.
func (g *Graph) PeersOf(from types.AgentID) []types.AgentID {
	var peers []types.AgentID
	for _, e := range g.edges {
		if e.From == from {
			peers = append(peers, e.To)
		}
	}
	return peers
}

// HasEdge reports whether from notifies to.
func (g *Graph) HasEdge(from, to types.AgentID) bool {
	for _, e := range g.edges {
		if e.From == from && e.To == to {
			return true
		}
	}
	return false
}

// DefaultGraph returns the standard three-agent fan-out:
// security notifies quality and documentation, quality notifies
// documentation. Documentation answers quality with an acknowledgment
// rather than a notification, so no cycle forms.
func DefaultGraph() *Graph {
	g := NewGraph()
	g.AddEdge(types.AgentSecurity, types.AgentQuality)
	g.AddEdge(types.AgentSecurity, types.AgentDocumentation)
	g.AddEdge(types.AgentQuality, types.AgentDocumentation)
	return g
}
