// Package roadnet models the drivable road network as a directed graph whose
// edges are weighted by their length in metres. Routing uses gonum's Dijkstra
// implementation.
//
// A Graph is built once (from a file or with Grid) and then only read, so it
// is safe to share between goroutines after construction.
package roadnet

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"

	"github.com/kilianp07/evgrid/core/geo"
)

var (
	// ErrNoPath is returned when the destination cannot be reached.
	ErrNoPath = errors.New("roadnet: no path")
	// ErrUnknownNode is returned for node IDs that are not in the graph.
	ErrUnknownNode = errors.New("roadnet: unknown node")
	// ErrEmpty is returned by lookups on a graph without nodes.
	ErrEmpty = errors.New("roadnet: empty graph")
)

// Node is an intersection of the road network.
type Node struct {
	ID  int64      `json:"id"`
	Pos geo.LatLon `json:"pos"`
}

// Edge is a directed road segment.
type Edge struct {
	From    int64   `json:"from"`
	To      int64   `json:"to"`
	LengthM float64 `json:"length_m"`
}

// Graph is a directed road network.
type Graph struct {
	g   *simple.WeightedDirectedGraph
	pos map[int64]geo.LatLon
	ids []int64
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		g:   simple.NewWeightedDirectedGraph(0, math.Inf(1)),
		pos: make(map[int64]geo.LatLon),
	}
}

// AddNode inserts a node. Adding an existing ID updates its position.
func (r *Graph) AddNode(id int64, pos geo.LatLon) {
	if _, ok := r.pos[id]; !ok {
		r.g.AddNode(simple.Node(id))
		i := sort.Search(len(r.ids), func(i int) bool { return r.ids[i] >= id })
		r.ids = append(r.ids, 0)
		copy(r.ids[i+1:], r.ids[i:])
		r.ids[i] = id
	}
	r.pos[id] = pos
}

// AddEdge adds a one-way segment. A non-positive length is replaced by the
// great-circle distance between the endpoints.
func (r *Graph) AddEdge(from, to int64, lengthM float64) error {
	if from == to {
		return fmt.Errorf("roadnet: self loop on %d", from)
	}
	a, ok := r.pos[from]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownNode, from)
	}
	b, ok := r.pos[to]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownNode, to)
	}
	if lengthM <= 0 {
		lengthM = geo.Distance(a, b)
	}
	r.g.SetWeightedEdge(r.g.NewWeightedEdge(simple.Node(from), simple.Node(to), lengthM))
	return nil
}

// AddRoad adds a two-way segment.
func (r *Graph) AddRoad(a, b int64, lengthM float64) error {
	if err := r.AddEdge(a, b, lengthM); err != nil {
		return err
	}
	return r.AddEdge(b, a, lengthM)
}

// Len returns the number of nodes.
func (r *Graph) Len() int { return len(r.ids) }

// Node returns the node with the given ID.
func (r *Graph) Node(id int64) (Node, bool) {
	p, ok := r.pos[id]
	return Node{ID: id, Pos: p}, ok
}

// Nodes returns all nodes ordered by ID.
func (r *Graph) Nodes() []Node {
	out := make([]Node, len(r.ids))
	for i, id := range r.ids {
		out[i] = Node{ID: id, Pos: r.pos[id]}
	}
	return out
}

// IDs returns the node IDs in ascending order. The slice must not be modified.
func (r *Graph) IDs() []int64 { return r.ids }

// Edges returns all segments ordered by (from, to).
func (r *Graph) Edges() []Edge {
	var out []Edge
	it := r.g.WeightedEdges()
	for it.Next() {
		e := it.WeightedEdge()
		out = append(out, Edge{From: e.From().ID(), To: e.To().ID(), LengthM: e.Weight()})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].From != out[j].From {
			return out[i].From < out[j].From
		}
		return out[i].To < out[j].To
	})
	return out
}

// Nearest returns the node closest to pos by great-circle distance. Ties go
// to the lowest ID.
func (r *Graph) Nearest(pos geo.LatLon) (Node, error) {
	if len(r.ids) == 0 {
		return Node{}, ErrEmpty
	}
	best := r.ids[0]
	bestD := math.Inf(1)
	for _, id := range r.ids {
		if d := geo.Distance(pos, r.pos[id]); d < bestD {
			best, bestD = id, d
		}
	}
	return Node{ID: best, Pos: r.pos[best]}, nil
}

// ShortestPath returns the node IDs of the shortest route by length from
// `from` to `to`, both included. A route to the start node is [from].
func (r *Graph) ShortestPath(from, to int64) ([]int64, error) {
	if _, ok := r.pos[from]; !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownNode, from)
	}
	if _, ok := r.pos[to]; !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownNode, to)
	}
	if from == to {
		return []int64{from}, nil
	}
	tree := path.DijkstraFrom(simple.Node(from), r.g)
	nodes, _ := tree.To(to)
	if len(nodes) == 0 {
		return nil, fmt.Errorf("%w: %d -> %d", ErrNoPath, from, to)
	}
	ids := make([]int64, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID()
	}
	return ids, nil
}

// PathLength sums the great-circle distances between consecutive nodes.
func (r *Graph) PathLength(ids []int64) float64 {
	total := 0.0
	for i := 0; i+1 < len(ids); i++ {
		total += geo.Distance(r.pos[ids[i]], r.pos[ids[i+1]])
	}
	return total
}

// Positions maps node IDs to their coordinates.
func (r *Graph) Positions(ids []int64) []geo.LatLon {
	out := make([]geo.LatLon, len(ids))
	for i, id := range ids {
		out[i] = r.pos[id]
	}
	return out
}
