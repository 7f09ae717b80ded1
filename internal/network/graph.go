package network

import (
	"fmt"
	"sort"

	"github.com/paulmach/orb"
)

type NodeKind int

const (
	Depot NodeKind = iota
	MobileUnit
)

func (k NodeKind) String() string {
	if k == Depot {
		return "depot"
	}
	return "mobile"
}

func (k NodeKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Mode is the transport mode of an edge.
type Mode int

const (
	Road Mode = iota
	Air
)

func (m Mode) String() string {
	if m == Air {
		return "Air"
	}
	return "Road"
}

func (m Mode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *Mode) UnmarshalText(b []byte) error {
	switch string(b) {
	case "Road", "road", "R":
		*m = Road
	case "Air", "air", "A":
		*m = Air
	default:
		return fmt.Errorf("unknown mode %q", string(b))
	}
	return nil
}

// Node is a depot or a mobile unit at a fixed planar position.
type Node struct {
	ID   int       `json:"id"`
	Kind NodeKind  `json:"kind"`
	Name string    `json:"name"`
	Pos  orb.Point `json:"pos"`
}

// Edge is one directed, mode-tagged record. Parallel edges between the same
// ordered pair differ by mode.
type Edge struct {
	From int     `json:"from"`
	To   int     `json:"to"`
	Mode Mode    `json:"mode"`
	Time float64 `json:"time"`
	Cost float64 `json:"cost"`
}

func (e Edge) Composite() float64 { return e.Time + e.Cost }

// Graph is an arena of nodes and edges. Node ids are slice indices; out[u]
// lists indices into Edges whose From is u.
type Graph struct {
	Nodes       []Node
	Edges       []Edge
	Destination int
	out         [][]int
}

// NewGraph returns an edgeless graph over nodes. Node ids must equal their index.
func NewGraph(nodes []Node, destination int) *Graph {
	return &Graph{
		Nodes:       nodes,
		Destination: destination,
		out:         make([][]int, len(nodes)),
	}
}

// AddEdge appends a single directed record.
func (g *Graph) AddEdge(e Edge) {
	g.out[e.From] = append(g.out[e.From], len(g.Edges))
	g.Edges = append(g.Edges, e)
}

// Connect inserts both modes in both directions for the pair (u, v).
func (g *Graph) Connect(u, v int, w Weights) {
	for _, e := range []Edge{
		{From: u, To: v, Mode: Road, Time: w.TimeRoad, Cost: w.CostRoad},
		{From: v, To: u, Mode: Road, Time: w.TimeRoad, Cost: w.CostRoad},
		{From: u, To: v, Mode: Air, Time: w.TimeAir, Cost: w.CostAir},
		{From: v, To: u, Mode: Air, Time: w.TimeAir, Cost: w.CostAir},
	} {
		g.AddEdge(e)
	}
}

// Out returns the edge indices leaving u.
func (g *Graph) Out(u int) []int { return g.out[u] }

// Between returns every edge record from u to v.
func (g *Graph) Between(u, v int) []Edge {
	var res []Edge
	for _, ei := range g.out[u] {
		if g.Edges[ei].To == v {
			res = append(res, g.Edges[ei])
		}
	}
	return res
}

// Neighbors returns the distinct adjacent node ids of u in ascending order.
func (g *Graph) Neighbors(u int) []int {
	seen := map[int]struct{}{}
	for _, ei := range g.out[u] {
		seen[g.Edges[ei].To] = struct{}{}
	}
	res := make([]int, 0, len(seen))
	for v := range seen {
		res = append(res, v)
	}
	sort.Ints(res)
	return res
}

// Depots returns depot node ids in ascending order.
func (g *Graph) Depots() []int {
	var res []int
	for _, n := range g.Nodes {
		if n.Kind == Depot {
			res = append(res, n.ID)
		}
	}
	return res
}

func (g *Graph) IsDepot(id int) bool { return g.Nodes[id].Kind == Depot }

// Connection is an undirected view of one connected pair with its weights.
type Connection struct {
	A       int     `json:"a"`
	B       int     `json:"b"`
	Weights Weights `json:"weights"`
}

// Connections collapses the directed records into one entry per pair (A < B).
func (g *Graph) Connections() []Connection {
	idx := map[[2]int]int{}
	var res []Connection
	for _, e := range g.Edges {
		if e.From > e.To {
			continue
		}
		k := [2]int{e.From, e.To}
		i, ok := idx[k]
		if !ok {
			i = len(res)
			idx[k] = i
			res = append(res, Connection{A: e.From, B: e.To})
		}
		if e.Mode == Air {
			res[i].Weights.TimeAir, res[i].Weights.CostAir = e.Time, e.Cost
		} else {
			res[i].Weights.TimeRoad, res[i].Weights.CostRoad = e.Time, e.Cost
		}
	}
	return res
}
