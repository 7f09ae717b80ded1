package opt

import (
	"container/heap"
	"math"

	"supplyroute/internal/network"
)

// view restricts a graph to the nodes admitted by keep. It never copies
// node or edge data.
type view struct {
	g    *network.Graph
	keep func(id int) bool
}

// depotView keeps depot and every non-depot node, dropping all other depots.
func depotView(g *network.Graph, depot int) view {
	return view{g: g, keep: func(id int) bool { return id == depot || !g.IsDepot(id) }}
}

type queueItem struct {
	node  int
	dist  float64
	index int
}

type distQueue []*queueItem

func (q distQueue) Len() int           { return len(q) }
func (q distQueue) Less(i, j int) bool { return q[i].dist < q[j].dist }
func (q distQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *distQueue) Push(x any) {
	it := x.(*queueItem)
	it.index = len(*q)
	*q = append(*q, it)
}

func (q *distQueue) Pop() any {
	old := *q
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	it.index = -1
	*q = old[:n-1]
	return it
}

// shortestPath runs Dijkstra from src to dst over v using edge composites.
// Relaxing every parallel record makes the effective hop cost the minimum
// composite between the pair. Stale queue entries are skipped on pop.
// It returns a nil path and +Inf when dst is unreachable.
func shortestPath(v view, src, dst int) ([]int, float64) {
	n := len(v.g.Nodes)
	dist := make([]float64, n)
	prev := make([]int, n)
	done := make([]bool, n)
	for i := range dist {
		dist[i] = math.Inf(1)
		prev[i] = -1
	}
	dist[src] = 0

	q := &distQueue{}
	heap.Push(q, &queueItem{node: src})
	for q.Len() > 0 {
		it := heap.Pop(q).(*queueItem)
		u := it.node
		if done[u] || it.dist > dist[u] {
			continue
		}
		done[u] = true
		if u == dst {
			break
		}
		for _, ei := range v.g.Out(u) {
			e := v.g.Edges[ei]
			if !v.keep(e.To) || done[e.To] {
				continue
			}
			if nd := dist[u] + e.Composite(); nd < dist[e.To] {
				dist[e.To] = nd
				prev[e.To] = u
				heap.Push(q, &queueItem{node: e.To, dist: nd})
			}
		}
	}
	if math.IsInf(dist[dst], 1) {
		return nil, math.Inf(1)
	}

	var path []int
	for at := dst; at != -1; at = prev[at] {
		path = append(path, at)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, dist[dst]
}
