// Package opt selects the supply depot and route for a destination on a
// synthesized network.
package opt

import (
	"math"

	"supplyroute/internal/network"
)

// Priority only affects how hops of the winning path are labelled.
type Priority int

const (
	PriorityRoad Priority = 0
	PriorityAir  Priority = 1
)

// Mode returns the label applied to every hop under this priority.
func (p Priority) Mode() network.Mode {
	if p == PriorityAir {
		return network.Air
	}
	return network.Road
}

// ModeMetrics are per-mode totals along a path.
type ModeMetrics struct {
	TimeRoad float64
	CostRoad float64
	TimeAir  float64
	CostAir  float64
}

// DepotPlan is the outcome for one candidate depot. An unreachable depot has
// an empty Path, Composite +Inf and zero Metrics.
type DepotPlan struct {
	Depot     int
	Path      []int
	Composite float64
	Metrics   ModeMetrics
}

func (d DepotPlan) Reachable() bool { return len(d.Path) > 0 }

// HopLabel tags one hop of the winning path with a transport mode.
type HopLabel struct {
	From int
	To   int
	Mode network.Mode
}

// PlanResult is handed to the caller and not retained.
type PlanResult struct {
	Destination int // mobile-unit index
	Priority    Priority
	Depot       int
	Path        []int
	Depots      []DepotPlan // ascending depot id
	Labels      []HopLabel
}

// Winner returns the DepotPlan of the selected depot.
func (r PlanResult) Winner() DepotPlan {
	for _, d := range r.Depots {
		if d.Depot == r.Depot {
			return d
		}
	}
	return DepotPlan{Depot: r.Depot, Composite: math.Inf(1)}
}

// PlanRoute synthesizes the default network for destination and plans on it.
func PlanRoute(destination int, priority Priority) (PlanResult, error) {
	g, err := network.Synthesize(destination)
	if err != nil {
		return PlanResult{}, err
	}
	return Plan(g, destination, priority)
}

// Plan evaluates every depot in isolation from the others and picks the one
// with the smallest composite sum. Ties go to the lowest depot id; when no
// depot reaches the destination the first depot is returned with an empty
// path.
func Plan(g *network.Graph, destination int, priority Priority) (PlanResult, error) {
	if err := network.ValidateDestination(destination); err != nil {
		return PlanResult{}, err
	}
	dst := network.MobileNode(destination)
	depots := g.Depots()

	res := PlanResult{Destination: destination, Priority: priority}
	best := math.Inf(1)
	for i, m := range depots {
		dp := evaluateDepot(g, m, dst)
		res.Depots = append(res.Depots, dp)
		if i == 0 {
			res.Depot = m
		}
		if dp.Composite < best {
			best = dp.Composite
			res.Depot = m
			res.Path = dp.Path
		}
	}

	mode := priority.Mode()
	for i := 0; i+1 < len(res.Path); i++ {
		res.Labels = append(res.Labels, HopLabel{From: res.Path[i], To: res.Path[i+1], Mode: mode})
	}
	return res, nil
}

func evaluateDepot(g *network.Graph, depot, dst int) DepotPlan {
	path, _ := shortestPath(depotView(g, depot), depot, dst)
	if path == nil {
		return DepotPlan{Depot: depot, Composite: math.Inf(1)}
	}
	dp := DepotPlan{Depot: depot, Path: path}
	for i := 0; i+1 < len(path); i++ {
		h := hopWeights(g, path[i], path[i+1])
		dp.Composite += h.composite
		dp.Metrics.TimeRoad += h.road.Time
		dp.Metrics.CostRoad += h.road.Cost
		dp.Metrics.TimeAir += h.air.Time
		dp.Metrics.CostAir += h.air.Cost
	}
	return dp
}

type hop struct {
	composite float64
	road      network.Edge
	air       network.Edge
}

// hopWeights picks, among the parallel records u->v, the minimum composite,
// the cheapest road record and the fastest air record. The three choices are
// independent of each other.
func hopWeights(g *network.Graph, u, v int) hop {
	h := hop{composite: math.Inf(1)}
	var haveRoad, haveAir bool
	for _, e := range g.Between(u, v) {
		if c := e.Composite(); c < h.composite {
			h.composite = c
		}
		switch e.Mode {
		case network.Road:
			if !haveRoad || e.Cost < h.road.Cost {
				h.road, haveRoad = e, true
			}
		case network.Air:
			if !haveAir || e.Time < h.air.Time {
				h.air, haveAir = e, true
			}
		}
	}
	return h
}
