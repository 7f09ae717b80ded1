package opt

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"supplyroute/internal/network"
)

// PlannerSuite exercises planning on synthesized networks and hand-built fixtures.
type PlannerSuite struct {
	suite.Suite
}

func TestPlannerSuite(t *testing.T) {
	suite.Run(t, new(PlannerSuite))
}

// fixture returns the standard node layout with no edges; dest is a mobile index.
func fixture(dest int) *network.Graph {
	nodes := make([]network.Node, 0, network.NumDepots+network.NumMobile)
	for i := 0; i < network.NumDepots; i++ {
		nodes = append(nodes, network.Node{ID: i, Kind: network.Depot})
	}
	for k := 0; k < network.NumMobile; k++ {
		nodes = append(nodes, network.Node{ID: network.MobileNode(k), Kind: network.MobileUnit})
	}
	return network.NewGraph(nodes, network.MobileNode(dest))
}

func (s *PlannerSuite) TestInvalidDestination() {
	for _, idx := range []int{-1, network.NumMobile} {
		_, err := PlanRoute(idx, PriorityAir)
		require.True(s.T(), errors.Is(err, network.ErrInvalidDestination), "index %d", idx)
	}
}

func (s *PlannerSuite) TestDeterministic() {
	a, err := PlanRoute(10, PriorityAir)
	require.NoError(s.T(), err)
	b, err := PlanRoute(10, PriorityAir)
	require.NoError(s.T(), err)
	require.Equal(s.T(), a, b)
}

func (s *PlannerSuite) TestScenarioAirPriority() {
	r, err := PlanRoute(10, PriorityAir)
	require.NoError(s.T(), err)

	var reachable int
	for _, d := range r.Depots {
		if d.Reachable() {
			reachable++
		}
	}
	require.Positive(s.T(), reachable)
	require.NotEmpty(s.T(), r.Path)
	require.Len(s.T(), r.Labels, len(r.Path)-1)
	for i, l := range r.Labels {
		require.Equal(s.T(), network.Air, l.Mode)
		require.Equal(s.T(), r.Path[i], l.From)
		require.Equal(s.T(), r.Path[i+1], l.To)
	}
}

func (s *PlannerSuite) TestPriorityDoesNotChangeSelection() {
	air, err := PlanRoute(10, PriorityAir)
	require.NoError(s.T(), err)
	road, err := PlanRoute(10, PriorityRoad)
	require.NoError(s.T(), err)

	require.Equal(s.T(), air.Depot, road.Depot)
	require.Equal(s.T(), air.Path, road.Path)
	require.Equal(s.T(), air.Depots, road.Depots)
	require.Len(s.T(), road.Labels, len(air.Labels))
	for _, l := range road.Labels {
		require.Equal(s.T(), network.Road, l.Mode)
	}
}

func (s *PlannerSuite) TestPathEndpointsAndIsolation() {
	for dest := 0; dest < network.NumMobile; dest++ {
		g, err := network.Synthesize(dest)
		require.NoError(s.T(), err)
		r, err := Plan(g, dest, PriorityRoad)
		require.NoError(s.T(), err)
		require.Len(s.T(), r.Depots, network.NumDepots)

		for _, d := range r.Depots {
			if !d.Reachable() {
				require.True(s.T(), math.IsInf(d.Composite, 1))
				require.Equal(s.T(), ModeMetrics{}, d.Metrics)
				continue
			}
			require.Equal(s.T(), d.Depot, d.Path[0])
			require.Equal(s.T(), network.MobileNode(dest), d.Path[len(d.Path)-1])
			for i, id := range d.Path {
				if i > 0 {
					require.False(s.T(), g.IsDepot(id), "depot %d path crosses depot %d", d.Depot, id)
					require.NotEmpty(s.T(), g.Between(d.Path[i-1], id))
				}
			}
			require.False(s.T(), math.IsInf(d.Composite, 0))
		}
	}
}

func (s *PlannerSuite) TestWinnerIsMinimalWithLowestIndexTies() {
	for dest := 0; dest < network.NumMobile; dest++ {
		r, err := PlanRoute(dest, PriorityAir)
		require.NoError(s.T(), err)
		w := r.Winner()
		for _, d := range r.Depots {
			require.LessOrEqual(s.T(), w.Composite, d.Composite)
			if d.Depot < r.Depot {
				require.Greater(s.T(), d.Composite, w.Composite)
			}
		}
		require.Equal(s.T(), w.Path, r.Path)
	}
}

func (s *PlannerSuite) TestAllDepotsDisconnected() {
	cfg := network.DefaultConfig()
	cfg.MaxNeighbors = 0
	g, err := cfg.Synthesize(10)
	require.NoError(s.T(), err)

	r, err := Plan(g, 10, PriorityAir)
	require.NoError(s.T(), err)
	require.Equal(s.T(), 0, r.Depot)
	require.Empty(s.T(), r.Path)
	require.Empty(s.T(), r.Labels)
	for _, d := range r.Depots {
		require.Empty(s.T(), d.Path)
		require.True(s.T(), math.IsInf(d.Composite, 1))
		require.Equal(s.T(), ModeMetrics{}, d.Metrics)
	}
}

func (s *PlannerSuite) TestTieGoesToLowestDepot() {
	g := fixture(1)
	mid, dst := network.MobileNode(0), network.MobileNode(1)
	w := network.Weights{TimeRoad: 1, CostRoad: 1, TimeAir: 2, CostAir: 2}
	g.Connect(1, mid, w)
	g.Connect(2, mid, w)
	g.Connect(mid, dst, w)

	r, err := Plan(g, 1, PriorityRoad)
	require.NoError(s.T(), err)
	require.Equal(s.T(), 1, r.Depot)
	require.Equal(s.T(), []int{1, mid, dst}, r.Path)
	require.False(s.T(), r.Depots[0].Reachable())
	require.Equal(s.T(), r.Depots[1].Composite, r.Depots[2].Composite)
}

func (s *PlannerSuite) TestOtherDepotsAreRemoved() {
	g := fixture(1)
	dst := network.MobileNode(1)
	cheap := network.Weights{TimeRoad: 0.1, CostRoad: 0.1, TimeAir: 0.1, CostAir: 0.1}
	g.Connect(0, 1, cheap)
	g.Connect(1, dst, network.Weights{TimeRoad: 5, CostRoad: 5, TimeAir: 5, CostAir: 5})

	r, err := Plan(g, 1, PriorityRoad)
	require.NoError(s.T(), err)
	require.False(s.T(), r.Depots[0].Reachable(), "depot 0 must not route through depot 1")
	require.Equal(s.T(), 1, r.Depot)
	require.InDelta(s.T(), 10.0, r.Winner().Composite, 1e-9)
}

func (s *PlannerSuite) TestModeMixingAndIndependentMetrics() {
	g := fixture(1)
	mid, dst := network.MobileNode(0), network.MobileNode(1)
	g.Connect(0, mid, network.Weights{TimeRoad: 1, CostRoad: 1, TimeAir: 10, CostAir: 10})
	g.Connect(mid, dst, network.Weights{TimeRoad: 10, CostRoad: 10, TimeAir: 1, CostAir: 1})
	// a slower but cheaper road record on the first hop
	g.AddEdge(network.Edge{From: 0, To: mid, Mode: network.Road, Time: 5, Cost: 0.5})

	r, err := Plan(g, 1, PriorityAir)
	require.NoError(s.T(), err)
	require.Equal(s.T(), 0, r.Depot)
	require.Equal(s.T(), []int{0, mid, dst}, r.Path)

	w := r.Winner()
	// road on hop one, air on hop two
	require.InDelta(s.T(), 4.0, w.Composite, 1e-9)
	// reporting takes the cheapest road and fastest air record per hop
	require.InDelta(s.T(), 15.0, w.Metrics.TimeRoad, 1e-9)
	require.InDelta(s.T(), 10.5, w.Metrics.CostRoad, 1e-9)
	require.InDelta(s.T(), 11.0, w.Metrics.TimeAir, 1e-9)
	require.InDelta(s.T(), 11.0, w.Metrics.CostAir, 1e-9)
	require.Equal(s.T(), []HopLabel{{From: 0, To: mid, Mode: network.Air}, {From: mid, To: dst, Mode: network.Air}}, r.Labels)
}

func (s *PlannerSuite) TestRecordPlanStats() {
	r, err := PlanRoute(4, PriorityRoad)
	require.NoError(s.T(), err)
	RecordPlan("t_stats", r)
	RecordPlan("t_stats", r)

	stats := GetPlanStats("t_stats")
	require.Len(s.T(), stats, 1)
	require.Equal(s.T(), 2, stats[0].Plans)
	require.Equal(s.T(), r.Depot, stats[0].LastDepot)
	require.Empty(s.T(), GetPlanStats("t_other"))
}
