package network

import "math/rand"

// Transport characteristics per mode.
const (
	RoadSpeed    = 1.0
	AirSpeed     = 3.0
	RoadCostUnit = 1.0
	AirCostUnit  = 3.0
)

// Weights holds the time/cost attributes of one connection for both modes.
type Weights struct {
	TimeRoad float64 `json:"timeRoad"`
	CostRoad float64 `json:"costRoad"`
	TimeAir  float64 `json:"timeAir"`
	CostAir  float64 `json:"costAir"`
}

func (w Weights) CompositeRoad() float64 { return w.TimeRoad + w.CostRoad }
func (w Weights) CompositeAir() float64  { return w.TimeAir + w.CostAir }

// Composite returns time+cost for the given mode.
func (w Weights) Composite(m Mode) float64 {
	if m == Air {
		return w.CompositeAir()
	}
	return w.CompositeRoad()
}

// EdgeCost perturbs the straight-line distance into per-mode weights.
// Exactly four draws are taken from rng, in the order road time, road cost,
// air time, air cost.
func EdgeCost(distance float64, rng *rand.Rand) Weights {
	var w Weights
	w.TimeRoad = distance / RoadSpeed * uniform(rng, 1.0, 1.5)
	w.CostRoad = distance * RoadCostUnit * uniform(rng, 0.5, 1.0)
	w.TimeAir = distance / AirSpeed * uniform(rng, 0.5, 1.0)
	w.CostAir = distance * AirCostUnit * uniform(rng, 1.0, 1.5)
	return w
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + (hi-lo)*rng.Float64()
}
