// Package network synthesizes the depot/mobile-unit transport network that
// route planning runs on.
//
// A network is rebuilt for every request. All randomness comes from a
// generator created and seeded inside the call, so identical inputs produce
// identical coordinates, edges and weights no matter how many other calls
// run concurrently.
package network

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

const (
	Seed         = 42
	NumDepots    = 3
	NumMobile    = 15
	MaxNeighbors = 4
	// Mobile units are placed uniformly in [0, Extent) on both axes.
	Extent = 20.0
)

// DepotCoords are the fixed depot positions.
var DepotCoords = [NumDepots]orb.Point{{0, 0}, {10, 0}, {5, 8}}

var ErrInvalidDestination = errors.New("invalid destination")

// InvalidDestinationError reports a destination index outside [0, Limit).
type InvalidDestinationError struct {
	Index int
	Limit int
}

func (e *InvalidDestinationError) Error() string {
	return fmt.Sprintf("destination index must be between 0 and %d, got %d", e.Limit-1, e.Index)
}

func (e *InvalidDestinationError) Is(target error) bool { return target == ErrInvalidDestination }

// ValidateDestination checks a mobile-unit index against NumMobile.
func ValidateDestination(idx int) error {
	if idx < 0 || idx >= NumMobile {
		return &InvalidDestinationError{Index: idx, Limit: NumMobile}
	}
	return nil
}

// MobileNode maps a mobile-unit index to its node id.
func MobileNode(idx int) int { return NumDepots + idx }

// MobileIndex maps a node id back to its mobile-unit index.
func MobileIndex(node int) int { return node - NumDepots }

// Config controls synthesis. The zero value is not usable; start from
// DefaultConfig.
type Config struct {
	Seed         int64
	MaxNeighbors int
	// SkipExtras disables the random extra-connection pass, leaving only the
	// depot links and the mobile chain.
	SkipExtras bool
}

func DefaultConfig() Config {
	return Config{Seed: Seed, MaxNeighbors: MaxNeighbors}
}

// Synthesize builds the network for a destination with the default config.
func Synthesize(destination int) (*Graph, error) {
	return DefaultConfig().Synthesize(destination)
}

// Synthesize builds the network for the given destination mobile-unit index.
func (c Config) Synthesize(destination int) (*Graph, error) {
	if err := ValidateDestination(destination); err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewSource(c.Seed))

	nodes := make([]Node, 0, NumDepots+NumMobile)
	for i, p := range DepotCoords {
		nodes = append(nodes, Node{ID: i, Kind: Depot, Name: fmt.Sprintf("Main%d", i+1), Pos: p})
	}
	for k := 0; k < NumMobile; k++ {
		x := rng.Float64() * Extent
		y := rng.Float64() * Extent
		nodes = append(nodes, Node{ID: MobileNode(k), Kind: MobileUnit, Name: fmt.Sprintf("M%d", k+1), Pos: orb.Point{x, y}})
	}

	s := &synth{
		cfg:  c,
		g:    NewGraph(nodes, MobileNode(destination)),
		rng:  rng,
		nbrs: make([]map[int]struct{}, len(nodes)),
	}
	for i := range s.nbrs {
		s.nbrs[i] = map[int]struct{}{}
	}

	mobile := make([]int, NumMobile)
	for k := range mobile {
		mobile[k] = MobileNode(k)
	}

	// one link per depot into the mobile field
	for d := 0; d < NumDepots; d++ {
		s.connect(d, mobile[rng.Intn(len(mobile))])
	}

	// a chain over a shuffled ordering keeps the mobile field connected
	order := append([]int(nil), mobile...)
	rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	for i := 0; i+1 < len(order); i++ {
		s.connect(order[i], order[i+1])
	}

	if !c.SkipExtras {
		for i := range nodes {
			var eligible []int
			for j := range nodes {
				if s.canConnect(i, j) {
					eligible = append(eligible, j)
				}
			}
			spare := c.MaxNeighbors - len(s.nbrs[i])
			if spare < 0 {
				spare = 0
			}
			extras := rng.Intn(spare + 1)
			if extras > len(eligible) {
				extras = len(eligible)
			}
			for _, p := range rng.Perm(len(eligible))[:extras] {
				s.connect(i, eligible[p])
			}
		}
	}
	return s.g, nil
}

type synth struct {
	cfg  Config
	g    *Graph
	rng  *rand.Rand
	nbrs []map[int]struct{}
}

// canConnect is the single admission rule for new connections.
func (s *synth) canConnect(i, j int) bool {
	if i == j {
		return false
	}
	di, dj := s.g.IsDepot(i), s.g.IsDepot(j)
	if di && dj {
		return false
	}
	dest := s.g.Destination
	if (di && j == dest) || (dj && i == dest) {
		return false
	}
	if _, ok := s.nbrs[i][j]; ok {
		return false
	}
	return len(s.nbrs[i]) < s.cfg.MaxNeighbors && len(s.nbrs[j]) < s.cfg.MaxNeighbors
}

func (s *synth) connect(i, j int) {
	if !s.canConnect(i, j) {
		return
	}
	s.nbrs[i][j] = struct{}{}
	s.nbrs[j][i] = struct{}{}
	d := planar.Distance(s.g.Nodes[i].Pos, s.g.Nodes[j].Pos)
	s.g.Connect(i, j, EdgeCost(d, s.rng))
}
