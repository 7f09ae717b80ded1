package network

import (
	"github.com/dhconnelly/rtreego"
	"github.com/paulmach/orb"
)

const pointTolerance = 1e-9

// unitEntry wraps a mobile unit for R-tree storage.
type unitEntry struct {
	node Node
	bbox rtreego.Rect
}

// Bounds implements rtreego.Spatial.
func (u *unitEntry) Bounds() rtreego.Rect { return u.bbox }

// UnitIndex answers nearest-mobile-unit queries over a synthesized network.
type UnitIndex struct {
	tree *rtreego.Rtree
}

// NewUnitIndex indexes the mobile units of g.
func NewUnitIndex(g *Graph) *UnitIndex {
	tree := rtreego.NewTree(2, 2, 8)
	for _, n := range g.Nodes {
		if n.Kind != MobileUnit {
			continue
		}
		pt := rtreego.Point{n.Pos.X(), n.Pos.Y()}
		tree.Insert(&unitEntry{node: n, bbox: pt.ToRect(pointTolerance)})
	}
	return &UnitIndex{tree: tree}
}

// Nearest returns the mobile unit closest to p. ok is false for an empty index.
func (ix *UnitIndex) Nearest(p orb.Point) (Node, bool) {
	if ix.tree.Size() == 0 {
		return Node{}, false
	}
	hit := ix.tree.NearestNeighbor(rtreego.Point{p.X(), p.Y()})
	if hit == nil {
		return Node{}, false
	}
	return hit.(*unitEntry).node, true
}
