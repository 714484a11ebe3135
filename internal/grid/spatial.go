package grid

import (
	"fmt"
	"math"

	"github.com/dhconnelly/rtreego"
	"github.com/paulmach/orb"
)

// probeSize is the side of the query box used for point lookups; rtreego
// rejects zero-length rectangles.
const probeSize = 1e-9

type rectEntry struct {
	bound orb.Bound
	bbox  rtreego.Rect
}

// Bounds implements rtreego.Spatial.
func (e *rectEntry) Bounds() rtreego.Rect {
	return e.bbox
}

// RectIndex is an R-tree over axis-aligned rectangles. It answers the circle
// overlap queries used to mark cells unwalkable and the point lookups used to
// classify terrain.
type RectIndex struct {
	tree *rtreego.Rtree
}

// NewRectIndex indexes the given rectangles. Every rectangle must have a
// positive area.
func NewRectIndex(bounds []orb.Bound) (*RectIndex, error) {
	tree := rtreego.NewTree(2, 25, 50)
	for i, b := range bounds {
		bbox, err := rtreego.NewRect(
			rtreego.Point{b.Min.X(), b.Min.Y()},
			[]float64{b.Max.X() - b.Min.X(), b.Max.Y() - b.Min.Y()},
		)
		if err != nil {
			return nil, fmt.Errorf("%w: rectangle %d: %v", ErrInvalidConfig, i, err)
		}
		tree.Insert(&rectEntry{bound: b, bbox: bbox})
	}
	return &RectIndex{tree: tree}, nil
}

// Len reports the number of indexed rectangles.
func (idx *RectIndex) Len() int {
	return idx.tree.Size()
}

// Intersects reports whether a circle overlaps any rectangle. Circles that
// only touch an edge do not count.
func (idx *RectIndex) Intersects(p orb.Point, radius float64) bool {
	query, err := rtreego.NewRect(
		rtreego.Point{p.X() - radius, p.Y() - radius},
		[]float64{math.Max(radius*2, probeSize), math.Max(radius*2, probeSize)},
	)
	if err != nil {
		return false
	}
	for _, s := range idx.tree.SearchIntersect(query) {
		entry := s.(*rectEntry)
		if circleOverlaps(entry.bound, p, radius) {
			return true
		}
	}
	return false
}

// Contains reports whether p lies inside any rectangle, edges included.
func (idx *RectIndex) Contains(p orb.Point) bool {
	query, err := rtreego.NewRect(
		rtreego.Point{p.X() - probeSize/2, p.Y() - probeSize/2},
		[]float64{probeSize, probeSize},
	)
	if err != nil {
		return false
	}
	for _, s := range idx.tree.SearchIntersect(query) {
		if s.(*rectEntry).bound.Contains(p) {
			return true
		}
	}
	return false
}

// ObstacleTest adapts the index for Spec.Obstacle.
func (idx *RectIndex) ObstacleTest() ObstacleTest {
	return idx.Intersects
}

func circleOverlaps(b orb.Bound, p orb.Point, radius float64) bool {
	cx := math.Max(b.Min.X(), math.Min(p.X(), b.Max.X()))
	cy := math.Max(b.Min.Y(), math.Min(p.Y(), b.Max.Y()))
	dx := p.X() - cx
	dy := p.Y() - cy
	return dx*dx+dy*dy < radius*radius
}
