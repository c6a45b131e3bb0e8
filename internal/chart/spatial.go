package chart

import (
	"math"
	"sort"

	"github.com/tidwall/rtree"
)

// SpatialIndex answers nearest-point queries over the projected stop points.
// Every query position resolves to the point whose Voronoi cell contains it.
type SpatialIndex struct {
	tree   *rtree.RTree
	xs     []float64
	ys     []float64
	radius float64
}

// NewSpatialIndex indexes the pixel coordinates of points
func NewSpatialIndex(points []Point) *SpatialIndex {
	idx := &SpatialIndex{
		tree: &rtree.RTree{},
		xs:   make([]float64, len(points)),
		ys:   make([]float64, len(points)),
	}
	if len(points) == 0 {
		return idx
	}

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for i, p := range points {
		idx.xs[i], idx.ys[i] = p.X, p.Y
		// For points, min and max are the same
		idx.tree.Insert([2]float64{p.X, p.Y}, [2]float64{p.X, p.Y}, i)

		minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
		minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
	}

	// Initial search half-width: about one point per box on a uniform spread
	idx.radius = math.Max(maxX-minX, maxY-minY) / math.Sqrt(float64(len(points)))
	if idx.radius <= 0 || math.IsNaN(idx.radius) || math.IsInf(idx.radius, 0) {
		idx.radius = 1
	}
	return idx
}

// Len returns the number of indexed points
func (idx *SpatialIndex) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.xs)
}

// Nearest returns the index of the point closest to (x, y). Equal distances
// resolve to the lowest index. An empty index returns (-1, false).
func (idx *SpatialIndex) Nearest(x, y float64) (int, bool) {
	switch n := idx.Len(); {
	case n == 0:
		return -1, false
	case n == 1:
		return 0, true
	}
	if math.IsNaN(x) || math.IsNaN(y) || math.IsInf(x, 0) || math.IsInf(y, 0) {
		return -1, false
	}

	r := idx.radius
	for {
		best, bestDist := -1, math.Inf(1)
		idx.tree.Search(
			[2]float64{x - r, y - r},
			[2]float64{x + r, y + r},
			func(min, max [2]float64, data interface{}) bool {
				i, ok := data.(int)
				if !ok {
					return true
				}
				d := math.Hypot(idx.xs[i]-x, idx.ys[i]-y)
				// d may overflow to +Inf for far queries
				if best < 0 || d < bestDist || (d == bestDist && i < best) {
					best, bestDist = i, d
				}
				return true
			},
		)

		switch {
		case best < 0 && math.IsInf(r, 1):
			return -1, false
		case best < 0:
			r *= 2
		case bestDist <= r:
			// Any closer point would lie inside the searched box
			return best, true
		default:
			r = bestDist * (1 + 1e-9)
		}
	}
}

// Within returns the indexes of points inside the rectangle, ascending
func (idx *SpatialIndex) Within(minX, minY, maxX, maxY float64) []int {
	found := []int{}
	if idx.Len() == 0 {
		return found
	}
	idx.tree.Search(
		[2]float64{math.Min(minX, maxX), math.Min(minY, maxY)},
		[2]float64{math.Max(minX, maxX), math.Max(minY, maxY)},
		func(min, max [2]float64, data interface{}) bool {
			if i, ok := data.(int); ok {
				found = append(found, i)
			}
			return true
		},
	)
	sort.Ints(found)
	return found
}
