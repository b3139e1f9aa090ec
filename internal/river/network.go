// Package river holds the immutable, spatially indexed river reach
// collection that dams are snapped onto.
package river

import (
	"math"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/watershed-cli/internal/geoprim"
	"github.com/sells-group/watershed-cli/internal/model"
)

// DefaultCellSize is the grid cell edge in degrees (~11 km at the equator).
const DefaultCellSize = 0.1

type cellKey struct{ x, y int }

// Network is a read-only collection of river reaches with a uniform-grid
// bounding box index. It is safe for concurrent use once built.
type Network struct {
	reaches  []model.RiverReach
	bounds   []*geom.Bounds
	cells    map[cellKey][]int
	cellSize float64
}

// Option configures a Network.
type Option func(*Network)

// WithCellSize overrides the index cell size in degrees.
func WithCellSize(deg float64) Option {
	return func(n *Network) {
		if deg > 0 {
			n.cellSize = deg
		}
	}
}

// NewNetwork indexes reaches. Reaches are ordered by ID so query results,
// and therefore tie-breaking downstream, do not depend on input order.
func NewNetwork(reaches []model.RiverReach, opts ...Option) (*Network, error) {
	n := &Network{cellSize: DefaultCellSize, cells: make(map[cellKey][]int)}
	for _, opt := range opts {
		opt(n)
	}

	n.reaches = make([]model.RiverReach, 0, len(reaches))
	for _, r := range reaches {
		if r.Geometry == nil || r.Geometry.NumCoords() == 0 {
			return nil, eris.Errorf("river: reach %d has no geometry", r.ID)
		}
		n.reaches = append(n.reaches, r)
	}
	sort.SliceStable(n.reaches, func(i, j int) bool { return n.reaches[i].ID < n.reaches[j].ID })

	n.bounds = make([]*geom.Bounds, len(n.reaches))
	for i, r := range n.reaches {
		b := r.Geometry.Bounds()
		n.bounds[i] = b
		n.eachCell(b, func(k cellKey) {
			n.cells[k] = append(n.cells[k], i)
		})
	}
	return n, nil
}

// Len returns the number of reaches.
func (n *Network) Len() int { return len(n.reaches) }

// Reaches returns all reaches in index order.
func (n *Network) Reaches() []model.RiverReach { return n.reaches }

// Query returns the reaches whose bounding box overlaps b, in ascending ID order.
func (n *Network) Query(b *geom.Bounds) []model.RiverReach {
	if b == nil || b.IsEmpty() {
		return nil
	}
	seen := make(map[int]struct{})
	var idx []int
	n.eachCell(b, func(k cellKey) {
		for _, i := range n.cells[k] {
			if _, ok := seen[i]; ok {
				continue
			}
			seen[i] = struct{}{}
			if geoprim.Overlaps(n.bounds[i], b) {
				idx = append(idx, i)
			}
		}
	})
	sort.Ints(idx)

	out := make([]model.RiverReach, len(idx))
	for j, i := range idx {
		out[j] = n.reaches[i]
	}
	return out
}

func (n *Network) eachCell(b *geom.Bounds, fn func(cellKey)) {
	x0 := int(math.Floor(b.Min(0) / n.cellSize))
	x1 := int(math.Floor(b.Max(0) / n.cellSize))
	y0 := int(math.Floor(b.Min(1) / n.cellSize))
	y1 := int(math.Floor(b.Max(1) / n.cellSize))
	for x := x0; x <= x1; x++ {
		for y := y0; y <= y1; y++ {
			fn(cellKey{x, y})
		}
	}
}
