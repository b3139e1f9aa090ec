// Package basin models the nested HydroBASINS hierarchy (levels 1–12) and
// answers containment, prefix and drainage queries against it.
package basin

import (
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/watershed-cli/internal/geoprim"
	"github.com/sells-group/watershed-cli/internal/model"
)

// Level bounds of the HydroBASINS hierarchy.
const (
	MinLevel = 1
	MaxLevel = 12
)

// levelIndex holds every basin of one level plus its lookup tables.
type levelIndex struct {
	basins   []model.Basin // ordered by SortKey, then ID
	byID     map[int64]int
	byCode   map[string][]int
	children map[int64][]int
	bounds   []*geom.Bounds
}

// Hierarchy is an immutable snapshot of basins across levels. It is safe for
// concurrent use.
type Hierarchy struct {
	levels map[int]*levelIndex
	prims  geoprim.Primitives
}

// Option configures a Hierarchy.
type Option func(*Hierarchy)

// WithPrimitives sets the spatial primitives used for containment tests.
func WithPrimitives(p geoprim.Primitives) Option {
	return func(h *Hierarchy) {
		if p != nil {
			h.prims = p
		}
	}
}

// New validates basins and builds per-level indexes.
//
// Load-time invariants: level in [1,12], code of exactly CodeWidth(level)
// digits, unique id per level and no cycle along next_down within a level.
func New(basins []model.Basin, opts ...Option) (*Hierarchy, error) {
	h := &Hierarchy{levels: make(map[int]*levelIndex), prims: geoprim.Equirectangular{}}
	for _, opt := range opts {
		opt(h)
	}

	grouped := make(map[int][]model.Basin)
	for _, b := range basins {
		if b.Level < MinLevel || b.Level > MaxLevel {
			return nil, eris.Errorf("basin: %d has level %d outside [%d,%d]", b.ID, b.Level, MinLevel, MaxLevel)
		}
		if !IsDigits(b.PfafCode) || len(b.PfafCode) != CodeWidth(b.Level) {
			return nil, eris.Errorf("basin: %d at level %d has pfaf code %q, want %d digits",
				b.ID, b.Level, b.PfafCode, CodeWidth(b.Level))
		}
		grouped[b.Level] = append(grouped[b.Level], b)
	}

	for level, bs := range grouped {
		idx, err := buildLevel(level, bs)
		if err != nil {
			return nil, err
		}
		h.levels[level] = idx
	}
	return h, nil
}

func buildLevel(level int, bs []model.Basin) (*levelIndex, error) {
	sort.SliceStable(bs, func(i, j int) bool {
		if bs[i].SortKey != bs[j].SortKey {
			return bs[i].SortKey < bs[j].SortKey
		}
		return bs[i].ID < bs[j].ID
	})

	idx := &levelIndex{
		basins:   bs,
		byID:     make(map[int64]int, len(bs)),
		byCode:   make(map[string][]int),
		children: make(map[int64][]int),
		bounds:   make([]*geom.Bounds, len(bs)),
	}
	for i, b := range bs {
		if _, dup := idx.byID[b.ID]; dup {
			return nil, eris.Errorf("basin: duplicate id %d at level %d", b.ID, level)
		}
		idx.byID[b.ID] = i
		idx.byCode[b.PfafCode] = append(idx.byCode[b.PfafCode], i)
		if b.Geometry != nil {
			idx.bounds[i] = b.Geometry.Bounds()
		}
	}
	for i, b := range bs {
		if !b.IsOutlet() {
			idx.children[b.NextDown] = append(idx.children[b.NextDown], i)
		}
	}

	if err := idx.checkAcyclic(level); err != nil {
		return nil, err
	}
	return idx, nil
}

// checkAcyclic walks next_down from every basin; each walk either leaves the
// level (outlet or unknown id) or hits a basin already proven to terminate.
func (idx *levelIndex) checkAcyclic(level int) error {
	const (
		unvisited = iota
		onPath
		done
	)
	state := make([]int, len(idx.basins))
	for start := range idx.basins {
		var path []int
		i := start
		for {
			if state[i] == done {
				break
			}
			if state[i] == onPath {
				return eris.Errorf("basin: next_down cycle through %d at level %d", idx.basins[i].ID, level)
			}
			state[i] = onPath
			path = append(path, i)
			next, ok := idx.byID[idx.basins[i].NextDown]
			if idx.basins[i].IsOutlet() || !ok {
				break
			}
			i = next
		}
		for _, p := range path {
			state[p] = done
		}
	}
	return nil
}

// Levels returns the populated levels in ascending order.
func (h *Hierarchy) Levels() []int {
	out := make([]int, 0, len(h.levels))
	for l := range h.levels {
		out = append(out, l)
	}
	sort.Ints(out)
	return out
}

// Len returns the number of basins at level.
func (h *Hierarchy) Len(level int) int {
	if idx, ok := h.levels[level]; ok {
		return len(idx.basins)
	}
	return 0
}

// All returns every basin at level ordered by sort key.
func (h *Hierarchy) All(level int) []model.Basin {
	idx, ok := h.levels[level]
	if !ok {
		return nil
	}
	return idx.basins
}

// Basin looks up a basin by HYBAS_ID within a level.
func (h *Hierarchy) Basin(id int64, level int) (model.Basin, bool) {
	idx, ok := h.levels[level]
	if !ok {
		return model.Basin{}, false
	}
	i, ok := idx.byID[id]
	if !ok {
		return model.Basin{}, false
	}
	return idx.basins[i], true
}

// EnclosingBasin returns the basin at level whose polygon contains p. When
// polygons overlap on a shared edge, the basin with the lowest sort key wins.
func (h *Hierarchy) EnclosingBasin(p geom.Coord, level int) (model.Basin, bool) {
	idx, ok := h.levels[level]
	if !ok {
		return model.Basin{}, false
	}
	for i, b := range idx.basins {
		if b.Geometry == nil || !geoprim.ContainsCoord(idx.bounds[i], p) {
			continue
		}
		if h.prims.Contains(b.Geometry, p) {
			return b, true
		}
	}
	return model.Basin{}, false
}

// FilterByCodePrefix returns the basins at level whose code starts with
// prefix, ordered by code.
func (h *Hierarchy) FilterByCodePrefix(prefix string, level int) []model.Basin {
	idx, ok := h.levels[level]
	if !ok {
		return nil
	}
	var out []model.Basin
	for _, b := range idx.basins {
		if strings.HasPrefix(b.PfafCode, prefix) {
			out = append(out, b)
		}
	}
	sortByCode(out)
	return out
}

// ChildrenOf returns the basins at level whose next_down is id, i.e. the
// basins draining directly into it.
func (h *Hierarchy) ChildrenOf(id int64, level int) []model.Basin {
	idx, ok := h.levels[level]
	if !ok {
		return nil
	}
	kids := idx.children[id]
	out := make([]model.Basin, len(kids))
	for j, i := range kids {
		out[j] = idx.basins[i]
	}
	return out
}

// AncestorsAtCoarserLevel returns the basins at level-1 that contain any of
// the given level basins, found by Pfafstetter prefix. Unknown ids are
// ignored.
func (h *Hierarchy) AncestorsAtCoarserLevel(ids []int64, level int) []model.Basin {
	fine, ok := h.levels[level]
	if !ok || level <= MinLevel {
		return nil
	}
	coarse, ok := h.levels[level-1]
	if !ok {
		return nil
	}

	seen := make(map[int64]struct{})
	var out []model.Basin
	for _, id := range ids {
		i, ok := fine.byID[id]
		if !ok {
			continue
		}
		parentCode := ParentCode(fine.basins[i].PfafCode, level)
		for _, j := range coarse.byCode[parentCode] {
			p := coarse.basins[j]
			if _, dup := seen[p.ID]; dup {
				continue
			}
			seen[p.ID] = struct{}{}
			out = append(out, p)
		}
	}
	sortByCode(out)
	return out
}

// CheckNesting verifies that every basin above MinLevel has exactly one
// parent one level coarser. Levels missing from the hierarchy are skipped.
func (h *Hierarchy) CheckNesting() error {
	for _, level := range h.Levels() {
		if level == MinLevel {
			continue
		}
		coarse, ok := h.levels[level-1]
		if !ok {
			continue
		}
		for _, b := range h.levels[level].basins {
			n := len(coarse.byCode[ParentCode(b.PfafCode, level)])
			if n != 1 {
				return eris.Errorf("basin: %d (%s) at level %d has %d parents at level %d",
					b.ID, b.PfafCode, level, n, level-1)
			}
		}
	}
	return nil
}

func sortByCode(bs []model.Basin) {
	sort.SliceStable(bs, func(i, j int) bool {
		if bs[i].PfafCode != bs[j].PfafCode {
			return bs[i].PfafCode < bs[j].PfafCode
		}
		return bs[i].ID < bs[j].ID
	})
}
