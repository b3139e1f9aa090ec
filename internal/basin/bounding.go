package basin

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/watershed-cli/internal/model"
)

// Bound is the basin that fully encloses a dam's upstream drainage, and the
// level it was found at.
type Bound struct {
	Level int
	Basin model.Basin
}

// LevelFinder searches the hierarchy for a dam's bounding level.
type LevelFinder struct {
	h *Hierarchy
}

// NewLevelFinder creates a LevelFinder over h.
func NewLevelFinder(h *Hierarchy) *LevelFinder {
	return &LevelFinder{h: h}
}

// FindBoundingLevel walks levels from coarse to fine and returns the finest
// basin around p that still holds the whole upstream drainage of p.
//
// Level 1 is the root. A finer enclosing basin is accepted while it nests in
// the basin accepted one level up and no basin at its own level drains into
// it. The walk stops at the first level that breaks either condition or has
// no data; the last accepted basin is returned. Finer headwater basins below
// a level with inflow are not considered.
func (f *LevelFinder) FindBoundingLevel(p geom.Coord) (Bound, error) {
	root, ok := f.h.EnclosingBasin(p, MinLevel)
	if !ok {
		return Bound{}, eris.Wrapf(model.ErrNoEnclosingBasin, "basin: (%.6f, %.6f) at level %d", p[0], p[1], MinLevel)
	}

	log := zap.L().With(zap.String("component", "basin.bounding"))

	bound := Bound{Level: MinLevel, Basin: root}
	for level := MinLevel + 1; level <= MaxLevel; level++ {
		b, ok := f.h.EnclosingBasin(p, level)
		if !ok {
			log.Debug("no enclosing basin, stopping", zap.Int("level", level))
			break
		}
		if !f.nestsIn(b, bound) {
			log.Debug("enclosing basin does not nest in coarser bound",
				zap.Int("level", level),
				zap.Int64("basin_id", b.ID),
				zap.Int64("bound_id", bound.Basin.ID),
			)
			break
		}
		if inflow := f.h.ChildrenOf(b.ID, level); len(inflow) > 0 {
			break
		}
		bound = Bound{Level: level, Basin: b}
	}
	return bound, nil
}

func (f *LevelFinder) nestsIn(b model.Basin, bound Bound) bool {
	if b.Level != bound.Level+1 {
		return false
	}
	for _, parent := range f.h.AncestorsAtCoarserLevel([]int64{b.ID}, b.Level) {
		if parent.ID == bound.Basin.ID {
			return true
		}
	}
	return false
}
