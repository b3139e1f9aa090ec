package upstream

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/watershed-cli/internal/basin"
	"github.com/sells-group/watershed-cli/internal/model"
)

// ResolutionLevel is the hierarchy level upstream sets are expressed at.
const ResolutionLevel = basin.MaxLevel

// Prune keeps the level-12 basins that can drain to the outlet: those inside
// the bounding basin's branch (code prefix) and not downstream of the outlet
// (code >= outlet code). The outlet itself is always kept.
func Prune(h *basin.Hierarchy, bound basin.Bound, outlet model.Basin) ([]model.Basin, error) {
	if outlet.Level != ResolutionLevel {
		return nil, eris.Wrapf(model.ErrResolutionFailed,
			"upstream: outlet basin %d is at level %d, want %d", outlet.ID, outlet.Level, ResolutionLevel)
	}
	prefix := bound.Basin.PfafCode
	if len(outlet.PfafCode) < len(prefix) || outlet.PfafCode[:len(prefix)] != prefix {
		return nil, eris.Wrapf(model.ErrResolutionFailed,
			"upstream: outlet basin %d (%s) is outside bounding branch %s", outlet.ID, outlet.PfafCode, prefix)
	}

	var out []model.Basin
	for _, b := range h.FilterByCodePrefix(prefix, ResolutionLevel) {
		if b.PfafCode >= outlet.PfafCode {
			out = append(out, b)
		}
	}
	if len(out) == 0 {
		return nil, eris.Wrapf(model.ErrResolutionFailed,
			"upstream: no level-%d basins under branch %s", ResolutionLevel, prefix)
	}
	if !containsID(out, outlet.ID) {
		return nil, eris.Wrapf(model.ErrResolutionFailed,
			"upstream: outlet basin %d missing from search space", outlet.ID)
	}
	return out, nil
}

func containsID(bs []model.Basin, id int64) bool {
	for _, b := range bs {
		if b.ID == id {
			return true
		}
	}
	return false
}
