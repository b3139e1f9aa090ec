package upstream

import (
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/watershed-cli/internal/basin"
	"github.com/sells-group/watershed-cli/internal/model"
)

// Resolver selects the upstream basins of outlet from a pruned search space.
// Implementations return ids in no particular order; Resolve sorts them.
type Resolver interface {
	Method() Method
	Upstream(space []model.Basin, outlet model.Basin) []int64
}

// NewResolver returns the strategy for m. Unknown methods fall back to
// DefaultMethod.
func NewResolver(m Method) Resolver {
	switch m {
	case AncestorTrace:
		return ancestorTrace{}
	case FullAggregate:
		return fullAggregate{}
	default:
		return pfafTrail{}
	}
}

// Resolve prunes the level-12 search space and applies r. The result is
// sorted, unique and always contains the outlet basin.
func Resolve(h *basin.Hierarchy, bound basin.Bound, outlet model.Basin, r Resolver) ([]int64, error) {
	space, err := Prune(h, bound, outlet)
	if err != nil {
		return nil, err
	}

	ids := r.Upstream(space, outlet)
	if len(ids) == 0 {
		return nil, eris.Wrapf(model.ErrResolutionFailed,
			"upstream: %s found no basins for outlet %d", r.Method(), outlet.ID)
	}

	set := make(map[int64]struct{}, len(ids)+1)
	set[outlet.ID] = struct{}{}
	for _, id := range ids {
		set[id] = struct{}{}
	}
	out := make([]int64, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })

	zap.L().Debug("upstream: resolved",
		zap.String("method", r.Method().String()),
		zap.Int64("outlet_basin_id", outlet.ID),
		zap.Int("bounding_level", bound.Level),
		zap.Int("search_space", len(space)),
		zap.Int("upstream", len(out)),
	)
	return out, nil
}

type ancestorTrace struct{}

func (ancestorTrace) Method() Method { return AncestorTrace }

// Upstream runs a worklist over the reversed next_down relation until no new
// basin is discovered.
func (ancestorTrace) Upstream(space []model.Basin, outlet model.Basin) []int64 {
	inflow := make(map[int64][]int64, len(space))
	for _, b := range space {
		if !b.IsOutlet() {
			inflow[b.NextDown] = append(inflow[b.NextDown], b.ID)
		}
	}

	found := map[int64]struct{}{outlet.ID: {}}
	out := []int64{outlet.ID}
	queue := []int64{outlet.ID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, up := range inflow[id] {
			if _, ok := found[up]; ok {
				continue
			}
			found[up] = struct{}{}
			out = append(out, up)
			queue = append(queue, up)
		}
	}
	return out
}

type fullAggregate struct{}

func (fullAggregate) Method() Method { return FullAggregate }

func (fullAggregate) Upstream(space []model.Basin, _ model.Basin) []int64 {
	out := make([]int64, len(space))
	for i, b := range space {
		out[i] = b.ID
	}
	return out
}

type pfafTrail struct{}

func (pfafTrail) Method() Method { return PfafTrail }

// Upstream keeps candidate F when the outlet's digits past its common prefix
// with F are all odd or zero: the outlet then sits on the mainstem of every
// sub-basin that F joins, so F drains through it.
func (pfafTrail) Upstream(space []model.Basin, outlet model.Basin) []int64 {
	var out []int64
	for _, f := range space {
		if basin.AllOddOrZero(basin.Trail(outlet.PfafCode, f.PfafCode)) {
			out = append(out, f.ID)
		}
	}
	return out
}
