// Package snap moves approximate dam coordinates onto the nearest mapped
// river reach.
package snap

import (
	"context"
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/watershed-cli/internal/geoprim"
	"github.com/sells-group/watershed-cli/internal/model"
	"github.com/sells-group/watershed-cli/internal/river"
)

// Defaults used when a Snapper is given zero-valued parameters.
const (
	DefaultSearchRadiusM   = 500.0
	DefaultSampleIntervalM = 10.0
)

// Snapper snaps points onto a river network.
type Snapper struct {
	prims geoprim.Primitives
}

// New creates a Snapper. A nil prims uses geoprim.Equirectangular.
func New(prims geoprim.Primitives) *Snapper {
	if prims == nil {
		prims = geoprim.Equirectangular{}
	}
	return &Snapper{prims: prims}
}

// Snap returns the point on the closest reach within searchRadiusM of p
// (lon/lat) that is nearest to p, sampling the reach every sampleIntervalM.
//
// The closest reach is the first one, in ascending reach ID order, at the
// minimum distance: reaches exactly equidistant from p are resolved by ID,
// not by geometry.
func (s *Snapper) Snap(ctx context.Context, p geom.Coord, network *river.Network, searchRadiusM, sampleIntervalM float64) (model.SnappedPoint, error) {
	if err := ctx.Err(); err != nil {
		return model.SnappedPoint{}, eris.Wrap(err, "snap: context")
	}
	if network == nil {
		return model.SnappedPoint{}, eris.New("snap: nil river network")
	}
	if searchRadiusM <= 0 {
		searchRadiusM = DefaultSearchRadiusM
	}
	if sampleIntervalM <= 0 {
		sampleIntervalM = DefaultSampleIntervalM
	}

	region := s.prims.SearchBounds(p, searchRadiusM)

	var (
		best     *model.RiverReach
		bestDist = math.Inf(1)
		seen     int
	)
	for _, r := range network.Query(region) {
		if !s.prims.IntersectsBounds(r.Geometry, region) {
			continue
		}
		seen++
		d := s.prims.DistanceToLine(p, r.Geometry)
		if d < bestDist {
			bestDist = d
			rr := r
			best = &rr
		}
	}
	if best == nil {
		return model.SnappedPoint{}, eris.Wrapf(model.ErrNoNearbyRiver,
			"snap: (%.6f, %.6f) radius %.0fm", p[0], p[1], searchRadiusM)
	}

	maxDist, whole := s.usableLength(best.Geometry, sampleIntervalM)
	samples := s.prims.SampleAlong(best.Geometry, sampleIntervalM, maxDist)
	if whole {
		last := best.Geometry.Coord(best.Geometry.NumCoords() - 1)
		samples = append(samples, geom.Coord{last[0], last[1]})
	}
	if len(samples) == 0 {
		return model.SnappedPoint{}, eris.Errorf("snap: reach %d produced no samples", best.ID)
	}

	snapped := samples[0]
	snappedDist := s.prims.Distance(p, snapped)
	for _, c := range samples[1:] {
		if d := s.prims.Distance(p, c); d < snappedDist {
			snapped, snappedDist = c, d
		}
	}

	zap.L().Debug("snap: point snapped",
		zap.Int64("reach_id", best.ID),
		zap.Int("candidates", seen),
		zap.Int("samples", len(samples)),
		zap.Float64("reach_distance_m", bestDist),
		zap.Float64("displacement_m", snappedDist),
	)

	return model.SnappedPoint{
		Lon:           snapped[0],
		Lat:           snapped[1],
		ReachID:       best.ID,
		DisplacementM: snappedDist,
	}, nil
}

// usableLength rounds the reach length down to a multiple of ten sample
// intervals. Reaches shorter than that are sampled over their full length,
// end vertex included, which is reported by whole.
func (s *Snapper) usableLength(line *geom.LineString, interval float64) (usable float64, whole bool) {
	length := s.prims.Length(line)
	step := 10 * interval
	usable = math.Floor(length/step) * step
	if usable == 0 {
		return length, true
	}
	return usable, false
}
