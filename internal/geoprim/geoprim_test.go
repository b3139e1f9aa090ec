package geoprim

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
)

var prims = Equirectangular{}

// metres per degree of longitude at the equator.
var degM = metresPerDegree

func TestSearchBounds_Equator(t *testing.T) {
	b := prims.SearchBounds(geom.Coord{0, 0}, degM)

	assert.InDelta(t, -1, b.Min(0), 1e-9)
	assert.InDelta(t, 1, b.Max(0), 1e-9)
	assert.InDelta(t, -1, b.Min(1), 1e-9)
	assert.InDelta(t, 1, b.Max(1), 1e-9)
}

func TestSearchBounds_WidensWithLatitude(t *testing.T) {
	b := prims.SearchBounds(geom.Coord{10, 60}, 1000)
	width := b.Max(0) - b.Min(0)
	height := b.Max(1) - b.Min(1)

	// cos(60°) = 0.5, so the box is twice as wide in degrees.
	assert.InDelta(t, 2*height, width, 1e-9)
}

func TestDistance(t *testing.T) {
	d := prims.Distance(geom.Coord{0, 0}, geom.Coord{0, 1})
	assert.InDelta(t, degM, d, 1e-6)
}

func TestDistanceToLine(t *testing.T) {
	line := geom.NewLineStringFlat(geom.XY, []float64{-1, 0, 1, 0})

	assert.InDelta(t, 0.5*degM, prims.DistanceToLine(geom.Coord{0, 0.5}, line), 1e-6)
	assert.InDelta(t, 0, prims.DistanceToLine(geom.Coord{0.3, 0}, line), 1e-9)
}

func TestDistanceToLine_SingleVertex(t *testing.T) {
	line := geom.NewLineStringFlat(geom.XY, []float64{0, 0})
	assert.InDelta(t, degM, prims.DistanceToLine(geom.Coord{0, 1}, line), 1e-6)
}

func TestDistanceToLine_Nil(t *testing.T) {
	assert.True(t, math.IsInf(prims.DistanceToLine(geom.Coord{0, 0}, nil), 1))
}

func TestLength(t *testing.T) {
	line := geom.NewLineStringFlat(geom.XY, []float64{0, 0, 0, 1, 0, 3})
	assert.InDelta(t, 3*degM, prims.Length(line), 1e-6)
	assert.Equal(t, 0.0, prims.Length(nil))
}

func TestSampleAlong(t *testing.T) {
	// Vertical line at the equator meridian: metric length is exact.
	line := geom.NewLineStringFlat(geom.XY, []float64{0, 0, 0, 1, 0, 2})
	interval := 0.25 * degM

	samples := prims.SampleAlong(line, interval, 2*degM)
	require.Len(t, samples, 9)
	for i, s := range samples {
		assert.InDelta(t, 0, s[0], 1e-12)
		assert.InDelta(t, 0.25*float64(i), s[1], 1e-9)
	}
}

func TestSampleAlong_StopsAtMaxDist(t *testing.T) {
	line := geom.NewLineStringFlat(geom.XY, []float64{0, 0, 0, 2})
	samples := prims.SampleAlong(line, 0.5*degM, 1*degM)

	require.Len(t, samples, 3)
	assert.InDelta(t, 1.0, samples[2][1], 1e-9)
}

func TestSampleAlong_PointsLieOnLine(t *testing.T) {
	line := geom.NewLineStringFlat(geom.XY, []float64{10, 45, 10.01, 45.02, 10.03, 45.02})
	samples := prims.SampleAlong(line, 50, prims.Length(line))

	require.NotEmpty(t, samples)
	for _, s := range samples {
		assert.InDelta(t, 0, prims.DistanceToLine(s, line), 1e-6)
	}
}

func TestSampleAlong_InvalidInterval(t *testing.T) {
	line := geom.NewLineStringFlat(geom.XY, []float64{0, 0, 0, 1})
	assert.Nil(t, prims.SampleAlong(line, 0, 10))
}

func TestIntersectsBounds(t *testing.T) {
	box := geom.NewBounds(geom.XY).Set(0, 0, 1, 1)

	tests := []struct {
		name string
		flat []float64
		want bool
	}{
		{"vertex inside", []float64{0.5, 0.5, 3, 3}, true},
		{"crosses without vertex inside", []float64{-1, 0.5, 2, 0.5}, true},
		{"diagonal miss with overlapping bounds", []float64{-0.5, 0.8, 0.3, 1.6}, false},
		{"far away", []float64{5, 5, 6, 6}, false},
		{"touches corner", []float64{1, 1, 2, 2}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line := geom.NewLineStringFlat(geom.XY, tt.flat)
			assert.Equal(t, tt.want, prims.IntersectsBounds(line, box))
		})
	}
}

func squareWithHole() *geom.MultiPolygon {
	return geom.NewMultiPolygonFlat(geom.XY, []float64{
		0, 0, 10, 0, 10, 10, 0, 10, 0, 0,
		4, 4, 6, 4, 6, 6, 4, 6, 4, 4,
	}, [][]int{{10, 20}})
}

func TestContains(t *testing.T) {
	poly := squareWithHole()

	assert.True(t, prims.Contains(poly, geom.Coord{1, 1}))
	assert.True(t, prims.Contains(poly, geom.Coord{0, 5}), "boundary counts as inside")
	assert.False(t, prims.Contains(poly, geom.Coord{5, 5}), "inside hole")
	assert.True(t, prims.Contains(poly, geom.Coord{4, 5}), "hole boundary belongs to polygon")
	assert.False(t, prims.Contains(poly, geom.Coord{11, 5}))
	assert.False(t, prims.Contains(nil, geom.Coord{1, 1}))
}

func TestOverlaps(t *testing.T) {
	a := geom.NewBounds(geom.XY).Set(0, 0, 1, 1)
	b := geom.NewBounds(geom.XY).Set(1, 1, 2, 2)
	c := geom.NewBounds(geom.XY).Set(1.1, 0, 2, 1)

	assert.True(t, Overlaps(a, b))
	assert.False(t, Overlaps(a, c))
	assert.False(t, Overlaps(a, nil))
}
