// Package geoprim provides the planar spatial primitives used by the snapper
// and the basin hierarchy: distances, lengths, sampling along a line, bbox
// intersection and point-in-polygon tests on lon/lat geometries.
//
// Metric quantities are computed in a local equirectangular frame, which is
// accurate to well under a metre at the search radii used for dam snapping.
package geoprim

import (
	"math"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
)

// EarthRadiusM is the mean Earth radius used for degree/metre conversion.
const EarthRadiusM = 6371008.8

// metresPerDegree is the length of one degree of latitude.
var metresPerDegree = EarthRadiusM * math.Pi / 180

// minCos keeps longitude scaling finite near the poles.
const minCos = 1e-6

// Primitives is the spatial capability consumed by the resolution core.
// Coordinates are lon/lat (geom.XY); lengths and distances are metres.
type Primitives interface {
	// SearchBounds returns the bounding box of p buffered by radiusM.
	SearchBounds(p geom.Coord, radiusM float64) *geom.Bounds
	// IntersectsBounds reports whether any part of line lies inside b.
	IntersectsBounds(line *geom.LineString, b *geom.Bounds) bool
	// Distance returns the distance between two points.
	Distance(a, b geom.Coord) float64
	// DistanceToLine returns the shortest distance from p to line.
	DistanceToLine(p geom.Coord, line *geom.LineString) float64
	// Length returns the length of line.
	Length(line *geom.LineString) float64
	// SampleAlong returns points on line every interval metres from its start
	// up to and including maxDist.
	SampleAlong(line *geom.LineString, interval, maxDist float64) []geom.Coord
	// Contains reports whether p lies inside or on the boundary of poly.
	Contains(poly *geom.MultiPolygon, p geom.Coord) bool
}

// Equirectangular implements Primitives with a local equirectangular
// projection per query point or segment.
type Equirectangular struct{}

var _ Primitives = Equirectangular{}

// SearchBounds implements Primitives.
func (Equirectangular) SearchBounds(p geom.Coord, radiusM float64) *geom.Bounds {
	dLat := radiusM / metresPerDegree
	dLon := radiusM / (metresPerDegree * lonScale(p[1]))
	return geom.NewBounds(geom.XY).Set(p[0]-dLon, p[1]-dLat, p[0]+dLon, p[1]+dLat)
}

// IntersectsBounds implements Primitives.
func (Equirectangular) IntersectsBounds(line *geom.LineString, b *geom.Bounds) bool {
	if line == nil || line.NumCoords() == 0 || !Overlaps(line.Bounds(), b) {
		return false
	}
	n := line.NumCoords()
	if n == 1 {
		return ContainsCoord(b, line.Coord(0))
	}
	for i := 0; i < n-1; i++ {
		if segmentIntersectsBounds(line.Coord(i), line.Coord(i+1), b) {
			return true
		}
	}
	return false
}

// Distance implements Primitives.
func (Equirectangular) Distance(a, b geom.Coord) float64 {
	return segmentLength(a, b)
}

// DistanceToLine implements Primitives.
func (Equirectangular) DistanceToLine(p geom.Coord, line *geom.LineString) float64 {
	if line == nil || line.NumCoords() == 0 {
		return math.Inf(1)
	}
	if line.NumCoords() == 1 {
		return segmentLength(p, line.Coord(0))
	}
	origin := geom.Coord{0, 0}
	projected := project(p, line.FlatCoords())
	return xy.DistanceFromPointToLineString(geom.XY, origin, projected)
}

// Length implements Primitives.
func (Equirectangular) Length(line *geom.LineString) float64 {
	if line == nil {
		return 0
	}
	var total float64
	for i := 0; i < line.NumCoords()-1; i++ {
		total += segmentLength(line.Coord(i), line.Coord(i+1))
	}
	return total
}

// SampleAlong implements Primitives.
func (Equirectangular) SampleAlong(line *geom.LineString, interval, maxDist float64) []geom.Coord {
	if line == nil || line.NumCoords() == 0 || interval <= 0 || maxDist < 0 {
		return nil
	}

	n := line.NumCoords()
	samples := []geom.Coord{copyCoord(line.Coord(0))}
	if n == 1 {
		return samples
	}

	// Tolerance (metres) absorbs floating point drift at segment ends.
	const eps = 1e-6
	k := 1
	walked := 0.0
	for i := 0; i < n-1 && float64(k)*interval <= maxDist+eps; i++ {
		a, b := line.Coord(i), line.Coord(i+1)
		segLen := segmentLength(a, b)
		for {
			next := float64(k) * interval
			if next > walked+segLen+eps || next > maxDist+eps {
				break
			}
			t := 1.0
			if segLen > 0 {
				t = math.Min((next-walked)/segLen, 1)
			}
			samples = append(samples, geom.Coord{
				a[0] + t*(b[0]-a[0]),
				a[1] + t*(b[1]-a[1]),
			})
			k++
		}
		walked += segLen
	}
	return samples
}

// Contains implements Primitives.
func (Equirectangular) Contains(poly *geom.MultiPolygon, p geom.Coord) bool {
	if poly == nil || poly.NumPolygons() == 0 || !ContainsCoord(poly.Bounds(), p) {
		return false
	}
	for i := 0; i < poly.NumPolygons(); i++ {
		if polygonContains(poly.Polygon(i), p) {
			return true
		}
	}
	return false
}

func polygonContains(poly *geom.Polygon, p geom.Coord) bool {
	if poly.NumLinearRings() == 0 {
		return false
	}
	if !xy.IsPointInRing(geom.XY, p, poly.LinearRing(0).FlatCoords()) {
		return false
	}
	for j := 1; j < poly.NumLinearRings(); j++ {
		hole := poly.LinearRing(j).FlatCoords()
		if xy.IsPointInRing(geom.XY, p, hole) && !xy.IsOnLine(geom.XY, p, hole) {
			return false
		}
	}
	return true
}

// Overlaps reports whether two XY bounds share any point.
func Overlaps(a, b *geom.Bounds) bool {
	if a == nil || b == nil || a.IsEmpty() || b.IsEmpty() {
		return false
	}
	return a.Min(0) <= b.Max(0) && b.Min(0) <= a.Max(0) &&
		a.Min(1) <= b.Max(1) && b.Min(1) <= a.Max(1)
}

// ContainsCoord reports whether p lies inside or on b.
func ContainsCoord(b *geom.Bounds, p geom.Coord) bool {
	if b == nil || b.IsEmpty() {
		return false
	}
	return b.Min(0) <= p[0] && p[0] <= b.Max(0) && b.Min(1) <= p[1] && p[1] <= b.Max(1)
}

func lonScale(lat float64) float64 {
	return math.Max(math.Cos(lat*math.Pi/180), minCos)
}

// segmentLength is the metric length of a-b in a frame centred on its mid latitude.
func segmentLength(a, b geom.Coord) float64 {
	k := lonScale((a[1] + b[1]) / 2)
	dx := (b[0] - a[0]) * metresPerDegree * k
	dy := (b[1] - a[1]) * metresPerDegree
	return math.Hypot(dx, dy)
}

// project maps flat lon/lat coordinates into metres around origin.
func project(origin geom.Coord, flat []float64) []float64 {
	k := lonScale(origin[1])
	out := make([]float64, len(flat))
	for i := 0; i+1 < len(flat); i += 2 {
		out[i] = (flat[i] - origin[0]) * metresPerDegree * k
		out[i+1] = (flat[i+1] - origin[1]) * metresPerDegree
	}
	return out
}

// segmentIntersectsBounds clips a-b against b (Liang–Barsky).
func segmentIntersectsBounds(a, c geom.Coord, b *geom.Bounds) bool {
	dx, dy := c[0]-a[0], c[1]-a[1]
	t0, t1 := 0.0, 1.0
	edges := [4][2]float64{
		{-dx, a[0] - b.Min(0)},
		{dx, b.Max(0) - a[0]},
		{-dy, a[1] - b.Min(1)},
		{dy, b.Max(1) - a[1]},
	}
	for _, e := range edges {
		p, q := e[0], e[1]
		if p == 0 {
			if q < 0 {
				return false
			}
			continue
		}
		r := q / p
		if p < 0 {
			if r > t1 {
				return false
			}
			if r > t0 {
				t0 = r
			}
		} else {
			if r < t0 {
				return false
			}
			if r < t1 {
				t1 = r
			}
		}
	}
	return t0 <= t1
}

func copyCoord(c geom.Coord) geom.Coord {
	return geom.Coord{c[0], c[1]}
}
