package hydrosheds

import (
	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"github.com/twpayne/go-geom/xy"
	"go.uber.org/zap"
)

// SRID is the coordinate system of every HydroSHEDS product (WGS84).
const SRID = 4326

// EncodeEWKB marshals g as little-endian EWKB tagged with SRID 4326.
func EncodeEWKB(g geom.T) ([]byte, error) {
	if g == nil {
		return nil, nil
	}
	switch t := g.(type) {
	case *geom.Point:
		g = t.SetSRID(SRID)
	case *geom.LineString:
		g = t.SetSRID(SRID)
	case *geom.MultiPolygon:
		g = t.SetSRID(SRID)
	}
	data, err := ewkb.Marshal(g, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "hydrosheds: encode EWKB")
	}
	return data, nil
}

// PointEWKB encodes a lon/lat pair.
func PointEWKB(lon, lat float64) ([]byte, error) {
	return EncodeEWKB(geom.NewPointFlat(geom.XY, []float64{lon, lat}))
}

// partBounds returns the [start, end) point range of part i.
func partBounds(parts []int32, numPoints, i int) (int32, int32) {
	start := parts[i]
	end := int32(numPoints)
	if i+1 < len(parts) {
		end = parts[i+1]
	}
	return start, end
}

// polyLineToLineString joins all parts of a shapefile PolyLine into one
// LineString. HydroRIVERS reaches are single-part.
func polyLineToLineString(pl *shp.PolyLine) *geom.LineString {
	if pl == nil || pl.NumParts == 0 || len(pl.Points) < 2 {
		return nil
	}
	flat := make([]float64, 0, 2*len(pl.Points))
	for i := 0; i < int(pl.NumParts); i++ {
		start, end := partBounds(pl.Parts, len(pl.Points), i)
		for j := start; j < end; j++ {
			p := pl.Points[j]
			n := len(flat)
			if n >= 2 && flat[n-2] == p.X && flat[n-1] == p.Y {
				continue
			}
			flat = append(flat, p.X, p.Y)
		}
	}
	if len(flat) < 4 {
		return nil
	}
	return geom.NewLineStringFlat(geom.XY, flat)
}

// polygonToMultiPolygon converts a shapefile Polygon to a MultiPolygon.
// Clockwise rings start a new polygon; counter-clockwise rings are holes of
// the polygon before them.
func polygonToMultiPolygon(p *shp.Polygon) *geom.MultiPolygon {
	if p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	mp := geom.NewMultiPolygon(geom.XY)
	var current *geom.Polygon

	flush := func() {
		if current == nil {
			return
		}
		if err := mp.Push(current); err != nil {
			zap.L().Debug("hydrosheds: skipping malformed polygon", zap.Error(err))
		}
		current = nil
	}

	for i := 0; i < int(p.NumParts); i++ {
		start, end := partBounds(p.Parts, len(p.Points), i)
		if end-start < 4 {
			continue
		}
		flat := make([]float64, 0, 2*(end-start))
		for j := start; j < end; j++ {
			flat = append(flat, p.Points[j].X, p.Points[j].Y)
		}
		ring := geom.NewLinearRingFlat(geom.XY, flat)

		if current != nil && xy.SignedArea(geom.XY, flat) < 0 {
			if err := current.Push(ring); err != nil {
				zap.L().Debug("hydrosheds: skipping malformed hole", zap.Int("part", i), zap.Error(err))
			}
			continue
		}

		flush()
		current = geom.NewPolygon(geom.XY)
		if err := current.Push(ring); err != nil {
			zap.L().Debug("hydrosheds: skipping malformed ring", zap.Int("part", i), zap.Error(err))
			current = nil
		}
	}
	flush()

	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}
