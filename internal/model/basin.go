package model

import "github.com/twpayne/go-geom"

// NoNextDown is the HydroBASINS NEXT_DOWN value for outlets and sinks.
const NoNextDown int64 = 0

// Basin is one polygon of the HydroBASINS hierarchy at a single level.
type Basin struct {
	ID       int64  `json:"hybas_id"`
	PfafCode string `json:"pfaf_id"`
	NextDown int64  `json:"next_down"`
	Level    int    `json:"level"`
	SortKey  int64  `json:"sort"`

	Geometry *geom.MultiPolygon `json:"-"`
}

// IsOutlet reports whether the basin drains to an ocean or an inland sink.
func (b Basin) IsOutlet() bool {
	return b.NextDown == NoNextDown
}

// RiverReach is one polyline segment of the HydroRIVERS network.
type RiverReach struct {
	ID       int64            `json:"hyriv_id"`
	LengthKm float64          `json:"length_km"`
	Geometry *geom.LineString `json:"-"`
}
