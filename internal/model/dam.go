// Package model defines the shared domain types for dam-to-watershed resolution.
package model

// Dam is a candidate dam location read from an input table.
type Dam struct {
	ID   string  `json:"id" yaml:"id"`
	Name string  `json:"name,omitempty" yaml:"name,omitempty"`
	Lon  float64 `json:"lon" yaml:"lon"`
	Lat  float64 `json:"lat" yaml:"lat"`

	// Snapped and UpstreamBasinIDs are set once, by the batch orchestrator,
	// after a dam has passed every stage.
	Snapped          *SnappedPoint `json:"snapped,omitempty" yaml:"-"`
	OutletBasinID    int64         `json:"outlet_basin_id,omitempty" yaml:"-"`
	UpstreamBasinIDs []int64       `json:"upstream_basin_ids,omitempty" yaml:"-"`
}

// SnappedPoint is a dam location moved onto the nearest river reach.
type SnappedPoint struct {
	Lon           float64 `json:"lon"`
	Lat           float64 `json:"lat"`
	ReachID       int64   `json:"reach_id"`
	DisplacementM float64 `json:"displacement_m"`
}

// Stage names a step of the per-dam pipeline.
type Stage string

const (
	StageSnap          Stage = "snap"
	StageBoundingLevel Stage = "bounding_level"
	StageOutletBasin   Stage = "outlet_basin"
	StageResolve       Stage = "resolve"
)
