package model

// SnappedPointRecord is the export row for a successfully snapped dam.
type SnappedPointRecord struct {
	DamID         string  `json:"dam_id"`
	RawLon        float64 `json:"raw_lon"`
	RawLat        float64 `json:"raw_lat"`
	SnappedLon    float64 `json:"snapped_lon"`
	SnappedLat    float64 `json:"snapped_lat"`
	DisplacementM float64 `json:"displacement_m"`
}

// AncestorSetRecord is the export row listing every level-12 basin
// draining into a dam.
type AncestorSetRecord struct {
	DamID            string  `json:"dam_id"`
	OutletBasinID    int64   `json:"outlet_basin_id"`
	UpstreamBasinIDs []int64 `json:"upstream_basin_ids"`
}

// FailureRecord describes why a dam dropped out of a batch.
type FailureRecord struct {
	DamID  string `json:"dam_id"`
	Stage  Stage  `json:"stage"`
	Reason string `json:"reason"`
}

// NewSnappedPointRecord builds the export row for a snapped dam.
func NewSnappedPointRecord(d Dam) SnappedPointRecord {
	r := SnappedPointRecord{DamID: d.ID, RawLon: d.Lon, RawLat: d.Lat}
	if d.Snapped != nil {
		r.SnappedLon = d.Snapped.Lon
		r.SnappedLat = d.Snapped.Lat
		r.DisplacementM = d.Snapped.DisplacementM
	}
	return r
}

// NewAncestorSetRecord builds the export row for a resolved dam.
func NewAncestorSetRecord(d Dam) AncestorSetRecord {
	ids := make([]int64, len(d.UpstreamBasinIDs))
	copy(ids, d.UpstreamBasinIDs)
	return AncestorSetRecord{
		DamID:            d.ID,
		OutletBasinID:    d.OutletBasinID,
		UpstreamBasinIDs: ids,
	}
}
