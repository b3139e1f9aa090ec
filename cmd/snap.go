package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/watershed-cli/internal/hydrosheds"
	"github.com/sells-group/watershed-cli/internal/model"
	"github.com/sells-group/watershed-cli/internal/snap"
)

var (
	snapLon     float64
	snapLat     float64
	snapGeoJSON bool
)

var snapCmd = &cobra.Command{
	Use:   "snap",
	Short: "Snap one coordinate onto the river network",
	Long:  "Loads only the HydroRIVERS network for the region and prints where a point would snap, for auditing the radius and interval settings.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		applyResolveFlags(cmd, cfg)

		if err := hydrosheds.ValidateRegion(cfg.HydroSHEDS.Region); err != nil {
			return err
		}
		paths := hydrosheds.LocalPaths(cfg.HydroSHEDS.DataDir, cfg.HydroSHEDS.Region)
		network, err := hydrosheds.LoadNetwork(paths, loadOptions(cfg))
		if err != nil {
			return eris.Wrap(err, "snap: load network")
		}

		sp, err := snap.New(nil).Snap(ctx, geom.Coord{snapLon, snapLat}, network,
			cfg.Snap.SearchRadiusM, cfg.Snap.SampleIntervalM)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if snapGeoJSON {
			return enc.Encode(snappedFeature("", snapLon, snapLat, sp))
		}
		return enc.Encode(sp)
	},
}

// snappedFeature renders a snapped point as a GeoJSON feature that keeps
// the raw coordinate in its properties.
func snappedFeature(id string, rawLon, rawLat float64, sp model.SnappedPoint) *geojson.Feature {
	pt := geom.NewPointFlat(geom.XY, []float64{sp.Lon, sp.Lat})
	return &geojson.Feature{
		ID:       id,
		Geometry: pt,
		Properties: map[string]interface{}{
			"raw_lon":        rawLon,
			"raw_lat":        rawLat,
			"reach_id":       sp.ReachID,
			"displacement_m": sp.DisplacementM,
		},
	}
}

func init() {
	addResolveFlags(snapCmd)
	snapCmd.Flags().Float64Var(&snapLon, "lon", 0, "longitude in decimal degrees")
	snapCmd.Flags().Float64Var(&snapLat, "lat", 0, "latitude in decimal degrees")
	snapCmd.Flags().BoolVar(&snapGeoJSON, "geojson", false, "print a GeoJSON feature instead of plain JSON")
	_ = snapCmd.MarkFlagRequired("lon")
	_ = snapCmd.MarkFlagRequired("lat")
	rootCmd.AddCommand(snapCmd)
}
