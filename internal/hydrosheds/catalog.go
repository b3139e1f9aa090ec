// Package hydrosheds downloads and parses the HydroBASINS and HydroRIVERS
// shapefile products.
package hydrosheds

import (
	"fmt"
	"slices"
	"strings"

	"github.com/rotisserie/eris"
)

// DefaultBaseURL is the HydroSHEDS download host.
const DefaultBaseURL = "https://data.hydrosheds.org/file"

// Regions lists the HydroBASINS continental extents.
var Regions = []string{"af", "ar", "as", "au", "eu", "gr", "na", "sa", "si"}

// Catalog resolves product URLs and extracted file names for a region.
type Catalog struct {
	// BaseURL may point at a mirror, including ftp:// hosts.
	BaseURL string
}

// NewCatalog returns a Catalog rooted at baseURL, or DefaultBaseURL if empty.
func NewCatalog(baseURL string) Catalog {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return Catalog{BaseURL: strings.TrimRight(baseURL, "/")}
}

// ValidateRegion returns an error for unknown region codes.
func ValidateRegion(region string) error {
	if !slices.Contains(Regions, region) {
		return eris.Errorf("hydrosheds: unknown region %q (want one of %s)", region, strings.Join(Regions, ", "))
	}
	return nil
}

// BasinsURL is the archive holding all twelve HydroBASINS levels.
func (c Catalog) BasinsURL(region string) string {
	return fmt.Sprintf("%s/HydroBASINS/standard/%s", c.BaseURL, BasinsArchive(region))
}

// RiversURL is the HydroRIVERS archive for region.
func (c Catalog) RiversURL(region string) string {
	return fmt.Sprintf("%s/HydroRIVERS/%s", c.BaseURL, RiversArchive(region))
}

// BasinsArchive is the file name of the HydroBASINS ZIP.
func BasinsArchive(region string) string {
	return fmt.Sprintf("hybas_%s_lev01-12_v1c.zip", region)
}

// RiversArchive is the file name of the HydroRIVERS ZIP.
func RiversArchive(region string) string {
	return fmt.Sprintf("HydroRIVERS_v10_%s_shp.zip", region)
}

// BasinsShapefile is the extracted shapefile name for one level.
func BasinsShapefile(region string, level int) string {
	return fmt.Sprintf("hybas_%s_lev%02d_v1c.shp", region, level)
}

// RiversShapefile is the extracted HydroRIVERS shapefile name.
func RiversShapefile(region string) string {
	return fmt.Sprintf("HydroRIVERS_v10_%s.shp", region)
}

// isShapefilePart matches the sidecar files go-shp needs.
func isShapefilePart(name string) bool {
	switch strings.ToLower(name[strings.LastIndex(name, ".")+1:]) {
	case "shp", "shx", "dbf", "prj", "cpg":
		return true
	}
	return false
}
