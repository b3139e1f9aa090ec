package hydrosheds

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCatalogURLs(t *testing.T) {
	c := NewCatalog("")
	assert.Equal(t,
		"https://data.hydrosheds.org/file/HydroBASINS/standard/hybas_eu_lev01-12_v1c.zip",
		c.BasinsURL("eu"))
	assert.Equal(t,
		"https://data.hydrosheds.org/file/HydroRIVERS/HydroRIVERS_v10_eu_shp.zip",
		c.RiversURL("eu"))

	mirror := NewCatalog("ftp://mirror.example.org/hydrosheds/")
	assert.Equal(t,
		"ftp://mirror.example.org/hydrosheds/HydroRIVERS/HydroRIVERS_v10_af_shp.zip",
		mirror.RiversURL("af"))
}

func TestShapefileNames(t *testing.T) {
	assert.Equal(t, "hybas_na_lev01_v1c.shp", BasinsShapefile("na", 1))
	assert.Equal(t, "hybas_na_lev12_v1c.shp", BasinsShapefile("na", 12))
	assert.Equal(t, "HydroRIVERS_v10_na.shp", RiversShapefile("na"))
}

func TestValidateRegion(t *testing.T) {
	for _, r := range Regions {
		assert.NoError(t, ValidateRegion(r))
	}
	assert.ErrorContains(t, ValidateRegion("xx"), "unknown region")
}

func TestLocalPaths(t *testing.T) {
	p := LocalPaths("/data", "eu")
	assert.Equal(t, filepath.Join("/data", "eu"), p.Dir)
	assert.Len(t, p.Basins, 12)
	assert.Equal(t, filepath.Join("/data", "eu", "hybas_eu_lev07_v1c.shp"), p.Basins[7])
	assert.Equal(t, filepath.Join("/data", "eu", "HydroRIVERS_v10_eu.shp"), p.Rivers)
}

func TestIsShapefilePart(t *testing.T) {
	assert.True(t, isShapefilePart("hybas_eu_lev01_v1c.shp"))
	assert.True(t, isShapefilePart("hybas_eu_lev01_v1c.DBF"))
	assert.True(t, isShapefilePart("x.shx"))
	assert.False(t, isShapefilePart("HydroBASINS_TechDoc_v1c.pdf"))
	assert.False(t, isShapefilePart("README"))
}
