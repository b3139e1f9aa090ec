package hydrosheds

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
)

type testBasin struct {
	id, nextDown int
	pfaf         string
	sort         int
	rings        [][]shp.Point
}

type testReach struct {
	id       int
	lengthKm float64
	points   []shp.Point
}

// square returns a clockwise ring.
func square(x0, y0, x1, y1 float64) []shp.Point {
	return []shp.Point{{X: x0, Y: y0}, {X: x0, Y: y1}, {X: x1, Y: y1}, {X: x1, Y: y0}, {X: x0, Y: y0}}
}

// hole returns a counter-clockwise ring.
func hole(x0, y0, x1, y1 float64) []shp.Point {
	return []shp.Point{{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1}, {X: x0, Y: y0}}
}

func writeBasins(t *testing.T, path string, basins []testBasin) {
	t.Helper()
	w, err := shp.Create(path, shp.POLYGON)
	require.NoError(t, err)
	defer closeShapefile(t, w, path)

	require.NoError(t, w.SetFields([]shp.Field{
		shp.NumberField(FieldHybasID, 12),
		shp.NumberField(FieldNextDown, 12),
		shp.NumberField(FieldPfafID, 13),
		shp.NumberField(FieldSort, 10),
	}))
	for _, b := range basins {
		poly := shp.Polygon(*shp.NewPolyLine(b.rings))
		row := int(w.Write(&poly))
		require.NoError(t, w.WriteAttribute(row, 0, b.id))
		require.NoError(t, w.WriteAttribute(row, 1, b.nextDown))
		require.NoError(t, w.WriteAttribute(row, 2, b.pfaf))
		require.NoError(t, w.WriteAttribute(row, 3, b.sort))
	}
}

// closeShapefile closes w and moves the attribute table into place. The
// go-shp writer names it "<base>dbf" with no dot, which its own reader
// never finds.
func closeShapefile(t *testing.T, w *shp.Writer, path string) {
	t.Helper()
	w.Close()
	base := strings.TrimSuffix(path, ".shp")
	require.NoError(t, os.Rename(base+"dbf", base+".dbf"))
}

func writeRivers(t *testing.T, path string, reaches []testReach) {
	t.Helper()
	w, err := shp.Create(path, shp.POLYLINE)
	require.NoError(t, err)
	defer closeShapefile(t, w, path)

	require.NoError(t, w.SetFields([]shp.Field{
		shp.NumberField(FieldHyrivID, 10),
		shp.FloatField(FieldLengthKm, 12, 2),
	}))
	for _, r := range reaches {
		row := int(w.Write(shp.NewPolyLine([][]shp.Point{r.points})))
		require.NoError(t, w.WriteAttribute(row, 0, r.id))
		require.NoError(t, w.WriteAttribute(row, 1, r.lengthKm))
	}
}

func TestReadBasins(t *testing.T) {
	path := filepath.Join(t.TempDir(), BasinsShapefile("eu", 2))
	writeBasins(t, path, []testBasin{
		{id: 2020000010, nextDown: 0, pfaf: "21", sort: 2, rings: [][]shp.Point{square(0, 0, 1, 1)}},
		{id: 2020000020, nextDown: 2020000010, pfaf: "22", sort: 1, rings: [][]shp.Point{
			square(1, 0, 3, 2), hole(1.5, 0.5, 2, 1),
		}},
	})

	basins, err := ReadBasins(path, 2)
	require.NoError(t, err)
	require.Len(t, basins, 2)

	a := basins[0]
	assert.Equal(t, int64(2020000010), a.ID)
	assert.Equal(t, "21", a.PfafCode)
	assert.Equal(t, int64(0), a.NextDown)
	assert.True(t, a.IsOutlet())
	assert.Equal(t, 2, a.Level)
	assert.Equal(t, int64(2), a.SortKey)
	require.NotNil(t, a.Geometry)
	assert.Equal(t, 1, a.Geometry.NumPolygons())

	b := basins[1]
	assert.Equal(t, int64(2020000010), b.NextDown)
	require.NotNil(t, b.Geometry)
	require.Equal(t, 1, b.Geometry.NumPolygons())
	assert.Equal(t, 2, b.Geometry.Polygon(0).NumLinearRings(), "hole attached to its shell")
}

func TestWriteBasins_AttributeTableBesideShapefile(t *testing.T) {
	path := filepath.Join(t.TempDir(), BasinsShapefile("eu", 1))
	writeBasins(t, path, []testBasin{
		{id: 2010000010, pfaf: "2", sort: 1, rings: [][]shp.Point{square(0, 0, 1, 1)}},
	})

	assert.FileExists(t, strings.TrimSuffix(path, ".shp")+".dbf")

	r, err := shp.Open(path)
	require.NoError(t, err)
	defer r.Close() //nolint:errcheck
	assert.Len(t, r.Fields(), 4)
}

func TestReadBasins_MissingField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rivers.shp")
	writeRivers(t, path, []testReach{{id: 1, points: []shp.Point{{X: 0, Y: 0}, {X: 1, Y: 1}}}})

	_, err := ReadBasins(path, 1)
	assert.ErrorContains(t, err, "has no HYBAS_ID field")
}

func TestReadBasins_MissingFile(t *testing.T) {
	_, err := ReadBasins(filepath.Join(t.TempDir(), "nope.shp"), 1)
	assert.ErrorContains(t, err, "open shapefile")
}

func TestReadRivers(t *testing.T) {
	path := filepath.Join(t.TempDir(), RiversShapefile("eu"))
	writeRivers(t, path, []testReach{
		{id: 10000001, lengthKm: 1.25, points: []shp.Point{{X: 0, Y: 0}, {X: 0.5, Y: 0.5}, {X: 1, Y: 0.5}}},
		{id: 10000002, lengthKm: 3, points: []shp.Point{{X: 1, Y: 0.5}, {X: 2, Y: 0.5}}},
	})

	reaches, err := ReadRivers(path)
	require.NoError(t, err)
	require.Len(t, reaches, 2)
	assert.Equal(t, int64(10000001), reaches[0].ID)
	assert.InDelta(t, 1.25, reaches[0].LengthKm, 1e-9)
	assert.Equal(t, 3, reaches[0].Geometry.NumCoords())
	assert.Equal(t, geom.Coord{1, 0.5}, reaches[0].Geometry.Coord(2))
	assert.InDelta(t, 3.0, reaches[1].LengthKm, 1e-9)
}

func TestPolyLineToLineString_JoinsParts(t *testing.T) {
	pl := shp.NewPolyLine([][]shp.Point{
		{{X: 0, Y: 0}, {X: 1, Y: 0}},
		{{X: 1, Y: 0}, {X: 2, Y: 0}},
	})
	ls := polyLineToLineString(pl)
	require.NotNil(t, ls)
	assert.Equal(t, []float64{0, 0, 1, 0, 2, 0}, ls.FlatCoords())

	assert.Nil(t, polyLineToLineString(shp.NewPolyLine([][]shp.Point{{{X: 0, Y: 0}}})))
	assert.Nil(t, polyLineToLineString(nil))
}

func TestPolygonToMultiPolygon_TwoShells(t *testing.T) {
	poly := shp.Polygon(*shp.NewPolyLine([][]shp.Point{square(0, 0, 1, 1), square(5, 5, 6, 6)}))
	mp := polygonToMultiPolygon(&poly)
	require.NotNil(t, mp)
	assert.Equal(t, 2, mp.NumPolygons())

	assert.Nil(t, polygonToMultiPolygon(nil))
}

func TestPointEWKB(t *testing.T) {
	data, err := PointEWKB(10.5, 45.25)
	require.NoError(t, err)

	g, err := ewkb.Unmarshal(data)
	require.NoError(t, err)
	p, ok := g.(*geom.Point)
	require.True(t, ok)
	assert.Equal(t, SRID, p.SRID())
	assert.Equal(t, []float64{10.5, 45.25}, p.FlatCoords())

	none, err := EncodeEWKB(nil)
	require.NoError(t, err)
	assert.Nil(t, none)
}
