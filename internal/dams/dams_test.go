package dams

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/watershed-cli/internal/model"
)

func TestReadCSV(t *testing.T) {
	in := "\ufeffDam_ID,Name,Longitude,Latitude\n" +
		"d1,  Hoover   Dam ,-114.737,36.016\n" +
		"\n" +
		"# comment line\n" +
		"d2,,10.5,45.25\n"

	dams, err := ReadCSV(context.Background(), strings.NewReader(in), Options{})
	require.NoError(t, err)
	assert.Equal(t, []model.Dam{
		{ID: "d1", Name: "Hoover Dam", Lon: -114.737, Lat: 36.016},
		{ID: "d2", Lon: 10.5, Lat: 45.25},
	}, dams)
}

func TestReadCSV_GeneratedIDs(t *testing.T) {
	in := "lat;lon\n1;2\n3;4\n"

	dams, err := ReadCSV(context.Background(), strings.NewReader(in), Options{Delimiter: ';'})
	require.NoError(t, err)
	require.Len(t, dams, 2)
	assert.Equal(t, "row-1", dams[0].ID)
	assert.Equal(t, 2.0, dams[0].Lon)
	assert.Equal(t, 1.0, dams[0].Lat)
	assert.Equal(t, "row-2", dams[1].ID)
}

func TestReadCSV_Windows1252(t *testing.T) {
	// "Barrage de Génissiat" with é encoded as 0xE9.
	in := "id,name,lon,lat\ng1,Barrage de G\xe9nissiat,5.81,46.05\n"

	dams, err := ReadCSV(context.Background(), strings.NewReader(in), Options{Encoding: "windows-1252"})
	require.NoError(t, err)
	require.Len(t, dams, 1)
	assert.Equal(t, "Barrage de Génissiat", dams[0].Name)
}

func TestReadCSV_UnknownEncoding(t *testing.T) {
	_, err := ReadCSV(context.Background(), strings.NewReader("id,lon,lat\n"), Options{Encoding: "klingon"})
	assert.ErrorContains(t, err, "unsupported encoding")
}

func TestReadCSV_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"missing coordinate columns", "id,name\nd1,x\n", "needs lon/longitude"},
		{"bad number", "id,lon,lat\nd1,abc,1\n", "row 2 (d1): lon"},
		{"missing lat", "id,lon,lat\nd1,1,\n", "missing value"},
		{"lat out of range", "id,lon,lat\nd1,1,91\n", "out of range"},
		{"lon out of range", "id,lon,lat\nd1,-181,0\n", "out of range"},
		{"lon NaN", "id,lon,lat\nd1,NaN,45\n", "lon NaN out of range"},
		{"lat NaN", "id,lon,lat\nd1,7,nan\n", "lat NaN out of range"},
		{"lon Inf", "id,lon,lat\nd1,+Inf,45\n", "out of range"},
		{"duplicate id", "id,lon,lat\nd1,1,1\nd1,2,2\n", "duplicate id"},
		{"empty", "", "empty table"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadCSV(context.Background(), strings.NewReader(tt.in), Options{})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, Validate([]model.Dam{{ID: "a", Lon: 180, Lat: -90}, {ID: "b", Lon: -180, Lat: 90}}))

	tests := []struct {
		name string
		dam  model.Dam
		want string
	}{
		{"empty id", model.Dam{Lon: 1, Lat: 1}, "empty id"},
		{"nan lon", model.Dam{ID: "a", Lon: math.NaN(), Lat: 1}, "lon NaN"},
		{"nan lat", model.Dam{ID: "a", Lon: 1, Lat: math.NaN()}, "lat NaN"},
		{"inf lat", model.Dam{ID: "a", Lon: 1, Lat: math.Inf(-1)}, "lat -Inf"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorContains(t, Validate([]model.Dam{tt.dam}), tt.want)
		})
	}
}

func TestReadYAML(t *testing.T) {
	list := `
- id: a
  name: Itaipu
  lon: -54.59
  lat: -25.41
- id: b
  longitude: 1
  latitude: 2
`
	dams, err := ReadYAML(strings.NewReader(list))
	require.NoError(t, err)
	assert.Equal(t, []model.Dam{
		{ID: "a", Name: "Itaipu", Lon: -54.59, Lat: -25.41},
		{ID: "b", Lon: 1, Lat: 2},
	}, dams)

	doc := "dams:\n  - {id: c, lon: 3, lat: 4}\n"
	dams, err = ReadYAML(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, []model.Dam{{ID: "c", Lon: 3, Lat: 4}}, dams)

	_, err = ReadYAML(strings.NewReader("- {id: d, lon: 3}\n"))
	assert.ErrorContains(t, err, "missing lon/lat")
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()

	csvPath := filepath.Join(dir, "dams.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("id,lon,lat\nc1,1,2\n"), 0o644))
	tsvPath := filepath.Join(dir, "dams.tsv")
	require.NoError(t, os.WriteFile(tsvPath, []byte("id\tlon\tlat\nt1\t1\t2\n"), 0o644))
	yamlPath := filepath.Join(dir, "dams.yml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("- {id: y1, lon: 1, lat: 2}\n"), 0o644))

	xlsxPath := filepath.Join(dir, "dams.xlsx")
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Dams")
	require.NoError(t, err)
	for _, r := range [][]string{{"ID", "Dam Name", "Lng", "Lat"}, {"x1", "Kariba", "28.76", "-16.52"}} {
		row := sheet.AddRow()
		for _, v := range r {
			row.AddCell().Value = v
		}
	}
	require.NoError(t, f.Save(xlsxPath))

	ctx := context.Background()
	for path, wantID := range map[string]string{csvPath: "c1", tsvPath: "t1", yamlPath: "y1", xlsxPath: "x1"} {
		dams, err := ReadFile(ctx, path, Options{})
		require.NoError(t, err, path)
		require.Len(t, dams, 1, path)
		assert.Equal(t, wantID, dams[0].ID, path)
	}

	dams, err := ReadFile(ctx, xlsxPath, Options{Sheet: "Dams"})
	require.NoError(t, err)
	assert.Equal(t, "Kariba", dams[0].Name)

	_, err = ReadFile(ctx, filepath.Join(dir, "dams.parquet"), Options{})
	assert.ErrorContains(t, err, "unsupported file type")
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "Hoover Dam", NormalizeName("  Hoover \t Dam "))
	// Fullwidth digits fold to ASCII under NFKC.
	assert.Equal(t, "D12", NormalizeID("D１２"))
	assert.Equal(t, "latitude", FoldKey(" Latitüde "))
	assert.Equal(t, "longitud", FoldKey("LONGITÚD"))
}
