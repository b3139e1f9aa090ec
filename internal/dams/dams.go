// Package dams reads candidate dam locations from CSV, XLSX and YAML tables.
package dams

import (
	"context"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/sells-group/watershed-cli/internal/fetcher"
	"github.com/sells-group/watershed-cli/internal/model"
)

// Options controls table parsing.
type Options struct {
	// Encoding names the character set of CSV input ("utf-8" when empty),
	// e.g. "windows-1252" for spreadsheets exported on Windows.
	Encoding string
	// Delimiter overrides the CSV field separator. Tab for .tsv files.
	Delimiter rune
	// Sheet selects an XLSX sheet by name; the first sheet otherwise.
	Sheet string
}

// ReadFile loads dams from path, choosing the parser from its extension.
func ReadFile(ctx context.Context, path string, opts Options) ([]model.Dam, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".xlsx":
		rows, err := fetcher.ReadXLSX(path, fetcher.XLSXOptions{SheetName: opts.Sheet})
		if err != nil {
			return nil, eris.Wrapf(err, "dams: read %s", path)
		}
		return FromRows(rows)
	case ".yaml", ".yml":
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrapf(err, "dams: open %s", path)
		}
		defer f.Close() //nolint:errcheck
		return ReadYAML(f)
	case ".csv", ".tsv", ".txt", "":
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrapf(err, "dams: open %s", path)
		}
		defer f.Close() //nolint:errcheck
		if ext == ".tsv" && opts.Delimiter == 0 {
			opts.Delimiter = '\t'
		}
		return ReadCSV(ctx, f, opts)
	default:
		return nil, eris.Errorf("dams: unsupported file type %q", ext)
	}
}

// ReadCSV parses a delimited table with a header row.
func ReadCSV(ctx context.Context, r io.Reader, opts Options) ([]model.Dam, error) {
	if opts.Encoding != "" && !strings.EqualFold(opts.Encoding, "utf-8") {
		enc, err := htmlindex.Get(opts.Encoding)
		if err != nil {
			return nil, eris.Wrapf(err, "dams: unsupported encoding %q", opts.Encoding)
		}
		r = enc.NewDecoder().Reader(r)
	}

	rows, err := fetcher.ReadCSV(ctx, r, fetcher.CSVOptions{
		Delimiter:  opts.Delimiter,
		Comment:    '#',
		LazyQuotes: true,
		TrimSpace:  true,
	})
	if err != nil {
		return nil, eris.Wrap(err, "dams: read csv")
	}
	return FromRows(rows)
}

// columns maps canonical fields to their index in the header row.
type columns struct {
	id, name, lon, lat int
}

var headerAliases = map[string]string{
	"id":        "id",
	"dam_id":    "id",
	"damid":     "id",
	"grand_id":  "id",
	"name":      "name",
	"dam_name":  "name",
	"damname":   "name",
	"lon":       "lon",
	"long":      "lon",
	"lng":       "lon",
	"longitude": "lon",
	"x":         "lon",
	"lat":       "lat",
	"latitude":  "lat",
	"y":         "lat",
}

func parseHeader(header []string) (columns, error) {
	cols := columns{id: -1, name: -1, lon: -1, lat: -1}
	for i, h := range header {
		key := strings.ReplaceAll(FoldKey(strings.TrimPrefix(h, "\ufeff")), " ", "_")
		switch headerAliases[key] {
		case "id":
			if cols.id < 0 {
				cols.id = i
			}
		case "name":
			if cols.name < 0 {
				cols.name = i
			}
		case "lon":
			if cols.lon < 0 {
				cols.lon = i
			}
		case "lat":
			if cols.lat < 0 {
				cols.lat = i
			}
		}
	}
	if cols.lon < 0 || cols.lat < 0 {
		return cols, eris.Errorf("dams: header %q needs lon/longitude and lat/latitude columns", header)
	}
	return cols, nil
}

// FromRows converts a header row plus data rows to dams. Blank rows are
// skipped. A missing id column yields ids "row-N" numbered from the first
// data row.
func FromRows(rows [][]string) ([]model.Dam, error) {
	if len(rows) == 0 {
		return nil, eris.New("dams: empty table")
	}
	cols, err := parseHeader(rows[0])
	if err != nil {
		return nil, err
	}

	cell := func(row []string, i int) string {
		if i < 0 || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	dams := make([]model.Dam, 0, len(rows)-1)
	for n, row := range rows[1:] {
		line := n + 2
		if isBlank(row) {
			continue
		}

		id := NormalizeID(cell(row, cols.id))
		if id == "" {
			id = "row-" + strconv.Itoa(n+1)
		}
		lon, err := parseCoord(cell(row, cols.lon))
		if err != nil {
			return nil, eris.Wrapf(err, "dams: row %d (%s): lon", line, id)
		}
		lat, err := parseCoord(cell(row, cols.lat))
		if err != nil {
			return nil, eris.Wrapf(err, "dams: row %d (%s): lat", line, id)
		}

		dams = append(dams, model.Dam{
			ID:   id,
			Name: NormalizeName(cell(row, cols.name)),
			Lon:  lon,
			Lat:  lat,
		})
	}

	if err := Validate(dams); err != nil {
		return nil, err
	}
	zap.L().Debug("dams: parsed table", zap.Int("rows", len(rows)-1), zap.Int("dams", len(dams)))
	return dams, nil
}

// Validate checks coordinate ranges and id uniqueness.
func Validate(dams []model.Dam) error {
	seen := make(map[string]bool, len(dams))
	for _, d := range dams {
		if d.ID == "" {
			return eris.New("dams: dam with empty id")
		}
		if seen[d.ID] {
			return eris.Errorf("dams: duplicate id %q", d.ID)
		}
		seen[d.ID] = true
		if math.IsNaN(d.Lon) || d.Lon < -180 || d.Lon > 180 {
			return eris.Errorf("dams: %s: lon %v out of range", d.ID, d.Lon)
		}
		if math.IsNaN(d.Lat) || d.Lat < -90 || d.Lat > 90 {
			return eris.Errorf("dams: %s: lat %v out of range", d.ID, d.Lat)
		}
	}
	return nil
}

func parseCoord(s string) (float64, error) {
	if s == "" {
		return 0, eris.New("missing value")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, eris.Wrapf(err, "parse %q", s)
	}
	return v, nil
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
