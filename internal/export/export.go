// Package export writes batch records to files and databases.
package export

import (
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/watershed-cli/internal/model"
	"github.com/sells-group/watershed-cli/internal/pipeline"
)

// Format selects an export sink.
type Format string

const (
	FormatJSONL   Format = "jsonl"
	FormatCSV     Format = "csv"
	FormatXLSX    Format = "xlsx"
	FormatSQLite  Format = "sqlite"
	FormatPostGIS Format = "postgis"
)

// Record set names, used as file stems, sheet names and table names.
const (
	SnappedPoints = "snapped_points"
	AncestorSets  = "ancestor_sets"
	Failures      = "failures"
)

// Column names of each record set.
var (
	SnappedColumns  = []string{"dam_id", "raw_lon", "raw_lat", "snapped_lon", "snapped_lat", "displacement_m"}
	AncestorColumns = []string{"dam_id", "outlet_basin_id", "upstream_basin_ids"}
	FailureColumns  = []string{"dam_id", "stage", "reason"}
)

// ParseFormat parses a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSONL, FormatCSV, FormatXLSX, FormatSQLite, FormatPostGIS:
		return f, nil
	case "json", "ndjson":
		return FormatJSONL, nil
	case "postgres", "postgresql":
		return FormatPostGIS, nil
	}
	return "", eris.Errorf("export: unknown format %q", s)
}

// NewFileSink returns the file-based sink for f writing into dir.
func NewFileSink(f Format, dir string) (pipeline.Sink, error) {
	switch f {
	case FormatJSONL:
		return &JSONLSink{Dir: dir}, nil
	case FormatCSV:
		return &CSVSink{Dir: dir}, nil
	case FormatXLSX:
		return &XLSXSink{Dir: dir}, nil
	}
	return nil, eris.Errorf("export: %s is not a file format", f)
}

func ensureDir(dir string) error {
	if dir == "" {
		return nil
	}
	return eris.Wrapf(os.MkdirAll(dir, 0o755), "export: create %s", dir)
}

// formatIDs renders basin ids as a semicolon-separated list.
func formatIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ";")
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// snappedStrings renders r in SnappedColumns order.
func snappedStrings(r model.SnappedPointRecord) []string {
	return []string{
		r.DamID,
		formatFloat(r.RawLon),
		formatFloat(r.RawLat),
		formatFloat(r.SnappedLon),
		formatFloat(r.SnappedLat),
		strconv.FormatFloat(r.DisplacementM, 'f', 3, 64),
	}
}

func ancestorStrings(r model.AncestorSetRecord) []string {
	return []string{r.DamID, strconv.FormatInt(r.OutletBasinID, 10), formatIDs(r.UpstreamBasinIDs)}
}

func failureStrings(r model.FailureRecord) []string {
	return []string{r.DamID, string(r.Stage), r.Reason}
}

// table is one record set rendered as strings.
type table struct {
	name    string
	columns []string
	rows    [][]string
}

func tables(res *pipeline.BatchResult) []table {
	t := []table{
		{name: SnappedPoints, columns: SnappedColumns},
		{name: AncestorSets, columns: AncestorColumns},
		{name: Failures, columns: FailureColumns},
	}
	for _, r := range res.Snapped {
		t[0].rows = append(t[0].rows, snappedStrings(r))
	}
	for _, r := range res.Ancestors {
		t[1].rows = append(t[1].rows, ancestorStrings(r))
	}
	for _, r := range res.Failures {
		t[2].rows = append(t[2].rows, failureStrings(r))
	}
	return t
}
