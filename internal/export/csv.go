package export

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/sells-group/watershed-cli/internal/pipeline"
)

// CSVSink writes one CSV file per record set. upstream_basin_ids is a
// semicolon-separated list.
type CSVSink struct {
	Dir string
}

func (s *CSVSink) Name() string { return string(FormatCSV) }

func (s *CSVSink) Write(_ context.Context, res *pipeline.BatchResult) error {
	if err := ensureDir(s.Dir); err != nil {
		return err
	}
	for _, t := range tables(res) {
		if err := writeCSV(filepath.Join(s.Dir, t.name+".csv"), t); err != nil {
			return err
		}
	}
	return nil
}

func writeCSV(path string, t table) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "export: create %s", path)
	}
	defer f.Close() //nolint:errcheck

	w := csv.NewWriter(f)
	if err := w.Write(t.columns); err != nil {
		return eris.Wrapf(err, "export: write header %s", path)
	}
	if err := w.WriteAll(t.rows); err != nil {
		return eris.Wrapf(err, "export: write rows %s", path)
	}
	return eris.Wrapf(f.Close(), "export: close %s", path)
}
