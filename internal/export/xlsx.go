package export

import (
	"context"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/watershed-cli/internal/pipeline"
)

// XLSXFile is the workbook name written by XLSXSink.
const XLSXFile = "watershed.xlsx"

// XLSXSink writes a workbook with one sheet per record set.
type XLSXSink struct {
	Dir string
}

func (s *XLSXSink) Name() string { return string(FormatXLSX) }

func (s *XLSXSink) Write(_ context.Context, res *pipeline.BatchResult) error {
	if err := ensureDir(s.Dir); err != nil {
		return err
	}

	f := xlsx.NewFile()
	for _, t := range tables(res) {
		sheet, err := f.AddSheet(t.name)
		if err != nil {
			return eris.Wrapf(err, "export: add sheet %s", t.name)
		}
		addRow(sheet, t.columns)
		for _, r := range t.rows {
			addRow(sheet, r)
		}
	}

	path := filepath.Join(s.Dir, XLSXFile)
	return eris.Wrapf(f.Save(path), "export: save %s", path)
}

func addRow(sheet *xlsx.Sheet, values []string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}
