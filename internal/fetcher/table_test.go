package fetcher

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func TestReadCSV(t *testing.T) {
	in := "id,lon,lat\n d1 , 10.5 ,45.2\n# comment\nd2,11,46\n"

	rows, err := ReadCSV(context.Background(), strings.NewReader(in), CSVOptions{TrimSpace: true, Comment: '#'})
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"id", "lon", "lat"},
		{"d1", "10.5", "45.2"},
		{"d2", "11", "46"},
	}, rows)
}

func TestReadCSV_Delimiter(t *testing.T) {
	rows, err := ReadCSV(context.Background(), strings.NewReader("a;b\n1;2\n"), CSVOptions{Delimiter: ';'})
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, rows[1])
}

func TestReadCSV_Malformed(t *testing.T) {
	_, err := ReadCSV(context.Background(), strings.NewReader("a,\"b\n"), CSVOptions{})
	assert.ErrorContains(t, err, "csv: read row")
}

func TestStreamCSV_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var sb strings.Builder
	for range 200 {
		sb.WriteString("x,y\n")
	}
	rowCh, errCh := StreamCSV(ctx, strings.NewReader(sb.String()), CSVOptions{})
	for range rowCh {
	}
	assert.Error(t, <-errCh)
}

func writeXLSX(t *testing.T, sheet string, rows [][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	sh, err := f.AddSheet(sheet)
	require.NoError(t, err)
	for _, r := range rows {
		row := sh.AddRow()
		for _, v := range r {
			row.AddCell().Value = v
		}
	}
	path := filepath.Join(t.TempDir(), "dams.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestReadXLSX(t *testing.T) {
	path := writeXLSX(t, "Dams", [][]string{
		{"id", "lon", "lat"},
		{"d1", "10.5", "45.2"},
	})

	rows, err := ReadXLSX(path, XLSXOptions{})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"d1", "10.5", "45.2"}, rows[1])

	rows, err = ReadXLSX(path, XLSXOptions{SheetName: "Dams"})
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestReadXLSX_Errors(t *testing.T) {
	path := writeXLSX(t, "Dams", [][]string{{"id"}})

	_, err := ReadXLSX(path, XLSXOptions{SheetName: "Missing"})
	assert.ErrorContains(t, err, "not found")

	_, err = ReadXLSX(path, XLSXOptions{SheetIndex: 3})
	assert.ErrorContains(t, err, "out of range")

	_, err = ReadXLSX(filepath.Join(t.TempDir(), "none.xlsx"), XLSXOptions{})
	assert.Error(t, err)
}
