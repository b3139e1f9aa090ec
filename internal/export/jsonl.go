package export

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/sells-group/watershed-cli/internal/pipeline"
)

// JSONLSink writes one JSON-lines file per record set.
type JSONLSink struct {
	Dir string
}

func (s *JSONLSink) Name() string { return string(FormatJSONL) }

func (s *JSONLSink) Write(_ context.Context, res *pipeline.BatchResult) error {
	if err := ensureDir(s.Dir); err != nil {
		return err
	}
	if err := writeJSONL(filepath.Join(s.Dir, SnappedPoints+".jsonl"), res.Snapped); err != nil {
		return err
	}
	if err := writeJSONL(filepath.Join(s.Dir, AncestorSets+".jsonl"), res.Ancestors); err != nil {
		return err
	}
	return writeJSONL(filepath.Join(s.Dir, Failures+".jsonl"), res.Failures)
}

func writeJSONL[T any](path string, records []T) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "export: create %s", path)
	}
	defer f.Close() //nolint:errcheck

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			return eris.Wrapf(err, "export: encode %s", path)
		}
	}
	if err := w.Flush(); err != nil {
		return eris.Wrapf(err, "export: flush %s", path)
	}
	return eris.Wrapf(f.Close(), "export: close %s", path)
}
