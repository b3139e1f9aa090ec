package fetcher

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// ExtractZIP extracts every file of the archive into destDir, keeping the
// archive's directory layout. Returns the extracted paths.
func ExtractZIP(zipPath, destDir string) ([]string, error) {
	return ExtractZIPMatching(zipPath, destDir, nil)
}

// ExtractZIPMatching extracts the files whose base name satisfies match
// (all files when match is nil). Files already present with the same size are
// not rewritten.
func ExtractZIPMatching(zipPath, destDir string, match func(name string) bool) ([]string, error) {
	return extractZIP(zipPath, destDir, match, false)
}

// ExtractZIPFlat is ExtractZIPMatching but writes every entry directly into
// destDir, dropping the archive's directories.
func ExtractZIPFlat(zipPath, destDir string, match func(name string) bool) ([]string, error) {
	return extractZIP(zipPath, destDir, match, true)
}

func extractZIP(zipPath, destDir string, match func(name string) bool, flat bool) ([]string, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, eris.Wrap(err, "zip: open archive")
	}
	defer r.Close() //nolint:errcheck

	var extracted []string
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if match != nil && !match(filepath.Base(f.Name)) {
			continue
		}
		name := f.Name
		if flat {
			name = filepath.Base(name)
		}
		path, err := extractZIPEntry(f, destDir, name)
		if err != nil {
			return extracted, err
		}
		extracted = append(extracted, path)
	}
	return extracted, nil
}

func extractZIPEntry(f *zip.File, destDir, name string) (string, error) {
	destPath := filepath.Join(destDir, name)
	if !strings.HasPrefix(filepath.Clean(destPath), filepath.Clean(destDir)+string(os.PathSeparator)) {
		return "", eris.Errorf("zip: illegal path %q (zip slip attempt)", f.Name)
	}

	if info, err := os.Stat(destPath); err == nil && uint64(info.Size()) == f.UncompressedSize64 {
		return destPath, nil
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return "", eris.Wrap(err, "zip: create parent directory")
	}

	rc, err := f.Open()
	if err != nil {
		return "", eris.Wrap(err, "zip: open entry")
	}
	defer rc.Close() //nolint:errcheck

	out, err := os.Create(destPath)
	if err != nil {
		return "", eris.Wrap(err, "zip: create file")
	}
	if _, err := io.Copy(out, rc); err != nil {
		_ = out.Close()
		return "", eris.Wrap(err, "zip: write file")
	}
	if err := out.Close(); err != nil {
		return "", eris.Wrap(err, "zip: close file")
	}
	return destPath, nil
}
