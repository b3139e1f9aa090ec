package hydrosheds

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/watershed-cli/internal/fetcher"
	"github.com/sells-group/watershed-cli/internal/resilience"
)

func zipOf(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestDownloader_Fetch(t *testing.T) {
	basins := zipOf(t, map[string]string{
		"hybas_eu_lev01_v1c.shp":      "shp",
		"hybas_eu_lev01_v1c.dbf":      "dbf",
		"HydroBASINS_TechDoc_v1c.pdf": "pdf",
	})
	rivers := zipOf(t, map[string]string{
		"HydroRIVERS_v10_eu_shp/HydroRIVERS_v10_eu.shp": "shp",
	})

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch r.URL.Path {
		case "/HydroBASINS/standard/hybas_eu_lev01-12_v1c.zip":
			_, _ = w.Write(basins)
		case "/HydroRIVERS/HydroRIVERS_v10_eu_shp.zip":
			_, _ = w.Write(rivers)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	d := &Downloader{
		Fetcher: fetcher.NewHTTPFetcher(fetcher.HTTPOptions{MaxRetries: 1}),
		Catalog: NewCatalog(srv.URL),
		DataDir: t.TempDir(),
		Retry:   resilience.RetryConfig{MaxAttempts: 1},
	}

	paths, err := d.Fetch(context.Background(), "eu")
	require.NoError(t, err)

	assert.FileExists(t, paths.Basins[1])
	assert.FileExists(t, paths.Rivers)
	assert.FileExists(t, filepath.Join(paths.Dir, "hybas_eu_lev01_v1c.dbf"))
	_, err = os.Stat(filepath.Join(paths.Dir, "HydroBASINS_TechDoc_v1c.pdf"))
	assert.True(t, os.IsNotExist(err))
	assert.Equal(t, int32(2), hits.Load())

	// Archives on disk are reused.
	_, err = d.Fetch(context.Background(), "eu")
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())
}

func TestDownloader_UnknownRegion(t *testing.T) {
	d := &Downloader{DataDir: t.TempDir()}
	_, err := d.Fetch(context.Background(), "zz")
	assert.ErrorContains(t, err, "unknown region")
}
