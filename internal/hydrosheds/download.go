package hydrosheds

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/watershed-cli/internal/basin"
	"github.com/sells-group/watershed-cli/internal/fetcher"
	"github.com/sells-group/watershed-cli/internal/resilience"
)

// Downloader fetches and extracts HydroSHEDS archives into DataDir.
type Downloader struct {
	Fetcher fetcher.Fetcher
	Catalog Catalog
	DataDir string
	Retry   resilience.RetryConfig
}

// Paths are the extracted shapefile locations for one region.
type Paths struct {
	Region string
	Dir    string
	Rivers string
	Basins map[int]string
}

// LocalPaths returns where Fetch places region files under dataDir.
func LocalPaths(dataDir, region string) Paths {
	dir := filepath.Join(dataDir, region)
	p := Paths{
		Region: region,
		Dir:    dir,
		Rivers: filepath.Join(dir, RiversShapefile(region)),
		Basins: make(map[int]string, basin.MaxLevel),
	}
	for level := basin.MinLevel; level <= basin.MaxLevel; level++ {
		p.Basins[level] = filepath.Join(dir, BasinsShapefile(region, level))
	}
	return p
}

// Fetch downloads both archives for region (skipping ones already on disk)
// and extracts their shapefiles.
func (d *Downloader) Fetch(ctx context.Context, region string) (Paths, error) {
	if err := ValidateRegion(region); err != nil {
		return Paths{}, err
	}
	paths := LocalPaths(d.DataDir, region)
	if err := os.MkdirAll(paths.Dir, 0o755); err != nil {
		return Paths{}, eris.Wrap(err, "hydrosheds: create data dir")
	}

	for _, archive := range []struct {
		url, name string
	}{
		{d.Catalog.BasinsURL(region), BasinsArchive(region)},
		{d.Catalog.RiversURL(region), RiversArchive(region)},
	} {
		zipPath := filepath.Join(paths.Dir, archive.name)
		if err := d.download(ctx, archive.url, zipPath); err != nil {
			return Paths{}, err
		}
		files, err := fetcher.ExtractZIPFlat(zipPath, paths.Dir, isShapefilePart)
		if err != nil {
			return Paths{}, eris.Wrapf(err, "hydrosheds: extract %s", archive.name)
		}
		zap.L().Info("hydrosheds: extracted archive",
			zap.String("archive", archive.name),
			zap.Int("files", len(files)),
		)
	}

	return paths, nil
}

func (d *Downloader) download(ctx context.Context, url, zipPath string) error {
	log := zap.L().With(
		zap.String("component", "hydrosheds.download"),
		zap.String("url", url),
	)

	if info, err := os.Stat(zipPath); err == nil && info.Size() > 0 {
		log.Debug("archive already exists, skipping download", zap.String("path", zipPath))
		return nil
	}

	retry := d.Retry
	if retry.OnRetry == nil {
		retry.OnRetry = resilience.RetryLogger("hydrosheds", "download")
	}

	log.Info("downloading archive")
	n, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (int64, error) {
		return d.Fetcher.DownloadToFile(ctx, url, zipPath)
	})
	if err != nil {
		return eris.Wrapf(err, "hydrosheds: download %s", url)
	}
	log.Info("archive downloaded", zap.Int64("bytes", n))
	return nil
}
