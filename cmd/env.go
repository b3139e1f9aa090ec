package main

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/watershed-cli/internal/config"
	"github.com/sells-group/watershed-cli/internal/db"
	"github.com/sells-group/watershed-cli/internal/export"
	"github.com/sells-group/watershed-cli/internal/fetcher"
	"github.com/sells-group/watershed-cli/internal/hydrosheds"
	"github.com/sells-group/watershed-cli/internal/pipeline"
	"github.com/sells-group/watershed-cli/internal/resilience"
	"github.com/sells-group/watershed-cli/internal/store"
	"github.com/sells-group/watershed-cli/internal/upstream"
)

// sqliteExportFile is the database the sqlite sink writes to when the run
// store is not itself SQLite.
const sqliteExportFile = "watershed.db"

// Flag values shared by the commands that resolve dams. Each one only
// overrides config when the flag was set explicitly.
var (
	flagMethod      string
	flagRadius      float64
	flagInterval    float64
	flagConcurrency int
	flagRegion      string
)

func addResolveFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&flagMethod, "method", "pfaf_trail", "upstream method (ancestor_trace, full_aggregate, pfaf_trail)")
	cmd.Flags().Float64Var(&flagRadius, "radius", 500, "snap search radius in metres")
	cmd.Flags().Float64Var(&flagInterval, "interval", 10, "snap sample interval in metres")
	cmd.Flags().IntVar(&flagConcurrency, "concurrency", 4, "dams resolved in parallel")
	cmd.Flags().StringVar(&flagRegion, "region", "eu", "HydroSHEDS region code")
}

// applyResolveFlags copies explicitly set flags onto c.
func applyResolveFlags(cmd *cobra.Command, c *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("method") {
		c.Resolve.Method = flagMethod
	}
	if flags.Changed("radius") {
		c.Snap.SearchRadiusM = flagRadius
	}
	if flags.Changed("interval") {
		c.Snap.SampleIntervalM = flagInterval
	}
	if flags.Changed("concurrency") {
		c.Batch.Concurrency = flagConcurrency
	}
	if flags.Changed("region") {
		c.HydroSHEDS.Region = flagRegion
	}
}

// pipelineConfig converts config values into orchestrator parameters.
func pipelineConfig(c *config.Config) (pipeline.Config, error) {
	method, err := upstream.ParseMethod(c.Resolve.Method)
	if err != nil {
		return pipeline.Config{}, err
	}
	return pipeline.Config{
		Method:          method,
		SearchRadiusM:   c.Snap.SearchRadiusM,
		SampleIntervalM: c.Snap.SampleIntervalM,
		Concurrency:     c.Batch.Concurrency,
	}, nil
}

func downloadRetry(c *config.Config) resilience.RetryConfig {
	r := resilience.FromSettings(c.Download.MaxAttempts, c.Download.InitialBackoffMs, c.Download.MaxBackoffMs)
	r.OnRetry = resilience.RetryLogger("hydrosheds", "download")
	return r
}

func newFetcher(c *config.Config) *fetcher.Router {
	timeout := time.Duration(c.Download.TimeoutSecs) * time.Second
	return fetcher.NewRouter(
		fetcher.HTTPOptions{
			UserAgent:    c.Download.UserAgent,
			Timeout:      timeout,
			RateLimiters: fetcher.DefaultRateLimiters(),
		},
		fetcher.FTPOptions{
			Timeout:  timeout,
			User:     c.Download.FTPUser,
			Password: c.Download.FTPPassword,
		},
	)
}

func newDownloader(c *config.Config) *hydrosheds.Downloader {
	return &hydrosheds.Downloader{
		Fetcher: newFetcher(c),
		Catalog: hydrosheds.NewCatalog(c.HydroSHEDS.BaseURL),
		DataDir: c.HydroSHEDS.DataDir,
		Retry:   downloadRetry(c),
	}
}

func loadOptions(c *config.Config) hydrosheds.LoadOptions {
	return hydrosheds.LoadOptions{
		Concurrency:  c.Batch.Concurrency,
		CheckNesting: c.HydroSHEDS.CheckNesting,
	}
}

// loadSnapshot reads the region's extracted shapefiles from the data dir.
func loadSnapshot(ctx context.Context, c *config.Config) (pipeline.Snapshot, error) {
	if err := hydrosheds.ValidateRegion(c.HydroSHEDS.Region); err != nil {
		return pipeline.Snapshot{}, err
	}
	paths := hydrosheds.LocalPaths(c.HydroSHEDS.DataDir, c.HydroSHEDS.Region)
	return hydrosheds.LoadSnapshot(ctx, paths, loadOptions(c))
}

// initStore opens and migrates the configured run store.
func initStore(ctx context.Context) (store.Store, error) {
	return store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL, &db.PoolConfig{
		MaxConns: cfg.Store.MaxConns,
		MinConns: cfg.Store.MinConns,
	})
}

// buildSinks returns the export sinks for format plus a cleanup func that
// releases any connection opened here.
func buildSinks(ctx context.Context, format export.Format, st store.Store, runID string) ([]pipeline.Sink, func(), error) {
	noop := func() {}

	switch format {
	case export.FormatSQLite:
		if s, ok := st.(*store.SQLiteStore); ok {
			sink := &export.SQLiteSink{DB: s.DB(), RunID: runID}
			return []pipeline.Sink{sink}, noop, sink.Migrate(ctx)
		}
		if err := os.MkdirAll(cfg.Export.Dir, 0o755); err != nil {
			return nil, noop, eris.Wrap(err, "export: create dir")
		}
		out, err := store.NewSQLite(filepath.Join(cfg.Export.Dir, sqliteExportFile))
		if err != nil {
			return nil, noop, err
		}
		cleanup := func() { _ = out.Close() }
		sink := &export.SQLiteSink{DB: out.DB(), RunID: runID}
		if err := sink.Migrate(ctx); err != nil {
			cleanup()
			return nil, noop, err
		}
		return []pipeline.Sink{sink}, cleanup, nil

	case export.FormatPostGIS:
		var pool db.Pool
		cleanup := noop
		switch {
		case cfg.Export.DatabaseURL != "":
			p, err := db.Connect(ctx, cfg.Export.DatabaseURL, &db.PoolConfig{
				MaxConns: cfg.Store.MaxConns,
				MinConns: cfg.Store.MinConns,
			})
			if err != nil {
				return nil, noop, eris.Wrap(err, "export: connect postgis")
			}
			pool, cleanup = p, p.Close
		default:
			s, ok := st.(*store.PostgresStore)
			if !ok {
				return nil, noop, eris.New("export: postgis needs export.database_url or a postgres store")
			}
			pool = s.Pool()
		}
		sink := &export.PostGISSink{
			Pool:   pool,
			Schema: cfg.Export.Schema,
			RunID:  runID,
			Retry:  resilience.FromSettings(cfg.Download.MaxAttempts, cfg.Download.InitialBackoffMs, cfg.Download.MaxBackoffMs),
		}
		if err := sink.Migrate(ctx); err != nil {
			cleanup()
			return nil, noop, err
		}
		return []pipeline.Sink{sink}, cleanup, nil
	}

	sink, err := export.NewFileSink(format, cfg.Export.Dir)
	if err != nil {
		return nil, noop, err
	}
	zap.L().Debug("export: file sink", zap.String("format", string(format)), zap.String("dir", cfg.Export.Dir))
	return []pipeline.Sink{sink}, noop, nil
}
