package export

import (
	"context"
	"fmt"
	"slices"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/watershed-cli/internal/db"
	"github.com/sells-group/watershed-cli/internal/hydrosheds"
	"github.com/sells-group/watershed-cli/internal/pipeline"
	"github.com/sells-group/watershed-cli/internal/resilience"
)

// DefaultSchema holds the PostGIS export tables.
const DefaultSchema = "watershed"

// PostGISSink upserts record sets into PostGIS. Snapped points carry a
// geometry(Point, 4326) column encoded as EWKB.
type PostGISSink struct {
	Pool   db.Pool
	Schema string
	RunID  string
	Retry  resilience.RetryConfig
}

func (s *PostGISSink) Name() string { return string(FormatPostGIS) }

func (s *PostGISSink) schema() string {
	if s.Schema == "" {
		return DefaultSchema
	}
	return s.Schema
}

func (s *PostGISSink) table(name string) string {
	return s.schema() + "." + name
}

// MigrateStatements returns the DDL run by Migrate.
func (s *PostGISSink) MigrateStatements() []string {
	schema := pgx.Identifier{s.schema()}.Sanitize()
	snapped := db.Identifier(s.table(SnappedPoints)).Sanitize()
	return []string{
		"CREATE EXTENSION IF NOT EXISTS postgis",
		"CREATE SCHEMA IF NOT EXISTS " + schema,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	run_id         TEXT NOT NULL,
	dam_id         TEXT NOT NULL,
	raw_lon        DOUBLE PRECISION NOT NULL,
	raw_lat        DOUBLE PRECISION NOT NULL,
	snapped_lon    DOUBLE PRECISION NOT NULL,
	snapped_lat    DOUBLE PRECISION NOT NULL,
	displacement_m DOUBLE PRECISION NOT NULL,
	geom           geometry(Point, 4326),
	PRIMARY KEY (run_id, dam_id)
)`, snapped),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	run_id             TEXT NOT NULL,
	dam_id             TEXT NOT NULL,
	outlet_basin_id    BIGINT NOT NULL,
	upstream_basin_ids BIGINT[] NOT NULL,
	PRIMARY KEY (run_id, dam_id)
)`, db.Identifier(s.table(AncestorSets)).Sanitize()),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	run_id TEXT NOT NULL,
	dam_id TEXT NOT NULL,
	stage  TEXT NOT NULL,
	reason TEXT NOT NULL,
	PRIMARY KEY (run_id, dam_id)
)`, db.Identifier(s.table(Failures)).Sanitize()),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s USING GIST (geom)",
			pgx.Identifier{"idx_snapped_points_geom"}.Sanitize(), snapped),
	}
}

// Migrate creates the schema, tables and spatial index.
func (s *PostGISSink) Migrate(ctx context.Context) error {
	for _, stmt := range s.MigrateStatements() {
		if _, err := s.Pool.Exec(ctx, stmt); err != nil {
			return eris.Wrap(err, "export: postgis migrate")
		}
	}
	return nil
}

// UpsertConfigs returns the upsert definitions for each record set.
func (s *PostGISSink) UpsertConfigs() map[string]db.UpsertConfig {
	keys := []string{"run_id", "dam_id"}
	return map[string]db.UpsertConfig{
		SnappedPoints: {
			Table:        s.table(SnappedPoints),
			Columns:      slices.Concat([]string{"run_id"}, SnappedColumns, []string{"geom"}),
			ConflictKeys: keys,
		},
		AncestorSets: {
			Table:        s.table(AncestorSets),
			Columns:      slices.Concat([]string{"run_id"}, AncestorColumns),
			ConflictKeys: keys,
		},
		Failures: {
			Table:        s.table(Failures),
			Columns:      slices.Concat([]string{"run_id"}, FailureColumns),
			ConflictKeys: keys,
		},
	}
}

func (s *PostGISSink) Write(ctx context.Context, res *pipeline.BatchResult) error {
	log := zap.L().With(zap.String("component", "export.postgis"), zap.String("run_id", s.RunID))

	snapped := make([][]any, 0, len(res.Snapped))
	for _, r := range res.Snapped {
		wkb, err := hydrosheds.PointEWKB(r.SnappedLon, r.SnappedLat)
		if err != nil {
			return eris.Wrapf(err, "export: encode point for %s", r.DamID)
		}
		snapped = append(snapped, []any{s.RunID, r.DamID, r.RawLon, r.RawLat, r.SnappedLon, r.SnappedLat, r.DisplacementM, wkb})
	}
	ancestors := make([][]any, 0, len(res.Ancestors))
	for _, r := range res.Ancestors {
		ancestors = append(ancestors, []any{s.RunID, r.DamID, r.OutletBasinID, r.UpstreamBasinIDs})
	}
	failures := make([][]any, 0, len(res.Failures))
	for _, r := range res.Failures {
		failures = append(failures, []any{s.RunID, r.DamID, string(r.Stage), r.Reason})
	}

	cfgs := s.UpsertConfigs()
	for _, set := range []struct {
		name string
		rows [][]any
	}{
		{SnappedPoints, snapped},
		{AncestorSets, ancestors},
		{Failures, failures},
	} {
		cfg := cfgs[set.name]
		retry := s.Retry
		if retry.OnRetry == nil {
			retry.OnRetry = resilience.RetryLogger("export.postgis", set.name)
		}
		n, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (int64, error) {
			return db.BulkUpsert(ctx, s.Pool, cfg, set.rows)
		})
		if err != nil {
			return eris.Wrapf(err, "export: postgis upsert %s", set.name)
		}
		log.Debug("record set upserted", zap.String("table", cfg.Table), zap.Int64("rows", n))
	}
	return nil
}
