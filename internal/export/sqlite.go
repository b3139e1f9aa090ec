package export

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/sells-group/watershed-cli/internal/pipeline"
)

// SQLiteSink writes record sets into tables of a SQLite database, keyed by
// run id. The run store's database handle can be shared.
type SQLiteSink struct {
	DB    *sql.DB
	RunID string
}

const sqliteSinkSchema = `
CREATE TABLE IF NOT EXISTS snapped_points (
	run_id         TEXT NOT NULL,
	dam_id         TEXT NOT NULL,
	raw_lon        REAL NOT NULL,
	raw_lat        REAL NOT NULL,
	snapped_lon    REAL NOT NULL,
	snapped_lat    REAL NOT NULL,
	displacement_m REAL NOT NULL,
	PRIMARY KEY (run_id, dam_id)
);

CREATE TABLE IF NOT EXISTS ancestor_sets (
	run_id             TEXT NOT NULL,
	dam_id             TEXT NOT NULL,
	outlet_basin_id    INTEGER NOT NULL,
	upstream_basin_ids TEXT NOT NULL,
	PRIMARY KEY (run_id, dam_id)
);

CREATE TABLE IF NOT EXISTS failures (
	run_id TEXT NOT NULL,
	dam_id TEXT NOT NULL,
	stage  TEXT NOT NULL,
	reason TEXT NOT NULL,
	PRIMARY KEY (run_id, dam_id)
);
`

func (s *SQLiteSink) Name() string { return string(FormatSQLite) }

// Migrate creates the sink tables.
func (s *SQLiteSink) Migrate(ctx context.Context) error {
	_, err := s.DB.ExecContext(ctx, sqliteSinkSchema)
	return eris.Wrap(err, "export: sqlite migrate")
}

func (s *SQLiteSink) Write(ctx context.Context, res *pipeline.BatchResult) error {
	if err := s.Migrate(ctx); err != nil {
		return err
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "export: sqlite begin")
	}
	defer tx.Rollback() //nolint:errcheck

	snapped, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO snapped_points (run_id, dam_id, raw_lon, raw_lat, snapped_lon, snapped_lat, displacement_m) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "export: sqlite prepare snapped_points")
	}
	defer snapped.Close() //nolint:errcheck
	for _, r := range res.Snapped {
		if _, err := snapped.ExecContext(ctx, s.RunID, r.DamID, r.RawLon, r.RawLat, r.SnappedLon, r.SnappedLat, r.DisplacementM); err != nil {
			return eris.Wrapf(err, "export: sqlite insert snapped point %s", r.DamID)
		}
	}

	ancestors, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO ancestor_sets (run_id, dam_id, outlet_basin_id, upstream_basin_ids) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "export: sqlite prepare ancestor_sets")
	}
	defer ancestors.Close() //nolint:errcheck
	for _, r := range res.Ancestors {
		ids, err := json.Marshal(r.UpstreamBasinIDs)
		if err != nil {
			return eris.Wrapf(err, "export: marshal upstream ids %s", r.DamID)
		}
		if _, err := ancestors.ExecContext(ctx, s.RunID, r.DamID, r.OutletBasinID, string(ids)); err != nil {
			return eris.Wrapf(err, "export: sqlite insert ancestor set %s", r.DamID)
		}
	}

	failures, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO failures (run_id, dam_id, stage, reason) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "export: sqlite prepare failures")
	}
	defer failures.Close() //nolint:errcheck
	for _, r := range res.Failures {
		if _, err := failures.ExecContext(ctx, s.RunID, r.DamID, string(r.Stage), r.Reason); err != nil {
			return eris.Wrapf(err, "export: sqlite insert failure %s", r.DamID)
		}
	}

	return eris.Wrap(tx.Commit(), "export: sqlite commit")
}
