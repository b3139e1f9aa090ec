// Package store records batch runs and their per-dam failures.
package store

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/watershed-cli/internal/db"
	"github.com/sells-group/watershed-cli/internal/model"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = eris.New("store: not found")

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Method string          `json:"method,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store persists batch run bookkeeping.
type Store interface {
	CreateRun(ctx context.Context, method, source string, damCount int) (*model.Run, error)
	CompleteRun(ctx context.Context, runID string, succeeded, failed int) error
	FailRun(ctx context.Context, runID string, reason string) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	SaveFailures(ctx context.Context, runID string, failures []model.FailureRecord) error
	ListFailures(ctx context.Context, runID string) ([]model.FailureRecord, error)

	Migrate(ctx context.Context) error
	Close() error
}

// Open creates a Store for driver ("sqlite" or "postgres") and runs its
// migrations.
func Open(ctx context.Context, driver, dsn string, poolCfg *db.PoolConfig) (Store, error) {
	var (
		st  Store
		err error
	)
	switch strings.ToLower(driver) {
	case "", "sqlite", "sqlite3":
		st, err = NewSQLite(dsn)
	case "postgres", "postgresql", "pg":
		st, err = NewPostgres(ctx, dsn, poolCfg)
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

const defaultListLimit = 100
