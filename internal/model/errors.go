package model

import (
	"github.com/rotisserie/eris"
)

// Deterministic per-dam failures. None of these are retried: the same input
// data always produces the same outcome.
var (
	// ErrNoNearbyRiver means no river reach lies within the search radius.
	ErrNoNearbyRiver = eris.New("no river reach within search radius")

	// ErrNoEnclosingBasin means the point is outside every basin polygon.
	ErrNoEnclosingBasin = eris.New("no enclosing basin")

	// ErrResolutionFailed means the basin collection was empty or malformed
	// after pruning, so no upstream set can be trusted.
	ErrResolutionFailed = eris.New("upstream resolution failed")
)

// StageError ties a failure to the pipeline stage that raised it.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return string(e.Stage) + ": " + e.Err.Error()
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// NewStageError wraps err with the stage it happened in.
func NewStageError(stage Stage, err error) *StageError {
	return &StageError{Stage: stage, Err: err}
}

// ErrorKind returns a short label for a failure, used in metrics and reports.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return "none"
	case eris.Is(err, ErrNoNearbyRiver):
		return "no_nearby_river"
	case eris.Is(err, ErrNoEnclosingBasin):
		return "no_enclosing_basin"
	case eris.Is(err, ErrResolutionFailed):
		return "resolution_failed"
	default:
		return "other"
	}
}
