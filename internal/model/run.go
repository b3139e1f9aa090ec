package model

import "time"

// RunStatus represents the current state of a batch run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run is the bookkeeping row for one batch invocation.
type Run struct {
	ID        string    `json:"id"`
	Method    string    `json:"method"`
	Source    string    `json:"source"`
	Status    RunStatus `json:"status"`
	DamCount  int       `json:"dam_count"`
	Succeeded int       `json:"succeeded"`
	Failed    int       `json:"failed"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
