package model

import "time"

// RunStatus is the state of an import run in the ledger.
type RunStatus string

// Run states.
const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// RunCounts aggregates per-record outcomes of an import run.
type RunCounts struct {
	Imported    int `json:"imported"`
	Skipped     int `json:"skipped"`
	Unpublished int `json:"unpublished"`
	Errors      int `json:"errors"`
	Duplicated  int `json:"duplicated"`
}

// Total is the number of processed rows.
func (c RunCounts) Total() int {
	return c.Imported + c.Skipped + c.Unpublished + c.Errors
}

// ImportRun is a row of the import run ledger.
type ImportRun struct {
	ID          string     `json:"id"`
	Dataset     string     `json:"dataset"`
	Status      RunStatus  `json:"status"`
	Counts      RunCounts  `json:"counts"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}
