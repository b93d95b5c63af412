// Package store keeps the import run ledger: one row per dataset run with
// its outcome counts.
package store

import (
	"context"

	"github.com/acceslibre/erpsync/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Dataset string          `json:"dataset,omitempty"`
	Status  model.RunStatus `json:"status,omitempty"`
	Limit   int             `json:"limit,omitempty"`
}

// Store defines the persistence interface of the run ledger.
type Store interface {
	StartRun(ctx context.Context, dataset string) (*model.ImportRun, error)
	CompleteRun(ctx context.Context, runID string, counts model.RunCounts) error
	FailRun(ctx context.Context, runID string, counts model.RunCounts, msg string) error
	// GetRun returns nil, nil when the run does not exist.
	GetRun(ctx context.Context, runID string) (*model.ImportRun, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.ImportRun, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

const defaultListLimit = 50
