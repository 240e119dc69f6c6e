// Package store persists analysis runs and their filing packages behind a
// driver-agnostic interface with SQLite and PostgreSQL backends.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/ramuks22/project-paystub-analyzer/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status  model.RunStatus `json:"status,omitempty"`
	TaxYear int             `json:"tax_year,omitempty"`
	Limit   int             `json:"limit,omitempty"`
	Offset  int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for analysis runs.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, cfg model.HouseholdConfig) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	UpdateRunResult(ctx context.Context, runID string, result *model.HouseholdResult) error
	FailRun(ctx context.Context, runID string, message string) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Filing packages
	SavePackages(ctx context.Context, runID string, pkgs []*model.FilingPackage) error
	GetPackage(ctx context.Context, runID, filerID string) (*model.FilingPackage, error)
	ListPackages(ctx context.Context, runID string) ([]*model.FilingPackage, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open creates a store for the configured driver.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch driver {
	case "sqlite":
		return NewSQLite(dsn)
	case "postgres":
		return NewPostgres(ctx, dsn, nil)
	}
	return nil, eris.Errorf("store: unknown driver %q", driver)
}
