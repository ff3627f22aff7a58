package migration

import (
	"context"
	"fmt"

	"combosurv/internal/errors"

	"github.com/jmoiron/sqlx"
)

// Migrator defines the interface for database migration operations
type Migrator interface {
	Run(ctx context.Context, db *sqlx.DB) error
	Version() string
}

// MigrationRunner creates the results ledger schema. The DDL is shared by
// sqlite3 and postgres; only the timestamp type differs.
type MigrationRunner struct {
	version string
}

var _ Migrator = (*MigrationRunner)(nil)

// NewRunner creates a new migration runner
func NewRunner() *MigrationRunner {
	return &MigrationRunner{
		version: "1.0.0",
	}
}

// Version returns the migration version
func (r *MigrationRunner) Version() string {
	return r.version
}

// Run executes all database migrations in the correct order
func (r *MigrationRunner) Run(ctx context.Context, db *sqlx.DB) error {
	ts := timestampType(db.DriverName())

	if err := r.createRunsTable(ctx, db, ts); err != nil {
		return errors.DatabaseError("failed to create runs table", err)
	}

	if err := r.createRowResultsTable(ctx, db); err != nil {
		return errors.DatabaseError("failed to create row_results table", err)
	}

	if err := r.createIndexes(ctx, db); err != nil {
		return errors.DatabaseError("failed to create indexes", err)
	}

	return nil
}

func timestampType(driver string) string {
	if driver == "postgres" {
		return "TIMESTAMP WITH TIME ZONE"
	}
	return "TIMESTAMP"
}

func (r *MigrationRunner) createRunsTable(ctx context.Context, db *sqlx.DB, ts string) error {
	_, err := db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS runs (
			id VARCHAR(36) PRIMARY KEY,
			dataset VARCHAR(255) NOT NULL,
			kind VARCHAR(20) NOT NULL,
			started_at %[1]s NOT NULL,
			finished_at %[1]s,
			row_count INTEGER NOT NULL DEFAULT 0,
			failed_count INTEGER NOT NULL DEFAULT 0
		)
	`, ts))
	return err
}

func (r *MigrationRunner) createRowResultsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS row_results (
			run_id VARCHAR(36) NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			row_index INTEGER NOT NULL,
			experimental VARCHAR(255) NOT NULL,
			control VARCHAR(255) NOT NULL,
			status VARCHAR(20) NOT NULL,
			error TEXT NOT NULL DEFAULT '',
			payload TEXT NOT NULL DEFAULT '{}',
			PRIMARY KEY (run_id, row_index)
		)
	`)
	return err
}

func (r *MigrationRunner) createIndexes(ctx context.Context, db *sqlx.DB) error {
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_runs_dataset_kind ON runs(dataset, kind)",
		"CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_row_results_status ON row_results(status)",
	}

	for _, stmt := range indexes {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
