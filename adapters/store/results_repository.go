package store

import (
	"context"
	"database/sql"
	stderrors "errors"
	"time"

	"combosurv/domain/core"
	"combosurv/internal/errors"
	"combosurv/ports"

	"github.com/jmoiron/sqlx"
)

// ResultsRepositoryImpl implements ports.ResultsRepository with sqlx. Queries
// use ? placeholders and are rebound for the connected driver.
type ResultsRepositoryImpl struct {
	db *sqlx.DB
}

// NewResultsRepository creates a ledger repository over an open database
func NewResultsRepository(db *sqlx.DB) ports.ResultsRepository {
	return &ResultsRepositoryImpl{db: db}
}

// StartRun records a new batch invocation
func (r *ResultsRepositoryImpl) StartRun(ctx context.Context, run ports.RunRecord) error {
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	run.StartedAt = run.StartedAt.UTC()
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO runs (id, dataset, kind, started_at, row_count, failed_count)
		VALUES (?, ?, ?, ?, ?, ?)
	`), string(run.ID), run.Dataset, string(run.Kind), run.StartedAt, run.Rows, run.Failed)
	if err != nil {
		return errors.DatabaseError("failed to insert run", err)
	}
	return nil
}

// FinishRun stamps the completion time and row counts of a run
func (r *ResultsRepositoryImpl) FinishRun(ctx context.Context, id core.RunID, rows, failed int) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE runs
		SET finished_at = ?, row_count = ?, failed_count = ?
		WHERE id = ?
	`), time.Now().UTC(), rows, failed, string(id))
	if err != nil {
		return errors.DatabaseError("failed to finish run", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.NotFound("run " + id.String())
	}
	return nil
}

// SaveRow stores the outcome of one combination row. Saving the same row
// twice replaces the earlier entry.
func (r *ResultsRepositoryImpl) SaveRow(ctx context.Context, row ports.RowRecord) error {
	if row.Payload == "" {
		row.Payload = "{}"
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.DatabaseError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM row_results WHERE run_id = ? AND row_index = ?`),
		string(row.RunID), row.RowIndex); err != nil {
		return errors.DatabaseError("failed to replace row result", err)
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind(`
		INSERT INTO row_results (run_id, row_index, experimental, control, status, error, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`), string(row.RunID), row.RowIndex, row.Experimental, row.Control, string(row.Status), row.Error, row.Payload); err != nil {
		return errors.DatabaseError("failed to insert row result", err)
	}
	if err := tx.Commit(); err != nil {
		return errors.DatabaseError("failed to commit row result", err)
	}
	return nil
}

// GetRun retrieves a run by ID
func (r *ResultsRepositoryImpl) GetRun(ctx context.Context, id core.RunID) (*ports.RunRecord, error) {
	var run ports.RunRecord
	err := r.db.GetContext(ctx, &run, r.db.Rebind(`
		SELECT id, dataset, kind, started_at, finished_at, row_count, failed_count
		FROM runs
		WHERE id = ?
	`), string(id))
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NotFound("run " + id.String())
	}
	if err != nil {
		return nil, errors.DatabaseError("failed to load run", err)
	}
	return &run, nil
}

// ListRows returns the row results of a run ordered by row index
func (r *ResultsRepositoryImpl) ListRows(ctx context.Context, id core.RunID) ([]ports.RowRecord, error) {
	rows := []ports.RowRecord{}
	err := r.db.SelectContext(ctx, &rows, r.db.Rebind(`
		SELECT run_id, row_index, experimental, control, status, error, payload
		FROM row_results
		WHERE run_id = ?
		ORDER BY row_index
	`), string(id))
	if err != nil {
		return nil, errors.DatabaseError("failed to list row results", err)
	}
	return rows, nil
}
