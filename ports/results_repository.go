package ports

import (
	"context"
	"time"

	"combosurv/domain/combo"
	"combosurv/domain/core"
)

// RunRecord describes one batch invocation.
type RunRecord struct {
	ID         core.RunID   `db:"id"`
	Dataset    string       `db:"dataset"`
	Kind       core.RunKind `db:"kind"`
	StartedAt  time.Time    `db:"started_at"`
	FinishedAt *time.Time   `db:"finished_at"`
	Rows       int          `db:"row_count"`
	Failed     int          `db:"failed_count"`
}

// RowRecord is the ledger entry for one combination row of a run.
type RowRecord struct {
	RunID        core.RunID   `db:"run_id"`
	RowIndex     int          `db:"row_index"`
	Experimental string       `db:"experimental"`
	Control      string       `db:"control"`
	Status       combo.Status `db:"status"`
	Error        string       `db:"error"`
	Payload      string       `db:"payload"`
}

// ResultsRepository records batch outcomes so runs can be audited and
// compared across seeds and configurations.
type ResultsRepository interface {
	StartRun(ctx context.Context, run RunRecord) error
	FinishRun(ctx context.Context, id core.RunID, rows, failed int) error
	SaveRow(ctx context.Context, row RowRecord) error
	GetRun(ctx context.Context, id core.RunID) (*RunRecord, error)
	ListRows(ctx context.Context, id core.RunID) ([]RowRecord, error)
}
