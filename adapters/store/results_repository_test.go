package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"combosurv/domain/combo"
	"combosurv/domain/core"
	"combosurv/internal/errors"
	"combosurv/ports"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestLedger(t *testing.T) ports.ResultsRepository {
	t.Helper()
	db, err := Open(context.Background(), "sqlite3", filepath.Join(t.TempDir(), "ledger", "results.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewResultsRepository(db)
}

func TestRunLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := openTestLedger(t)
	id := core.NewRunID()
	started := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, repo.StartRun(ctx, ports.RunRecord{ID: id, Dataset: "PFS", Kind: core.RunKindPower, StartedAt: started}))

	run, err := repo.GetRun(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "PFS", run.Dataset)
	assert.Equal(t, core.RunKindPower, run.Kind)
	assert.WithinDuration(t, started, run.StartedAt, time.Second)
	assert.Nil(t, run.FinishedAt)

	require.NoError(t, repo.FinishRun(ctx, id, 3, 1))
	run, err = repo.GetRun(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, run.FinishedAt)
	assert.Equal(t, 3, run.Rows)
	assert.Equal(t, 1, run.Failed)
}

func TestSaveRowReplacesAndOrders(t *testing.T) {
	ctx := context.Background()
	repo := openTestLedger(t)
	id := core.NewRunID()
	require.NoError(t, repo.StartRun(ctx, ports.RunRecord{ID: id, Dataset: "PFS", Kind: core.RunKindSeeds}))

	require.NoError(t, repo.SaveRow(ctx, ports.RowRecord{RunID: id, RowIndex: 1, Experimental: "C", Control: "D", Status: combo.StatusFailed, Error: "boom"}))
	require.NoError(t, repo.SaveRow(ctx, ports.RowRecord{RunID: id, RowIndex: 0, Experimental: "A", Control: "B", Status: combo.StatusOK, Payload: `{"std":1}`}))
	require.NoError(t, repo.SaveRow(ctx, ports.RowRecord{RunID: id, RowIndex: 1, Experimental: "C", Control: "D", Status: combo.StatusOK}))

	rows, err := repo.ListRows(ctx, id)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 0, rows[0].RowIndex)
	assert.JSONEq(t, `{"std":1}`, rows[0].Payload)
	assert.Equal(t, combo.StatusOK, rows[1].Status)
	assert.Empty(t, rows[1].Error)
	assert.Equal(t, "{}", rows[1].Payload)
}

func TestUnknownRun(t *testing.T) {
	ctx := context.Background()
	repo := openTestLedger(t)
	id := core.NewRunID()

	_, err := repo.GetRun(ctx, id)
	assert.Equal(t, errors.CodeNotFound, errors.GetCode(err))

	err = repo.FinishRun(ctx, id, 0, 0)
	assert.Equal(t, errors.CodeNotFound, errors.GetCode(err))

	rows, err := repo.ListRows(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "nosuchdriver", "x")
	assert.Equal(t, errors.CodeDatabaseError, errors.GetCode(err))
}

type recordingMigrator struct {
	calls int
	err   error
}

func (m *recordingMigrator) Run(ctx context.Context, db *sqlx.DB) error {
	m.calls++
	return m.err
}

func (m *recordingMigrator) Version() string { return "test" }

func TestOpenWithRunsMigrator(t *testing.T) {
	ctx := context.Background()
	m := &recordingMigrator{}
	db, err := OpenWith(ctx, "sqlite3", filepath.Join(t.TempDir(), "a.db"), m)
	require.NoError(t, err)
	db.Close()
	assert.Equal(t, 1, m.calls)

	failing := &recordingMigrator{err: errors.DatabaseError("boom", nil)}
	_, err = OpenWith(ctx, "sqlite3", filepath.Join(t.TempDir(), "b.db"), failing)
	require.Error(t, err)
	assert.Equal(t, errors.CodeDatabaseError, errors.GetCode(err))
	assert.Contains(t, err.Error(), "migration test failed")
}
