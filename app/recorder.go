package app

import (
	"context"
	"encoding/json"
	"time"

	"combosurv/adapters/excel"
	"combosurv/domain/combo"
	"combosurv/domain/core"
	"combosurv/internal"
	"combosurv/ports"
)

// Report summarizes one batch.
type Report struct {
	RunID        core.RunID   `json:"run_id"`
	Dataset      string       `json:"dataset"`
	Kind         core.RunKind `json:"kind"`
	Output       string       `json:"output"`
	Rows         int          `json:"rows"`
	Failed       int          `json:"failed"`
	Inconclusive int          `json:"inconclusive"`
}

type rowEntry struct {
	row    combo.Row
	status combo.Status
	err    string
}

// runRecorder mirrors a batch into the results ledger. A nil repository
// makes it a no-op, and ledger failures are logged without failing the batch.
type runRecorder struct {
	repo   ports.ResultsRepository
	report *Report
	logger *internal.Logger
}

func startRun(ctx context.Context, repo ports.ResultsRepository, dataset string, kind core.RunKind, logger *internal.Logger) *runRecorder {
	r := &runRecorder{
		repo:   repo,
		report: &Report{RunID: core.NewRunID(), Dataset: dataset, Kind: kind},
		logger: logger,
	}
	if repo == nil {
		return r
	}
	run := ports.RunRecord{ID: r.report.RunID, Dataset: dataset, Kind: kind, StartedAt: time.Now()}
	if err := repo.StartRun(ctx, run); err != nil {
		r.logger.Warn("results ledger unavailable, run %s not recorded: %v", r.report.RunID, err)
		r.repo = nil
	}
	return r
}

// finish tallies the rows, stores one ledger entry per row with the output
// table row as payload, and returns the report.
func (r *runRecorder) finish(ctx context.Context, output string, entries []rowEntry, sheet *excel.Sheet) *Report {
	r.report.Output = output
	r.report.Rows = len(entries)
	for _, e := range entries {
		switch e.status {
		case combo.StatusFailed:
			r.report.Failed++
		case combo.StatusInconclusive:
			r.report.Inconclusive++
		}
	}

	if r.repo != nil {
		for i, e := range entries {
			payload, err := json.Marshal(sheet.Rows[i])
			if err != nil {
				payload = []byte("{}")
			}
			rec := ports.RowRecord{
				RunID:        r.report.RunID,
				RowIndex:     e.row.Index,
				Experimental: e.row.Experimental,
				Control:      e.row.Control,
				Status:       e.status,
				Error:        e.err,
				Payload:      string(payload),
			}
			if err := r.repo.SaveRow(ctx, rec); err != nil {
				r.logger.Warn("failed to record row %d: %v", e.row.Index, err)
			}
		}
		if err := r.repo.FinishRun(ctx, r.report.RunID, r.report.Rows, r.report.Failed); err != nil {
			r.logger.Warn("failed to finish run %s: %v", r.report.RunID, err)
		}
	}

	r.logger.Info("%s %s: %d rows, %d failed, %d inconclusive -> %s",
		r.report.Kind, r.report.Dataset, r.report.Rows, r.report.Failed, r.report.Inconclusive, output)
	return r.report
}
