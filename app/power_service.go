package app

import (
	"context"
	"fmt"

	"combosurv/adapters/excel"
	"combosurv/domain/combo"
	"combosurv/domain/core"
	"combosurv/domain/survival"
	"combosurv/internal"
	"combosurv/internal/batch"
	"combosurv/internal/curve"
	"combosurv/internal/errors"
	"combosurv/internal/ipd"
	"combosurv/internal/simulation"
)

// PowerService estimates, for every combination row, the probability that a
// trial of the observed size detects the predicted HSA benefit over each
// single-agent arm.
type PowerService struct {
	deps      Deps
	simulator *simulation.Simulator
	logger    *internal.Logger
}

// NewPowerService creates a predictive power service
func NewPowerService(deps Deps) *PowerService {
	a := deps.Config.Analysis
	sim := simulation.NewSimulator(simulation.Config{
		Runs: a.TrialRuns,
		Rule: survival.SuccessRule{Alpha: a.Alpha, HRThreshold: a.HRThreshold},
	}, nil)
	return &PowerService{deps: deps, simulator: sim, logger: deps.logger("PowerService")}
}

// Run reads the seed sheet, evaluates every row in parallel and writes
// <table_dir>/<dataset>_predictive_power.csv.
func (s *PowerService) Run(ctx context.Context) (*Report, error) {
	ds := s.deps.Dataset
	meta, err := loadMetadata("metadata_sheet_seed", ds.MetadataSheetSeed)
	if err != nil {
		return nil, err
	}

	rec := startRun(ctx, s.deps.Ledger, ds.Name, core.RunKindPower, s.logger)
	results := s.Evaluate(ctx, meta.Rows)

	entries := make([]rowEntry, len(results))
	for i, r := range results {
		entries[i] = rowEntry{row: r.Row, status: r.Status, err: r.Error}
	}

	output := s.deps.layout().Output("predictive_power.csv")
	sheet := excel.PowerSheet(meta, results)
	if err := excel.WriteSheet(output, sheet); err != nil {
		return nil, errors.Wrap(err, "failed to write predictive power table")
	}
	return rec.finish(ctx, output, entries, sheet), nil
}

// Evaluate runs every row on the executor. Failed rows carry NaN markers and
// the error; they never affect other rows.
func (s *PowerService) Evaluate(ctx context.Context, rows []combo.Row) []combo.PowerResult {
	outcomes := batch.Run(ctx, s.deps.Executor, len(rows), func(ctx context.Context, i int) (combo.PowerResult, error) {
		return s.EvaluateRow(ctx, rows[i])
	})

	out := make([]combo.PowerResult, len(outcomes))
	for i, o := range outcomes {
		if o.Err != nil {
			out[i] = combo.FailedPowerResult(rows[i], errors.RowFailure(rows[i].Index, o.Err))
			continue
		}
		out[i] = o.Value
	}
	return out
}

// EvaluateRow reconstructs the HSA prediction as a large IPD pool and
// simulates trials of max(N_control, N_experimental) patients against each
// arm's IPD, using one random stream per (dataset, row, arm).
func (s *PowerService) EvaluateRow(ctx context.Context, row combo.Row) (combo.PowerResult, error) {
	if row.ParseErr != nil {
		return combo.PowerResult{}, row.ParseErr
	}
	a := s.deps.Config.Analysis
	layout := s.deps.layout()

	nCombo := row.TrialSize()
	if nCombo <= 0 {
		return combo.PowerResult{}, fmt.Errorf("%w: no enrollment for %s", core.ErrInvalidSampleSize, row.Key())
	}

	pred, err := excel.ReadCurve(layout.PredictionPath(row, ModelHSA))
	if err != nil {
		return combo.PowerResult{}, err
	}
	pred, err = curve.Clean(pred)
	if err != nil {
		return combo.PowerResult{}, fmt.Errorf("prediction: %w", err)
	}
	reference, err := ipd.Create(curve.TrimTail(pred, a.TailTrim), a.NIPD)
	if err != nil {
		return combo.PowerResult{}, fmt.Errorf("prediction: %w", err)
	}

	result := combo.PowerResult{Row: row, Status: combo.StatusOK}
	for _, arm := range combo.Arms {
		power, err := s.evaluateArm(ctx, row, arm, reference, nCombo)
		if err != nil {
			return combo.PowerResult{}, fmt.Errorf("%s arm %s: %w", arm, row.Drug(arm), err)
		}
		if power.LargeNStatus == combo.StatusInconclusive {
			result.Status = combo.StatusInconclusive
		}
		if arm == combo.ArmControl {
			result.Control = power
		} else {
			result.Experimental = power
		}
	}
	s.logger.Debug("%s: P(success) ctrl=%.3f exp=%.3f", row.Key(), result.Control.Probability, result.Experimental.Probability)
	return result, nil
}

func (s *PowerService) evaluateArm(ctx context.Context, row combo.Row, arm combo.Arm, reference survival.Table, nCombo int) (combo.ArmPower, error) {
	base, err := s.armTable(row, arm)
	if err != nil {
		return combo.ArmPower{}, err
	}

	name := fmt.Sprintf("%s/%s/%s", s.deps.Dataset.Name, row.Key(), arm)
	rng, err := s.deps.RNG.Stream(ctx, name, s.deps.Config.Analysis.Seed)
	if err != nil {
		return combo.ArmPower{}, err
	}
	sum, err := s.simulator.Simulate(ctx, reference, base, nCombo, rng)
	if err != nil {
		return combo.ArmPower{}, err
	}

	power := combo.ArmPower{
		Arm:          arm,
		Probability:  sum.Probability,
		Successes:    sum.Successes,
		Degenerate:   sum.Degenerate,
		Runs:         sum.Runs,
		LargeNStatus: combo.StatusOK,
	}
	power.LargeN, err = s.simulator.LargeN(reference, base)
	if err != nil {
		if !core.IsInconclusive(err) {
			return combo.ArmPower{}, err
		}
		s.logger.Warn("%s %s arm: large-N comparison inconclusive: %v", row.Key(), arm, err)
		power.LargeN = survival.Missing()
		power.LargeNStatus = combo.StatusInconclusive
	}
	return power, nil
}

// armTable loads the published IPD of an arm when available and otherwise
// reconstructs it from the digitized curve with the arm's own enrollment.
func (s *PowerService) armTable(row combo.Row, arm combo.Arm) (survival.Table, error) {
	layout := s.deps.layout()
	name := row.Drug(arm)

	table, err := excel.ReadIPD(layout.IPDPath(name))
	if err == nil {
		return table, nil
	}
	if !core.IsNotFoundError(err) {
		return nil, err
	}

	c, err := excel.ReadCurve(layout.CurvePath(layout.RowDir(row), name))
	if err != nil {
		return nil, err
	}
	n := row.Enrollment(arm)
	if n <= 0 {
		return nil, fmt.Errorf("%w: %s enrollment is %d", core.ErrInvalidSampleSize, arm, n)
	}
	return ipd.Create(c, n)
}
