package app

import (
	"context"
	"fmt"
	"math"

	"combosurv/adapters/excel"
	"combosurv/domain/combo"
	"combosurv/domain/core"
	"combosurv/domain/survival"
	"combosurv/internal"
	"combosurv/internal/batch"
	"combosurv/internal/cox"
	"combosurv/internal/curve"
	"combosurv/internal/errors"
	"combosurv/internal/ipd"
)

// DiffService measures how far the additivity prediction is from the HSA
// prediction, and how both compare with the control arm and the observed
// combination.
type DiffService struct {
	deps       Deps
	comparator *cox.Comparator
	logger     *internal.Logger
}

// NewDiffService creates a difference service
func NewDiffService(deps Deps) *DiffService {
	return &DiffService{deps: deps, comparator: cox.NewComparator(), logger: deps.logger("DiffService")}
}

// Run evaluates every row of the seed sheet and writes
// <table_dir>/<dataset>_additivity_hsa_difference.csv.
func (s *DiffService) Run(ctx context.Context) (*Report, error) {
	ds := s.deps.Dataset
	meta, err := loadMetadata("metadata_sheet_seed", ds.MetadataSheetSeed)
	if err != nil {
		return nil, err
	}

	rec := startRun(ctx, s.deps.Ledger, ds.Name, core.RunKindDiff, s.logger)

	outcomes := batch.Run(ctx, s.deps.Executor, len(meta.Rows), func(ctx context.Context, i int) (combo.DiffResult, error) {
		return s.EvaluateRow(ctx, meta.Rows[i])
	})
	results := make([]combo.DiffResult, len(outcomes))
	entries := make([]rowEntry, len(outcomes))
	for i, o := range outcomes {
		row := meta.Rows[i]
		if o.Err != nil {
			results[i] = combo.FailedDiffResult(row, errors.RowFailure(row.Index, o.Err))
		} else {
			results[i] = o.Value
		}
		entries[i] = rowEntry{row: row, status: results[i].Status, err: results[i].Error}
	}

	output := s.deps.layout().Output("additivity_hsa_difference.csv")
	sheet := excel.DiffSheet(meta, results)
	if err := excel.WriteSheet(output, sheet); err != nil {
		return nil, errors.Wrap(err, "failed to write difference table")
	}
	return rec.finish(ctx, output, entries, sheet), nil
}

// EvaluateRow computes the normalized differences on [0, tmax], where tmax is
// the shortest follow-up of control, HSA and additivity, and a Cox comparison
// of additivity against HSA on their common follow-up. The observed
// combination is optional; without it the Combo columns are NaN.
func (s *DiffService) EvaluateRow(ctx context.Context, row combo.Row) (combo.DiffResult, error) {
	if row.ParseErr != nil {
		return combo.DiffResult{}, row.ParseErr
	}
	a := s.deps.Config.Analysis
	layout := s.deps.layout()
	dir := layout.RowDir(row)

	control, err := s.interpolator(layout.CurvePath(dir, row.Control))
	if err != nil {
		return combo.DiffResult{}, fmt.Errorf("control: %w", err)
	}
	hsaCurve, err := s.cleaned(layout.PredictionPath(row, ModelHSA))
	if err != nil {
		return combo.DiffResult{}, fmt.Errorf("HSA prediction: %w", err)
	}
	addCurve, err := s.cleaned(layout.PredictionPath(row, ModelAdditivity))
	if err != nil {
		return combo.DiffResult{}, fmt.Errorf("additivity prediction: %w", err)
	}
	hsa, err := curve.NewInterpolator(hsaCurve)
	if err != nil {
		return combo.DiffResult{}, err
	}
	add, err := curve.NewInterpolator(addCurve)
	if err != nil {
		return combo.DiffResult{}, err
	}

	tmax := math.Min(control.MaxTime(), math.Min(hsa.MaxTime(), add.MaxTime()))
	result := combo.DiffResult{
		Row:             row,
		ComboControl:    math.NaN(),
		HSAControl:      curve.MeanDifference(hsa, control, tmax, a.DiffPoints),
		AdditivityHSA:   curve.MeanDifference(add, hsa, tmax, a.DiffPoints),
		ComboAdditivity: math.NaN(),
		Status:          combo.StatusOK,
	}

	if row.Combination != "" {
		observed, err := s.interpolator(layout.CurvePath(dir, row.Combination))
		switch {
		case err == nil:
			result.ComboControl = curve.MeanDifference(observed, control, tmax, a.DiffPoints)
			result.ComboAdditivity = curve.MeanDifference(observed, add, tmax, a.DiffPoints)
		case core.IsNotFoundError(err):
			s.logger.Debug("%s: no observed combination curve", row.Key())
		default:
			return combo.DiffResult{}, fmt.Errorf("observed combination: %w", err)
		}
	}

	if err := ctx.Err(); err != nil {
		return combo.DiffResult{}, err
	}
	result.AdditivityVersus, err = s.compare(addCurve, hsaCurve)
	if err != nil {
		if !core.IsInconclusive(err) {
			return combo.DiffResult{}, err
		}
		s.logger.Warn("%s: additivity vs HSA inconclusive: %v", row.Key(), err)
		result.AdditivityVersus = survival.Missing()
		result.Status = combo.StatusInconclusive
	}
	return result, nil
}

// compare fits Cox(additivity, HSA) on IPD reconstructed from both curves
// truncated below their shorter follow-up. HR is HSA relative to additivity.
func (s *DiffService) compare(add, hsa survival.Curve) (survival.CoxResult, error) {
	n := s.deps.Config.Analysis.NIPD
	tmax := math.Min(add.MaxTime(), hsa.MaxTime())

	addIPD, err := ipd.Create(curve.Truncate(add, tmax), n)
	if err != nil {
		return survival.Missing(), fmt.Errorf("additivity IPD: %w", err)
	}
	hsaIPD, err := ipd.Create(curve.Truncate(hsa, tmax), n)
	if err != nil {
		return survival.Missing(), fmt.Errorf("HSA IPD: %w", err)
	}
	return s.comparator.Compare(addIPD, hsaIPD)
}

func (s *DiffService) cleaned(path string) (survival.Curve, error) {
	c, err := excel.ReadCurve(path)
	if err != nil {
		return nil, err
	}
	return curve.Clean(c)
}

func (s *DiffService) interpolator(path string) (*curve.Interpolator, error) {
	c, err := excel.ReadCurve(path)
	if err != nil {
		return nil, err
	}
	return curve.NewInterpolator(c)
}
