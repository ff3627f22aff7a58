package app

import (
	"context"
	"fmt"
	"os"

	"combosurv/adapters/excel"
	"combosurv/domain/combo"
	"combosurv/domain/core"
	"combosurv/internal"
	"combosurv/internal/batch"
	"combosurv/internal/errors"
	"combosurv/internal/stability"
	"combosurv/ports"
)

// SeedService generates seeded HSA predictions for every metadata row and
// picks the run whose predicted median survival is the median across seeds.
type SeedService struct {
	deps      Deps
	predictor ports.Predictor
	logger    *internal.Logger
}

// NewSeedService creates a seed-stability service
func NewSeedService(deps Deps, predictor ports.Predictor) *SeedService {
	return &SeedService{deps: deps, predictor: predictor, logger: deps.logger("SeedService")}
}

// Run executes the whole seeds batch: predictions into a work directory,
// median selection, promotion of each median run to the canonical prediction
// file, and the seed sheet written to metadata_sheet_seed.
func (s *SeedService) Run(ctx context.Context) (*Report, error) {
	ds := s.deps.Dataset
	meta, err := loadMetadata("metadata_sheet", ds.MetadataSheet)
	if err != nil {
		return nil, err
	}
	if !meta.Has(excel.ColCorr) {
		return nil, errors.InvalidInput(fmt.Sprintf("metadata sheet %s has no %s column", ds.MetadataSheet, excel.ColCorr))
	}
	if ds.MetadataSheetSeed == "" {
		return nil, errors.ConfigInvalid("metadata_sheet_seed is not configured for " + ds.Name)
	}

	workDir, cleanup, err := s.workDir()
	if err != nil {
		return nil, err
	}
	defer cleanup()

	rec := startRun(ctx, s.deps.Ledger, ds.Name, core.RunKindSeeds, s.logger)

	genErrs := s.GeneratePredictions(ctx, meta, workDir)
	summaries := s.FindMedianSim(ctx, meta, workDir, genErrs)

	entries := make([]rowEntry, len(summaries))
	for i, sum := range summaries {
		if sum.Status == combo.StatusOK {
			if err := s.promote(workDir, sum); err != nil {
				summaries[i] = combo.FailedSeedSummary(sum.Row, errors.RowFailure(sum.Row.Index, err))
			}
		}
		entries[i] = rowEntry{row: summaries[i].Row, status: summaries[i].Status, err: summaries[i].Error}
	}

	sheet := excel.SeedSheet(meta, summaries)
	if err := excel.WriteSheet(ds.MetadataSheetSeed, sheet); err != nil {
		return nil, errors.Wrap(err, "failed to write seed sheet")
	}
	return rec.finish(ctx, ds.MetadataSheetSeed, entries, sheet), nil
}

// workDir returns the directory for per-seed runs. With keep_runs the runs
// stay next to the predictions; otherwise they go to a temporary directory
// under table_dir that cleanup removes.
func (s *SeedService) workDir() (string, func(), error) {
	ds := s.deps.Dataset
	if s.deps.Config.Analysis.KeepRuns {
		if err := os.MkdirAll(ds.PredDir, 0o755); err != nil {
			return "", nil, errors.Wrap(err, "failed to create pred_dir")
		}
		return ds.PredDir, func() {}, nil
	}
	if err := os.MkdirAll(ds.TableDir, 0o755); err != nil {
		return "", nil, errors.Wrap(err, "failed to create table_dir")
	}
	dir, err := os.MkdirTemp(ds.TableDir, "seeds-")
	if err != nil {
		return "", nil, errors.Wrap(err, "failed to create work directory")
	}
	return dir, func() {
		if err := os.RemoveAll(dir); err != nil {
			s.logger.Warn("failed to remove %s: %v", dir, err)
		}
	}, nil
}

// GeneratePredictions writes seed_runs predictions per row into dir. Rows run
// in parallel; the returned map holds the rows that failed.
func (s *SeedService) GeneratePredictions(ctx context.Context, meta *excel.Metadata, dir string) map[int]error {
	layout := s.deps.layout()
	runs := s.deps.Config.Analysis.SeedRuns
	base := s.deps.Config.Analysis.Seed

	outcomes := batch.Run(ctx, s.deps.Executor, len(meta.Rows), func(ctx context.Context, i int) (int, error) {
		row := meta.Rows[i]
		if row.ParseErr != nil {
			return 0, row.ParseErr
		}
		corr, err := row.Correlation()
		if err != nil {
			return 0, err
		}
		src := layout.RowDir(row)
		a, err := excel.ReadCurve(layout.CurvePath(src, row.Experimental))
		if err != nil {
			return 0, err
		}
		b, err := excel.ReadCurve(layout.CurvePath(src, row.Control))
		if err != nil {
			return 0, err
		}
		for seed := 0; seed < runs; seed++ {
			if err := ctx.Err(); err != nil {
				return seed, err
			}
			pred, err := s.predictor.Predict(ctx, a, b, corr, base+int64(seed))
			if err != nil {
				return seed, fmt.Errorf("seed %d: %w", seed, err)
			}
			if err := excel.WriteCurve(layout.RunPath(dir, row, seed), pred); err != nil {
				return seed, err
			}
		}
		s.logger.Debug("%s: %d predictions written", row.Key(), runs)
		return runs, nil
	})
	return batch.Errors(outcomes)
}

// FindMedianSim reads every run of every row, summarizes each run by its
// landmark mean and selects the median run. Rows listed in failed, or whose
// runs cannot be read, get NaN and -1 markers.
func (s *SeedService) FindMedianSim(ctx context.Context, meta *excel.Metadata, dir string, failed map[int]error) []combo.SeedSummary {
	layout := s.deps.layout()
	analysis := s.deps.Config.Analysis

	outcomes := batch.Run(ctx, s.deps.Executor, len(meta.Rows), func(ctx context.Context, i int) (combo.SeedSummary, error) {
		row := meta.Rows[i]
		if err, ok := failed[i]; ok {
			return combo.SeedSummary{}, err
		}
		values := make([]float64, analysis.SeedRuns)
		for seed := range values {
			pred, err := excel.ReadCurve(layout.RunPath(dir, row, seed))
			if err != nil {
				return combo.SeedSummary{}, err
			}
			if values[seed], err = stability.LandmarkSummary(pred, analysis.Landmarks); err != nil {
				return combo.SeedSummary{}, fmt.Errorf("run %02d: %w", seed, err)
			}
		}
		sum, err := stability.Analyze(values)
		if err != nil {
			return combo.SeedSummary{}, err
		}
		return combo.SeedSummary{Row: row, Std: sum.Std, MedianRun: sum.MedianRun, Runs: len(values), Status: combo.StatusOK}, nil
	})

	out := make([]combo.SeedSummary, len(outcomes))
	for i, o := range outcomes {
		if o.Err != nil {
			out[i] = combo.FailedSeedSummary(meta.Rows[i], errors.RowFailure(i, o.Err))
			continue
		}
		out[i] = o.Value
	}
	return out
}

// promote copies the median run of a row to its canonical prediction file.
func (s *SeedService) promote(dir string, sum combo.SeedSummary) error {
	layout := s.deps.layout()
	data, err := os.ReadFile(layout.RunPath(dir, sum.Row, sum.MedianRun))
	if err != nil {
		return err
	}
	target := layout.PredictionPath(sum.Row, ModelHSA)
	if err := os.MkdirAll(s.deps.Dataset.PredDir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(target, data, 0o644)
}
