// Package simulation estimates the probability that a virtual trial of a
// given size detects a significant benefit of a predicted arm over a control.
package simulation

import (
	"context"
	"fmt"
	"math/rand"

	"combosurv/domain/core"
	"combosurv/domain/survival"
	"combosurv/internal/cox"
)

// Config holds the Monte-Carlo knobs.
type Config struct {
	Runs int
	Rule survival.SuccessRule
}

// DefaultConfig runs 1000 trials with p < 0.05 and upper HR bound < 1.
func DefaultConfig() Config {
	return Config{Runs: 1000, Rule: survival.DefaultSuccessRule()}
}

// Outcome is the result of one virtual trial.
type Outcome struct {
	Success    bool
	Degenerate bool
	Result     survival.CoxResult
}

// Summary aggregates the outcomes of all runs.
type Summary struct {
	Runs        int     `json:"runs"`
	Successes   int     `json:"successes"`
	Degenerate  int     `json:"degenerate"`
	Probability float64 `json:"probability"`
}

// Simulator resamples virtual trials from a reference IPD pool.
type Simulator struct {
	cfg        Config
	comparator *cox.Comparator
}

// NewSimulator creates a simulator. A nil comparator uses the defaults.
func NewSimulator(cfg Config, comparator *cox.Comparator) *Simulator {
	if cfg.Runs <= 0 {
		cfg.Runs = DefaultConfig().Runs
	}
	if cfg.Rule == (survival.SuccessRule{}) {
		cfg.Rule = survival.DefaultSuccessRule()
	}
	if comparator == nil {
		comparator = cox.NewComparator()
	}
	return &Simulator{cfg: cfg, comparator: comparator}
}

// Config returns the simulator settings.
func (s *Simulator) Config() Config {
	return s.cfg
}

// Trial scores one virtual trial built from reference rows idx against
// control. A degenerate fit is a non-success, not an error.
func (s *Simulator) Trial(reference, control survival.Table, idx []int) (Outcome, error) {
	res, err := s.comparator.Compare(control, reference.Resample(idx))
	if err != nil {
		if core.IsInconclusive(err) {
			return Outcome{Degenerate: true, Result: res}, nil
		}
		return Outcome{}, err
	}
	return Outcome{Success: s.cfg.Rule.Success(res), Result: res}, nil
}

// Simulate runs cfg.Runs virtual trials of nCombo patients each. Every run
// draws nCombo row indices uniformly with replacement from the reference
// pool using rng, so a fixed seed reproduces the same probability.
func (s *Simulator) Simulate(ctx context.Context, reference, control survival.Table, nCombo int, rng *rand.Rand) (Summary, error) {
	if len(reference) == 0 || len(control) == 0 {
		return Summary{}, fmt.Errorf("%w: empty reference or control table", core.ErrInvalidTable)
	}
	if nCombo <= 0 {
		return Summary{}, fmt.Errorf("%w: trial size %d", core.ErrInvalidSampleSize, nCombo)
	}
	if rng == nil {
		return Summary{}, fmt.Errorf("simulation requires an explicit random stream")
	}

	summary := Summary{Runs: s.cfg.Runs}
	idx := make([]int, nCombo)
	n := len(reference)
	for run := 0; run < s.cfg.Runs; run++ {
		if err := ctx.Err(); err != nil {
			return Summary{}, err
		}
		for i := range idx {
			idx[i] = rng.Intn(n)
		}
		outcome, err := s.Trial(reference, control, idx)
		if err != nil {
			return Summary{}, fmt.Errorf("run %d: %w", run, err)
		}
		if outcome.Degenerate {
			summary.Degenerate++
		}
		if outcome.Success {
			summary.Successes++
		}
	}
	summary.Probability = float64(summary.Successes) / float64(summary.Runs)
	return summary, nil
}

// LargeN compares the full reference pool against control without
// resampling, for reporting next to the simulated probability.
func (s *Simulator) LargeN(reference, control survival.Table) (survival.CoxResult, error) {
	return s.comparator.Compare(control, reference)
}
