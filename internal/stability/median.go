// Package stability measures how much a seeded prediction varies across
// seeds and picks the run that represents the median outcome.
package stability

import (
	"fmt"
	"sort"

	"combosurv/domain/core"
	"combosurv/domain/survival"

	"github.com/montanaflynn/stats"
)

// DefaultLandmarks are the middle ranks of a 5000-row prediction, so the
// summary is the predicted median survival time.
var DefaultLandmarks = []int{2499, 2500}

// Summary is the dispersion of landmark values across seeds and the seed
// index chosen as canonical.
type Summary struct {
	Std       float64 `json:"std"`
	MedianRun int     `json:"median_run"`
	Values    []float64
}

// LandmarkSummary averages the Time column at the given row indices.
func LandmarkSummary(c survival.Curve, indices []int) (float64, error) {
	if len(indices) == 0 {
		return 0, fmt.Errorf("%w: no landmark indices", core.ErrLandmarkRange)
	}
	vals := make([]float64, len(indices))
	for i, idx := range indices {
		if idx < 0 || idx >= len(c) {
			return 0, fmt.Errorf("%w: index %d, curve has %d rows", core.ErrLandmarkRange, idx, len(c))
		}
		vals[i] = c[idx].Time
	}
	return stats.Mean(vals)
}

// SelectMedianRun returns the run index at rank floor(n/2) of an ascending
// stable sort. Downstream files are keyed by this run index, so even n never
// averages the middle pair; equal values keep the lower run index first.
func SelectMedianRun(values []float64) (int, error) {
	if len(values) == 0 {
		return -1, fmt.Errorf("%w: no runs to select from", core.ErrInvalidSampleSize)
	}
	order := make([]int, len(values))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return values[order[a]] < values[order[b]] })
	return order[len(order)/2], nil
}

// Analyze computes the population standard deviation of the per-seed values
// and selects the median run.
func Analyze(values []float64) (Summary, error) {
	run, err := SelectMedianRun(values)
	if err != nil {
		return Summary{}, err
	}
	std, err := stats.StandardDeviationPopulation(values)
	if err != nil {
		return Summary{}, err
	}
	return Summary{Std: std, MedianRun: run, Values: values}, nil
}
