// Package curve cleans digitized survival curves and turns them into
// continuous functions of time.
package curve

import (
	"math"
	"sort"

	"combosurv/domain/core"
	"combosurv/domain/survival"
)

// MonotoneTolerance is the largest upward step, in percentage points, that
// cleaning flattens as digitization noise. Larger increases are rejected.
const MonotoneTolerance = 0.5

// FractionCeiling is the largest maximum Survival that is read as a fraction
// of one. Digitized fractional curves overshoot 1 by a few thousandths.
const FractionCeiling = 1.05

// Clean returns a normalized copy of points: Survival in percent, Time
// strictly increasing (duplicate Times keep the last value written) and
// Survival non-increasing. Clean is idempotent.
func Clean(points survival.Curve) (survival.Curve, error) {
	if len(points) < 2 {
		return nil, core.NewCurveError("need at least 2 points, got %d", len(points))
	}

	maxSurv := math.Inf(-1)
	for i, p := range points {
		if math.IsNaN(p.Time) || math.IsNaN(p.Survival) || math.IsInf(p.Time, 0) {
			return nil, core.NewCurveError("non-finite value at row %d", i)
		}
		if p.Time < 0 {
			return nil, core.NewCurveError("negative time %g at row %d", p.Time, i)
		}
		maxSurv = math.Max(maxSurv, p.Survival)
	}

	scale, ceiling := 1.0, 100+MonotoneTolerance
	if maxSurv <= FractionCeiling {
		scale, ceiling = 100, 100*FractionCeiling
	}

	out := make(survival.Curve, len(points))
	for i, p := range points {
		s := p.Survival * scale
		if s < -MonotoneTolerance || s > ceiling {
			return nil, core.NewCurveError("survival %g out of range at row %d", p.Survival, i)
		}
		out[i] = survival.Point{Time: p.Time, Survival: math.Min(100, math.Max(0, s))}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Time < out[j].Time })

	// last write wins for duplicate times
	dedup := out[:0]
	for i := range out {
		if len(dedup) > 0 && dedup[len(dedup)-1].Time == out[i].Time {
			dedup[len(dedup)-1] = out[i]
			continue
		}
		dedup = append(dedup, out[i])
	}
	if len(dedup) < 2 {
		return nil, core.NewCurveError("need at least 2 distinct times, got %d", len(dedup))
	}

	for i := 1; i < len(dedup); i++ {
		prev := dedup[i-1].Survival
		if dedup[i].Survival > prev+MonotoneTolerance {
			return nil, core.NewCurveError("survival increases from %g to %g at time %g",
				prev, dedup[i].Survival, dedup[i].Time)
		}
		if dedup[i].Survival > prev {
			dedup[i].Survival = prev
		}
	}

	return dedup, nil
}

// Truncate keeps the knots with Time strictly below tmax.
func Truncate(c survival.Curve, tmax float64) survival.Curve {
	out := make(survival.Curve, 0, len(c))
	for _, p := range c {
		if p.Time < tmax {
			out = append(out, p)
		}
	}
	return out
}

// TrimTail drops knots within margin of the curve's last Time. Predicted
// curves end in a censoring plateau that would otherwise be reconstructed as
// a block of events.
func TrimTail(c survival.Curve, margin float64) survival.Curve {
	if len(c) == 0 {
		return c
	}
	return Truncate(c, c.MaxTime()-margin)
}

// StepAt evaluates the curve as a right-continuous step function: the
// Survival of the last knot at or before t, or 100 before the first knot.
func StepAt(c survival.Curve, t float64) float64 {
	i := sort.Search(len(c), func(i int) bool { return c[i].Time > t })
	if i == 0 {
		return 100
	}
	return c[i-1].Survival
}
