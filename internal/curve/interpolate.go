package curve

import (
	"sort"

	"combosurv/domain/survival"

	"gonum.org/v1/gonum/floats"
)

// Interpolator maps time to survival by linear interpolation between the
// bracketing knots of a cleaned curve. Outside [min(Time), max(Time)] it
// returns the nearest endpoint's Survival.
type Interpolator struct {
	times []float64
	surv  []float64
}

// NewInterpolator cleans c and builds an interpolator over it.
func NewInterpolator(c survival.Curve) (*Interpolator, error) {
	cleaned, err := Clean(c)
	if err != nil {
		return nil, err
	}
	return &Interpolator{times: cleaned.Times(), surv: cleaned.Survivals()}, nil
}

// Interpolate returns the interpolator as a plain function.
func Interpolate(c survival.Curve) (func(float64) float64, error) {
	in, err := NewInterpolator(c)
	if err != nil {
		return nil, err
	}
	return in.At, nil
}

// At evaluates the interpolated survival at t.
func (in *Interpolator) At(t float64) float64 {
	n := len(in.times)
	if t <= in.times[0] {
		return in.surv[0]
	}
	if t >= in.times[n-1] {
		return in.surv[n-1]
	}
	// first knot at or after t
	i := sort.SearchFloat64s(in.times, t)
	if in.times[i] == t {
		return in.surv[i]
	}
	t0, t1 := in.times[i-1], in.times[i]
	s0, s1 := in.surv[i-1], in.surv[i]
	return s0 + (s1-s0)*(t-t0)/(t1-t0)
}

// MaxTime is the last knot time.
func (in *Interpolator) MaxTime() float64 {
	return in.times[len(in.times)-1]
}

// Grid returns n evenly spaced time points on [0, tmax].
func Grid(tmax float64, n int) []float64 {
	if n == 1 {
		return []float64{0}
	}
	return floats.Span(make([]float64, n), 0, tmax)
}

// MeanDifference is the normalized area between two curves: the mean of
// f(t) - g(t) over n evenly spaced points on [0, tmax].
func MeanDifference(f, g *Interpolator, tmax float64, n int) float64 {
	if n <= 0 {
		return 0
	}
	grid := Grid(tmax, n)
	diff := make([]float64, n)
	for i, t := range grid {
		diff[i] = f.At(t) - g.At(t)
	}
	return floats.Sum(diff) / float64(n)
}
