// Package hsa predicts combination survival under highest single agent
// (independent action): each virtual patient receives the better of two
// correlated single-agent responses.
package hsa

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"combosurv/domain/survival"
	"combosurv/internal/curve"
	"combosurv/internal/ipd"
	"combosurv/ports"

	"gonum.org/v1/gonum/stat/distuv"
)

// Predictor implements ports.Predictor with a Gaussian copula over the two
// single-agent time-to-event distributions.
type Predictor struct {
	n int
}

var _ ports.Predictor = (*Predictor)(nil)

// NewPredictor creates a predictor producing n virtual patients. n <= 0 uses
// ipd.DefaultN.
func NewPredictor(n int) *Predictor {
	if n <= 0 {
		n = ipd.DefaultN
	}
	return &Predictor{n: n}
}

// PearsonFromSpearman converts a Spearman rank correlation into the Pearson
// correlation of the underlying bivariate normal.
func PearsonFromSpearman(rho float64) float64 {
	return 2 * math.Sin(math.Pi*rho/6)
}

// Predict draws n patients. Patient i gets correlated normal scores whose
// CDFs are read as cumulative incidences on curveA and curveB; the combined
// time is the later of the two event times. Patients still event-free at the
// shorter follow-up are censored there. The result has one row per patient,
// ascending in Time, with Survival in percent, and is a pure function of the
// inputs and seed.
func (p *Predictor) Predict(ctx context.Context, curveA, curveB survival.Curve, correlation float64, seed int64) (survival.Curve, error) {
	if math.IsNaN(correlation) || correlation < -1 || correlation > 1 {
		return nil, fmt.Errorf("correlation %g outside [-1, 1]", correlation)
	}
	a, err := curve.Clean(curveA)
	if err != nil {
		return nil, fmt.Errorf("experimental curve: %w", err)
	}
	b, err := curve.Clean(curveB)
	if err != nil {
		return nil, fmt.Errorf("control curve: %w", err)
	}

	r := PearsonFromSpearman(correlation)
	resid := math.Sqrt(math.Max(0, 1-r*r))
	followUp := math.Min(a.MaxTime(), b.MaxTime())
	rng := rand.New(rand.NewSource(seed))

	times := make([]float64, p.n)
	events := 0
	for i := range times {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		z1 := rng.NormFloat64()
		z2 := r*z1 + resid*rng.NormFloat64()
		t := math.Max(
			quantileTime(a, distuv.UnitNormal.CDF(z1)),
			quantileTime(b, distuv.UnitNormal.CDF(z2)),
		)
		if t < followUp {
			events++
		} else {
			t = followUp
		}
		times[i] = t
	}
	sort.Float64s(times)

	out := make(survival.Curve, p.n)
	for k, t := range times {
		dead := k + 1
		if dead > events {
			dead = events
		}
		out[k] = survival.Point{Time: t, Survival: 100 * float64(p.n-dead) / float64(p.n)}
	}
	return out, nil
}

// quantileTime inverts a cleaned curve at cumulative incidence u, linearly
// between knots. It returns +Inf when u is beyond the curve's final
// incidence, meaning the patient outlives follow-up.
func quantileTime(c survival.Curve, u float64) float64 {
	j := sort.Search(len(c), func(i int) bool { return incidence(c[i]) >= u })
	if j == len(c) {
		return math.Inf(1)
	}
	if j == 0 {
		return c[0].Time
	}
	i0, i1 := incidence(c[j-1]), incidence(c[j])
	if i1 == i0 {
		return c[j].Time
	}
	return c[j-1].Time + (u-i0)/(i1-i0)*(c[j].Time-c[j-1].Time)
}

func incidence(p survival.Point) float64 {
	return (100 - p.Survival) / 100
}
