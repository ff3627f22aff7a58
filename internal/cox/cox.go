// Package cox fits a two-arm Cox proportional hazards model to IPD tables.
//
// Conventions, fixed for every comparison in the system:
//   - arm membership is the only covariate: x=0 for the first table, x=1 for
//     the second, so the hazard ratio is hazard(second)/hazard(first);
//   - tied event times use Breslow's approximation (duration.PHReg);
//   - p-values and 95% intervals are Wald statistics on the log hazard ratio.
package cox

import (
	"fmt"
	"math"

	"combosurv/domain/core"
	"combosurv/domain/survival"

	"github.com/kshedden/statmodel/duration"
	"github.com/kshedden/statmodel/statmodel"
	"gonum.org/v1/gonum/stat/distuv"
)

// Column names of the dataset handed to the regression.
const (
	colTime   = "time"
	colStatus = "status"
	colArm    = "arm"
)

// Comparator holds the fit guards and the interval level.
type Comparator struct {
	// MaxCoef bounds |log HR|; larger estimates indicate a monotone likelihood.
	MaxCoef float64
	// MaxStdErr bounds the standard error of log HR for the same reason.
	MaxStdErr float64
	// Level is the two-sided confidence level of the reported interval.
	Level float64
}

// NewComparator returns a comparator with the default settings.
func NewComparator() *Comparator {
	return &Comparator{MaxCoef: 20, MaxStdErr: 10, Level: 0.95}
}

var defaultComparator = NewComparator()

// Compare runs the default comparator.
func Compare(a, b survival.Table) (survival.CoxResult, error) {
	return defaultComparator.Compare(a, b)
}

// Compare fits the model and reports the hazard ratio of b relative to a.
// It returns core.ErrDegenerateModel when either arm has no events, the arms
// are separated in time or the fit does not produce a finite estimate.
func (c *Comparator) Compare(a, b survival.Table) (survival.CoxResult, error) {
	if len(a) == 0 || len(b) == 0 {
		return survival.Missing(), core.NewDegenerateError("empty arm")
	}
	if a.Events() == 0 || b.Events() == 0 {
		return survival.Missing(), core.NewDegenerateError(
			fmt.Sprintf("arm without events (first=%d, second=%d)", a.Events(), b.Events()))
	}
	if separated(a, b) || separated(b, a) {
		return survival.Missing(), core.NewDegenerateError("arms are separated in time")
	}

	model, err := duration.NewPHReg(armDataset(a, b), colTime, colStatus, []string{colArm}, nil)
	if err != nil {
		return survival.Missing(), fmt.Errorf("%w: %v", core.ErrDegenerateModel, err)
	}
	fit, err := model.Fit()
	if err != nil {
		return survival.Missing(), fmt.Errorf("%w: %v", core.ErrNoConvergence, err)
	}

	beta := fit.Params()[0]
	se := fit.StdErr()[0]
	switch {
	case math.IsNaN(beta) || math.IsInf(beta, 0) || math.Abs(beta) > c.MaxCoef:
		return survival.Missing(), core.NewDegenerateError("coefficient diverged")
	case !(se > 0) || math.IsInf(se, 0) || se > c.MaxStdErr:
		return survival.Missing(), core.NewDegenerateError("non-positive information at estimate")
	}
	return c.wald(beta, se), nil
}

// wald turns a log hazard ratio and its standard error into the reported
// p-value and interval.
func (c *Comparator) wald(beta, se float64) survival.CoxResult {
	z := beta / se
	p := math.Min(1, 2*distuv.UnitNormal.Survival(math.Abs(z)))
	crit := distuv.UnitNormal.Quantile(1 - (1-c.Level)/2)
	return survival.CoxResult{
		PValue:      p,
		HazardRatio: math.Exp(beta),
		Lower:       math.Exp(beta - crit*se),
		Upper:       math.Exp(beta + crit*se),
		Coef:        beta,
		StdErr:      se,
	}
}

// armDataset stacks both tables into time, status and arm columns.
func armDataset(a, b survival.Table) statmodel.Dataset {
	n := len(a) + len(b)
	times := make([]float64, 0, n)
	status := make([]float64, 0, n)
	arm := make([]float64, 0, n)
	for x, t := range []survival.Table{a, b} {
		for _, r := range t {
			times = append(times, r.Time)
			status = append(status, eventValue(r.Event))
			arm = append(arm, float64(x))
		}
	}
	return statmodel.NewDataset([][]float64{times, status, arm}, []string{colTime, colStatus, colArm})
}

func eventValue(event bool) float64 {
	if event {
		return 1
	}
	return 0
}

// separated reports whether every event of first happens after the last
// patient of second has left the risk set. The partial likelihood is then
// monotone and has no finite maximum.
func separated(first, second survival.Table) bool {
	lastSecond := math.Inf(-1)
	for _, r := range second {
		lastSecond = math.Max(lastSecond, r.Time)
	}
	for _, r := range first {
		if r.Event && r.Time <= lastSecond {
			return false
		}
	}
	return true
}
