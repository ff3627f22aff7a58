// Package survival holds the value types shared by curve reconstruction,
// Cox comparison and trial simulation.
package survival

import "math"

// Point is one digitized knot of a Kaplan-Meier curve.
type Point struct {
	Time     float64 `json:"time"`
	Survival float64 `json:"survival"` // percent, 0-100
}

// Curve is a step-function survival curve ordered by strictly increasing Time.
// Survival is non-increasing and expressed in percent once cleaned.
type Curve []Point

// Len returns the number of knots.
func (c Curve) Len() int { return len(c) }

// Times returns the Time column.
func (c Curve) Times() []float64 {
	out := make([]float64, len(c))
	for i, p := range c {
		out[i] = p.Time
	}
	return out
}

// Survivals returns the Survival column.
func (c Curve) Survivals() []float64 {
	out := make([]float64, len(c))
	for i, p := range c {
		out[i] = p.Survival
	}
	return out
}

// MaxTime returns the last knot's Time, or NaN for an empty curve.
func (c Curve) MaxTime() float64 {
	if len(c) == 0 {
		return math.NaN()
	}
	return c[len(c)-1].Time
}

// Record is one reconstructed patient: time to event or censoring.
type Record struct {
	Time  float64 `json:"time"`
	Event bool    `json:"event"`
}

// Table is an IPD table. Tables are treated as read-only once built.
type Table []Record

// Len returns the number of patients.
func (t Table) Len() int { return len(t) }

// Events counts records with an observed event.
func (t Table) Events() int {
	n := 0
	for _, r := range t {
		if r.Event {
			n++
		}
	}
	return n
}

// Resample builds a bootstrap table from row indices. Duplicate indices
// produce independent duplicate records.
func (t Table) Resample(idx []int) Table {
	out := make(Table, len(idx))
	for i, j := range idx {
		out[i] = t[j]
	}
	return out
}

// CoxResult is the outcome of a two-arm proportional hazards comparison.
// HazardRatio is the hazard of the second arm relative to the first.
type CoxResult struct {
	PValue      float64 `json:"p"`
	HazardRatio float64 `json:"hr"`
	Lower       float64 `json:"hr_lower"`
	Upper       float64 `json:"hr_upper"`
	Coef        float64 `json:"coef"`
	StdErr      float64 `json:"se"`
}

// Missing returns a CoxResult with NaN markers, used when a comparison could
// not be computed.
func Missing() CoxResult {
	nan := math.NaN()
	return CoxResult{PValue: nan, HazardRatio: nan, Lower: nan, Upper: nan, Coef: nan, StdErr: nan}
}

// IsMissing reports whether the result carries NaN markers.
func (r CoxResult) IsMissing() bool {
	return math.IsNaN(r.HazardRatio)
}

// SuccessRule decides whether a simulated trial is a statistical and
// clinical success.
type SuccessRule struct {
	Alpha       float64 `json:"alpha"`
	HRThreshold float64 `json:"hr_threshold"`
}

// DefaultSuccessRule is p < 0.05 with the upper HR bound below 1.
func DefaultSuccessRule() SuccessRule {
	return SuccessRule{Alpha: 0.05, HRThreshold: 1.0}
}

// Success applies the rule to a comparison.
func (s SuccessRule) Success(r CoxResult) bool {
	return r.PValue < s.Alpha && r.Upper < s.HRThreshold
}
