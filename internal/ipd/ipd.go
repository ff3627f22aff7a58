// Package ipd reconstructs individual patient data from survival curves and
// estimates Kaplan-Meier curves back from patient tables.
package ipd

import (
	"fmt"
	"math"

	"combosurv/domain/core"
	"combosurv/domain/survival"
	"combosurv/internal/curve"

	"github.com/kshedden/statmodel/duration"
	"github.com/kshedden/statmodel/statmodel"
)

// DefaultN is the reconstruction granularity used when a table will later be
// subsampled.
const DefaultN = 5000

// Create inverts a step-function survival curve into n patient records.
//
// The survival axis is split into n equal-probability quantiles. Event k
// (1-based) is placed at the first knot whose cumulative incidence reaches
// (k-1/2)/n, so the number of events at or before any knot is the rounded
// incidence at that knot. Patients still alive at the last knot (a flat
// non-zero tail) are censored at the last knot's Time. The result holds
// exactly n records in ascending Time, events before censored rows, and
// depends only on (c, n).
func Create(c survival.Curve, n int) (survival.Table, error) {
	if n <= 0 {
		return nil, core.ErrInvalidSampleSize
	}
	cleaned, err := curve.Clean(c)
	if err != nil {
		return nil, err
	}

	last := cleaned[len(cleaned)-1]
	events := int(math.Round(float64(n) * (100 - last.Survival) / 100))
	if events > n {
		events = n
	}

	table := make(survival.Table, 0, n)
	j := 0
	for k := 1; k <= events; k++ {
		level := (float64(k) - 0.5) / float64(n)
		for j < len(cleaned)-1 && incidence(cleaned[j]) < level {
			j++
		}
		table = append(table, survival.Record{Time: cleaned[j].Time, Event: true})
	}
	for len(table) < n {
		table = append(table, survival.Record{Time: last.Time, Event: false})
	}
	return table, nil
}

func incidence(p survival.Point) float64 {
	return (100 - p.Survival) / 100
}

// KaplanMeier estimates a step survival curve (percent) from a patient table.
// The curve starts at (0, 100), has one knot per distinct event time and,
// when follow-up continues past the last event, a final knot at the largest
// observed Time. Events are processed before censorings at tied times.
func KaplanMeier(t survival.Table) (survival.Curve, error) {
	if len(t) == 0 {
		return nil, core.ErrInvalidSampleSize
	}
	times := make([]float64, len(t))
	status := make([]float64, len(t))
	maxTime := math.Inf(-1)
	for i, r := range t {
		times[i] = r.Time
		if r.Event {
			status[i] = 1
		}
		maxTime = math.Max(maxTime, r.Time)
	}

	data := statmodel.NewDataset([][]float64{times, status}, []string{"time", "status"})
	sf, err := duration.NewSurvfuncRight(data, "time", "status", nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidTable, err)
	}
	sf.Fit()

	out := survival.Curve{{Time: 0, Survival: 100}}
	prob := sf.SurvProb()
	s := 1.0
	for i, tm := range sf.Time() {
		// censoring-only times leave the estimate unchanged
		if prob[i] == s {
			continue
		}
		s = prob[i]
		if tm == 0 {
			out[0].Survival = 100 * s
			continue
		}
		out = append(out, survival.Point{Time: tm, Survival: 100 * s})
	}

	if maxTime > out.MaxTime() {
		out = append(out, survival.Point{Time: maxTime, Survival: 100 * s})
	}
	return out, nil
}
