// Package testkit provides synthetic curves, a deterministic predictor and
// on-disk dataset fixtures for service and command tests.
package testkit

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"combosurv/adapters/excel"
	"combosurv/domain/combo"
	"combosurv/domain/survival"
	"combosurv/internal/config"
	"combosurv/ports"
)

// ExponentialCurve samples S(t) = 100·exp(-rate·t) at knots evenly spaced
// points on [0, tmax].
func ExponentialCurve(rate, tmax float64, knots int) survival.Curve {
	c := make(survival.Curve, knots)
	for i := range c {
		t := tmax * float64(i) / float64(knots-1)
		c[i] = survival.Point{Time: t, Survival: 100 * math.Exp(-rate*t)}
	}
	return c
}

// ExponentialPrediction is an n-row prediction in the predictor's output
// shape: patient k dies at the (k+1/2)/n quantile of an exponential with the
// given rate, censored at tmax.
func ExponentialPrediction(rate, tmax float64, n int) survival.Curve {
	c := make(survival.Curve, n)
	dead := 0
	for k := range c {
		t := -math.Log(1-(float64(k)+0.5)/float64(n)) / rate
		if t < tmax {
			dead = k + 1
		} else {
			t = tmax
		}
		c[k] = survival.Point{Time: t, Survival: 100 * float64(n-dead) / float64(n)}
	}
	return c
}

// StubPredictor returns an exponential prediction whose hazard is the
// smaller of the two arms' fitted hazards, scaled by a seed-dependent factor
// 1 + Step·(seed mod 7 − 3). Larger seeds within a cycle of 7 therefore give
// shorter median survival.
type StubPredictor struct {
	N    int
	Step float64
}

var _ ports.Predictor = (*StubPredictor)(nil)

// NewStubPredictor creates a stub producing n rows.
func NewStubPredictor(n int) *StubPredictor {
	return &StubPredictor{N: n, Step: 0.01}
}

// Predict implements ports.Predictor.
func (p *StubPredictor) Predict(ctx context.Context, curveA, curveB survival.Curve, correlation float64, seed int64) (survival.Curve, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ra, err := fittedRate(curveA)
	if err != nil {
		return nil, err
	}
	rb, err := fittedRate(curveB)
	if err != nil {
		return nil, err
	}
	rate := math.Min(ra, rb) * (1 + p.Step*float64(seed%7-3))
	tmax := math.Min(curveA.MaxTime(), curveB.MaxTime())
	return ExponentialPrediction(rate, tmax, p.N), nil
}

// fittedRate reads the exponential hazard off the last knot.
func fittedRate(c survival.Curve) (float64, error) {
	if len(c) < 2 {
		return 0, fmt.Errorf("curve too short")
	}
	last := c[len(c)-1]
	if last.Time <= 0 || last.Survival <= 0 || last.Survival >= 100 {
		return 0, fmt.Errorf("cannot fit a rate to the last knot %+v", last)
	}
	return -math.Log(last.Survival/100) / last.Time, nil
}

// Fixture is a dataset laid out under one root directory.
type Fixture struct {
	Name     string
	Root     string
	DataDir  string
	PredDir  string
	TableDir string
}

// NewFixture creates data/, pred/ and tables/ under root.
func NewFixture(root, name string) (*Fixture, error) {
	f := &Fixture{
		Name:     name,
		Root:     root,
		DataDir:  filepath.Join(root, "data"),
		PredDir:  filepath.Join(root, "pred"),
		TableDir: filepath.Join(root, "tables"),
	}
	for _, dir := range []string{f.DataDir, f.PredDir, f.TableDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// WriteCurve writes <data_dir>/<name>.clean.csv.
func (f *Fixture) WriteCurve(name string, c survival.Curve) error {
	return excel.WriteCurve(filepath.Join(f.DataDir, name+".clean.csv"), c)
}

// WriteIPD writes <data_dir>/<name>_indiv.csv.
func (f *Fixture) WriteIPD(name string, t survival.Table) error {
	return excel.WriteIPD(filepath.Join(f.DataDir, name+"_indiv.csv"), t)
}

// WritePrediction writes the canonical prediction of a row for a model
// ("ind" or "add").
func (f *Fixture) WritePrediction(row combo.Row, model string, c survival.Curve) error {
	path := filepath.Join(f.PredDir, fmt.Sprintf("%s_combination_predicted_%s.csv", row.Key(), model))
	return excel.WriteCurve(path, c)
}

// MetadataPath is where WriteMetadata puts the sheet.
func (f *Fixture) MetadataPath() string {
	return filepath.Join(f.Root, "metadata.txt")
}

// SeedSheetPath is the configured seed sheet location.
func (f *Fixture) SeedSheetPath() string {
	return filepath.Join(f.Root, "metadata_seed.txt")
}

// WriteMetadata writes rows as a tab-separated metadata sheet to path.
func (f *Fixture) WriteMetadata(path string, rows []combo.Row) error {
	headers := []string{
		excel.ColExperimental, excel.ColControl, excel.ColCombination, excel.ColCorr,
		excel.ColNControl, excel.ColNExperimental, excel.ColModel,
	}
	sheet := &excel.Sheet{Headers: headers, Rows: make([]excel.RawRowData, len(rows))}
	for i, r := range rows {
		sheet.Rows[i] = excel.RawRowData{
			excel.ColExperimental:  r.Experimental,
			excel.ColControl:       r.Control,
			excel.ColCombination:   r.Combination,
			excel.ColCorr:          strconv.FormatFloat(r.Corr, 'g', -1, 64),
			excel.ColNControl:      strconv.Itoa(r.NControl),
			excel.ColNExperimental: strconv.Itoa(r.NExperimental),
			excel.ColModel:         r.Model,
		}
	}
	return excel.WriteSheet(path, sheet)
}

// Config returns a configuration for the fixture with small run counts so
// service tests stay fast.
func (f *Fixture) Config() *config.Config {
	a := config.DefaultAnalysis()
	a.NIPD = 1000
	a.TrialRuns = 40
	a.SeedRuns = 7
	a.Workers = 2
	a.RowTimeout = time.Minute
	a.Landmarks = []int{499, 500}
	a.DiffPoints = 500
	return &config.Config{
		TableDir: f.TableDir,
		LogLevel: "ERROR",
		Analysis: a,
		Datasets: map[string]config.DatasetConfig{
			f.Name: f.DatasetConfig(),
		},
	}
}

// DatasetConfig is the fixture's dataset block.
func (f *Fixture) DatasetConfig() config.DatasetConfig {
	return config.DatasetConfig{
		MetadataSheet:     f.MetadataPath(),
		MetadataSheetSeed: f.SeedSheetPath(),
		DataDir:           f.DataDir,
		PredDir:           f.PredDir,
		TableDir:          f.TableDir,
	}
}
