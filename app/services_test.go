package app

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"combosurv/adapters/excel"
	"combosurv/adapters/rng"
	"combosurv/adapters/store"
	"combosurv/domain/combo"
	"combosurv/domain/survival"
	"combosurv/internal"
	"combosurv/internal/batch"
	"combosurv/internal/errors"
	"combosurv/internal/testkit"
	"combosurv/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	rowAB = combo.Row{Experimental: "A", Control: "B", Combination: "AB", Corr: 0.3, NControl: 150, NExperimental: 140}
	rowCX = combo.Row{Experimental: "C", Control: "X", Corr: 0.1, NControl: 80, NExperimental: 80}
)

type harness struct {
	fx     *testkit.Fixture
	deps   Deps
	ledger ports.ResultsRepository
}

func newHarness(t *testing.T, workers int) *harness {
	t.Helper()
	fx, err := testkit.NewFixture(t.TempDir(), "pfs")
	require.NoError(t, err)

	require.NoError(t, fx.WriteCurve("A", testkit.ExponentialCurve(0.12, 30, 31)))
	require.NoError(t, fx.WriteCurve("B", testkit.ExponentialCurve(0.2, 30, 31)))
	require.NoError(t, fx.WriteCurve("C", testkit.ExponentialCurve(0.15, 30, 31)))
	require.NoError(t, fx.WriteCurve("AB", testkit.ExponentialCurve(0.05, 30, 31)))
	require.NoError(t, fx.WriteMetadata(fx.MetadataPath(), []combo.Row{rowAB, rowCX}))
	require.NoError(t, fx.WriteMetadata(fx.SeedSheetPath(), []combo.Row{rowAB, rowCX}))

	cfg := fx.Config()
	cfg.Analysis.Workers = workers
	ds, err := cfg.Dataset("pfs")
	require.NoError(t, err)

	db, err := store.Open(context.Background(), "sqlite3", filepath.Join(fx.Root, "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	ledger := store.NewResultsRepository(db)

	logger := internal.NewLogger(internal.LogLevelError)
	return &harness{
		fx:     fx,
		ledger: ledger,
		deps: Deps{
			Config:   cfg,
			Dataset:  ds,
			Executor: batch.NewExecutor(batch.Config{Workers: workers, RowTimeout: cfg.Analysis.RowTimeout}, logger),
			RNG:      rng.NewAdapter(),
			Ledger:   ledger,
			Logger:   logger,
		},
	}
}

func (h *harness) writePredictions(t *testing.T) {
	t.Helper()
	n := h.deps.Config.Analysis.NIPD
	require.NoError(t, h.fx.WritePrediction(rowAB, ModelHSA, testkit.ExponentialPrediction(0.06, 30, n)))
	require.NoError(t, h.fx.WritePrediction(rowAB, ModelAdditivity, testkit.ExponentialPrediction(0.04, 30, n)))
}

func TestSeedServiceSelectsMedianRunAndPromotesIt(t *testing.T) {
	h := newHarness(t, 2)
	svc := NewSeedService(h.deps, testkit.NewStubPredictor(h.deps.Config.Analysis.NIPD))

	report, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Rows)
	assert.Equal(t, 1, report.Failed)

	sheet, err := excel.ReadSheet(h.fx.SeedSheetPath())
	require.NoError(t, err)
	require.Len(t, sheet.Rows, 2)

	// seed 3 is the unscaled hazard, the middle of seeds 0..6
	assert.Equal(t, "3", sheet.Rows[0][excel.ColMedianRun])
	assert.Equal(t, "ok", sheet.Rows[0][excel.ColStatus])
	assert.Equal(t, "-1", sheet.Rows[1][excel.ColMedianRun])
	assert.Equal(t, "NaN", sheet.Rows[1][excel.ColMedianStd])
	assert.Equal(t, "failed", sheet.Rows[1][excel.ColStatus])
	assert.Contains(t, sheet.Rows[1][excel.ColError], "X.clean.csv")

	pred, err := excel.ReadCurve(filepath.Join(h.fx.PredDir, "A-B_combination_predicted_ind.csv"))
	require.NoError(t, err)
	assert.Len(t, pred, h.deps.Config.Analysis.NIPD)

	// run files lived in a temporary directory that is gone
	entries, err := os.ReadDir(h.fx.TableDir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasPrefix(e.Name(), "seeds-"), e.Name())
	}

	rows, err := h.ledger.ListRows(context.Background(), report.RunID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, combo.StatusOK, rows[0].Status)
	assert.Equal(t, combo.StatusFailed, rows[1].Status)
	assert.Contains(t, rows[0].Payload, excel.ColMedianStd)
}

func TestSeedServiceKeepRuns(t *testing.T) {
	h := newHarness(t, 1)
	h.deps.Config.Analysis.KeepRuns = true
	svc := NewSeedService(h.deps, testkit.NewStubPredictor(h.deps.Config.Analysis.NIPD))

	_, err := svc.Run(context.Background())
	require.NoError(t, err)
	for seed := 0; seed < h.deps.Config.Analysis.SeedRuns; seed++ {
		assert.FileExists(t, Layout{Dataset: h.deps.Dataset}.RunPath(h.fx.PredDir, rowAB, seed))
	}
}

func TestSeedServiceMissingMetadataIsFatal(t *testing.T) {
	h := newHarness(t, 1)
	require.NoError(t, os.Remove(h.fx.MetadataPath()))

	_, err := NewSeedService(h.deps, testkit.NewStubPredictor(10)).Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, errors.CodeNotFound, errors.GetCode(err))
}

func TestPowerServiceDetectsStrongBenefit(t *testing.T) {
	h := newHarness(t, 2)
	h.writePredictions(t)

	report, err := NewPowerService(h.deps).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, filepath.Join(h.fx.TableDir, "pfs_predictive_power.csv"), report.Output)

	sheet, err := excel.ReadSheet(report.Output)
	require.NoError(t, err)
	require.Len(t, sheet.Rows, 2)
	assert.Equal(t, "ok", sheet.Rows[0][excel.ColStatus])
	assert.Equal(t, "NaN", sheet.Rows[1]["prob_success_ctrl"])
	assert.Equal(t, "failed", sheet.Rows[1][excel.ColStatus])

	results := NewPowerService(h.deps).Evaluate(context.Background(), []combo.Row{rowAB})
	res := results[0]
	require.Equal(t, combo.StatusOK, res.Status, res.Error)
	assert.Greater(t, res.Control.Probability, 0.9)
	assert.GreaterOrEqual(t, res.Control.Probability, res.Experimental.Probability)
	assert.Less(t, res.Control.LargeN.HazardRatio, 1.0)
	assert.Less(t, res.Experimental.LargeN.HazardRatio, 1.0)
	assert.Equal(t, h.deps.Config.Analysis.TrialRuns, res.Control.Runs)
}

func TestPowerServiceIndependentOfWorkerCount(t *testing.T) {
	serial := newHarness(t, 1)
	serial.writePredictions(t)
	parallel := newHarness(t, 4)
	parallel.writePredictions(t)

	rows := []combo.Row{rowAB, rowAB, rowCX, rowAB}
	a := NewPowerService(serial.deps).Evaluate(context.Background(), rows)
	b := NewPowerService(parallel.deps).Evaluate(context.Background(), rows)

	for i := range rows {
		assert.Equal(t, a[i].Status, b[i].Status)
		assert.Equal(t, a[i].Control.Successes, b[i].Control.Successes)
		assert.Equal(t, a[i].Experimental.Successes, b[i].Experimental.Successes)
	}
	assert.Equal(t, a[0].Control.Successes, a[1].Control.Successes)
}

func TestPowerServicePrefersPublishedIPD(t *testing.T) {
	h := newHarness(t, 1)
	h.writePredictions(t)

	// an event-free control table makes every comparison degenerate
	censored := make(survival.Table, 100)
	for i := range censored {
		censored[i] = survival.Record{Time: 30}
	}
	require.NoError(t, h.fx.WriteIPD("B", censored))

	res, err := NewPowerService(h.deps).EvaluateRow(context.Background(), rowAB)
	require.NoError(t, err)
	assert.Equal(t, combo.StatusInconclusive, res.Status)
	assert.Equal(t, res.Control.Runs, res.Control.Degenerate)
	assert.Zero(t, res.Control.Probability)
	assert.True(t, res.Control.LargeN.IsMissing())
	assert.Equal(t, combo.StatusOK, res.Experimental.LargeNStatus)
}

func TestPowerServiceRejectsRowWithoutEnrollment(t *testing.T) {
	h := newHarness(t, 1)
	h.writePredictions(t)
	row := rowAB
	row.NControl, row.NExperimental = 0, 0

	_, err := NewPowerService(h.deps).EvaluateRow(context.Background(), row)
	assert.Error(t, err)
}

func TestDiffService(t *testing.T) {
	h := newHarness(t, 2)
	h.writePredictions(t)

	report, err := NewDiffService(h.deps).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)
	assert.FileExists(t, filepath.Join(h.fx.TableDir, "pfs_additivity_hsa_difference.csv"))

	res, err := NewDiffService(h.deps).EvaluateRow(context.Background(), rowAB)
	require.NoError(t, err)
	assert.Equal(t, combo.StatusOK, res.Status)
	assert.Greater(t, res.HSAControl, 0.0)
	assert.Greater(t, res.AdditivityHSA, 0.0)
	assert.Greater(t, res.ComboControl, res.HSAControl)
	assert.False(t, math.IsNaN(res.ComboAdditivity))
	// HSA hazard relative to additivity
	assert.Greater(t, res.AdditivityVersus.HazardRatio, 1.0)
	assert.Less(t, res.AdditivityVersus.PValue, 0.05)

	noCombo := rowAB
	noCombo.Combination = ""
	res, err = NewDiffService(h.deps).EvaluateRow(context.Background(), noCombo)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(res.ComboControl))
	assert.True(t, math.IsNaN(res.ComboAdditivity))
}

const badRowSheet = "Experimental\tControl\tCombination\tCorr\tN_control\tN_experimental\n" +
	"A\tB\tAB\t0.3\t150\t140\n" +
	"A\tB\tAB\t0.3\tabc\t140\n"

func TestSeedServiceFailsOnlyUnreadableRows(t *testing.T) {
	h := newHarness(t, 2)
	sheet := badRowSheet + "A\tB\tAB\t\t150\t140\n"
	require.NoError(t, os.WriteFile(h.fx.MetadataPath(), []byte(sheet), 0o644))

	report, err := NewSeedService(h.deps, testkit.NewStubPredictor(h.deps.Config.Analysis.NIPD)).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, report.Rows)
	assert.Equal(t, 2, report.Failed)

	out, err := excel.ReadSheet(h.fx.SeedSheetPath())
	require.NoError(t, err)
	require.Len(t, out.Rows, 3)
	assert.Equal(t, "ok", out.Rows[0][excel.ColStatus])
	assert.Equal(t, "3", out.Rows[0][excel.ColMedianRun])

	assert.Equal(t, "failed", out.Rows[1][excel.ColStatus])
	assert.Contains(t, out.Rows[1][excel.ColError], "N_control")
	assert.Equal(t, "abc", out.Rows[1][excel.ColNControl])

	// a blank correlation is never read as independence
	assert.Equal(t, "failed", out.Rows[2][excel.ColStatus])
	assert.Contains(t, out.Rows[2][excel.ColError], "Corr is blank")
	assert.Equal(t, "-1", out.Rows[2][excel.ColMedianRun])
}

func TestSeedServiceRequiresCorrColumn(t *testing.T) {
	h := newHarness(t, 1)
	sheet := "Experimental\tControl\tN_control\tN_experimental\nA\tB\t150\t140\n"
	require.NoError(t, os.WriteFile(h.fx.MetadataPath(), []byte(sheet), 0o644))

	_, err := NewSeedService(h.deps, testkit.NewStubPredictor(10)).Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))
	assert.Contains(t, err.Error(), "Corr")
}

func TestPowerAndDiffFailOnlyUnreadableRows(t *testing.T) {
	h := newHarness(t, 2)
	h.writePredictions(t)
	require.NoError(t, os.WriteFile(h.fx.SeedSheetPath(), []byte(badRowSheet), 0o644))

	power, err := NewPowerService(h.deps).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, power.Rows)
	assert.Equal(t, 1, power.Failed)

	diff, err := NewDiffService(h.deps).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, diff.Failed)

	for _, path := range []string{power.Output, diff.Output} {
		sheet, err := excel.ReadSheet(path)
		require.NoError(t, err)
		require.Len(t, sheet.Rows, 2, path)
		assert.Equal(t, "ok", sheet.Rows[0][excel.ColStatus], path)
		assert.Equal(t, "failed", sheet.Rows[1][excel.ColStatus], path)
		assert.Contains(t, sheet.Rows[1][excel.ColError], "N_control", path)
	}
}
