package simulation

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"combosurv/domain/core"
	"combosurv/domain/survival"
	"combosurv/internal/ipd"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exponentialCurve(rate, tmax float64) survival.Curve {
	c := make(survival.Curve, 49)
	for i := range c {
		t := tmax * float64(i) / 48
		c[i] = survival.Point{Time: t, Survival: 100 * math.Exp(-rate*t)}
	}
	return c
}

func table(t *testing.T, rate float64, n int) survival.Table {
	t.Helper()
	tb, err := ipd.Create(exponentialCurve(rate, 12), n)
	require.NoError(t, err)
	return tb
}

func newSim(runs int) *Simulator {
	return NewSimulator(Config{Runs: runs, Rule: survival.DefaultSuccessRule()}, nil)
}

func TestSimulateReproducible(t *testing.T) {
	control := table(t, 0.2, 150)
	reference := table(t, 0.13, 5000)
	sim := newSim(60)

	a, err := sim.Simulate(context.Background(), reference, control, 150, rand.New(rand.NewSource(11)))
	require.NoError(t, err)
	b, err := sim.Simulate(context.Background(), reference, control, 150, rand.New(rand.NewSource(11)))
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Equal(t, 60, a.Runs)
	assert.InDelta(t, float64(a.Successes)/60, a.Probability, 1e-12)
}

func TestSimulateLargerEffectIsNotLessPowerful(t *testing.T) {
	control := table(t, 0.2, 150)
	weak := table(t, 0.17, 5000)
	strong := table(t, 0.11, 5000)
	sim := newSim(80)

	pWeak, err := sim.Simulate(context.Background(), weak, control, 150, rand.New(rand.NewSource(3)))
	require.NoError(t, err)
	pStrong, err := sim.Simulate(context.Background(), strong, control, 150, rand.New(rand.NewSource(3)))
	require.NoError(t, err)

	assert.GreaterOrEqual(t, pStrong.Probability, pWeak.Probability)
	assert.Greater(t, pStrong.Probability, 0.5)
}

func TestSimulateHarmfulArmNeverSucceeds(t *testing.T) {
	control := table(t, 0.15, 200)
	worse := table(t, 0.3, 5000)

	sum, err := newSim(40).Simulate(context.Background(), worse, control, 200, rand.New(rand.NewSource(5)))
	require.NoError(t, err)
	assert.Zero(t, sum.Successes)
}

func TestSimulateCountsDegenerateTrialsAsFailures(t *testing.T) {
	control := table(t, 0.2, 100)
	noEvents, err := ipd.Create(survival.Curve{{0, 100}, {12, 100}}, 1000)
	require.NoError(t, err)

	sum, err := newSim(25).Simulate(context.Background(), noEvents, control, 100, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	assert.Equal(t, 25, sum.Degenerate)
	assert.Zero(t, sum.Probability)
}

func TestSimulateValidatesInputs(t *testing.T) {
	control := table(t, 0.2, 50)
	sim := newSim(5)
	rng := rand.New(rand.NewSource(1))

	_, err := sim.Simulate(context.Background(), nil, control, 10, rng)
	assert.ErrorIs(t, err, core.ErrInvalidTable)

	_, err = sim.Simulate(context.Background(), control, control, 0, rng)
	assert.ErrorIs(t, err, core.ErrInvalidSampleSize)

	_, err = sim.Simulate(context.Background(), control, control, 10, nil)
	assert.Error(t, err)
}

func TestSimulateStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	control := table(t, 0.2, 50)
	_, err := newSim(5).Simulate(ctx, control, control, 10, rand.New(rand.NewSource(1)))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLargeNUsesControlAsBaseline(t *testing.T) {
	control := table(t, 0.2, 5000)
	better := table(t, 0.1, 5000)

	res, err := newSim(1).LargeN(better, control)
	require.NoError(t, err)
	assert.Less(t, res.HazardRatio, 1.0)
}
