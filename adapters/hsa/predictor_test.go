package hsa

import (
	"context"
	"math"
	"testing"

	"combosurv/domain/survival"
	"combosurv/internal/stability"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exponential(rate, tmax float64) survival.Curve {
	c := make(survival.Curve, 61)
	for i := range c {
		t := tmax * float64(i) / 60
		c[i] = survival.Point{Time: t, Survival: 100 * math.Exp(-rate*t)}
	}
	return c
}

func median(t *testing.T, c survival.Curve) float64 {
	t.Helper()
	m, err := stability.LandmarkSummary(c, []int{len(c)/2 - 1, len(c) / 2})
	require.NoError(t, err)
	return m
}

func TestPredictDeterministicPerSeed(t *testing.T) {
	p := NewPredictor(2000)
	a, b := exponential(0.15, 30), exponential(0.2, 24)

	first, err := p.Predict(context.Background(), a, b, 0.3, 4)
	require.NoError(t, err)
	second, err := p.Predict(context.Background(), a, b, 0.3, 4)
	require.NoError(t, err)
	other, err := p.Predict(context.Background(), a, b, 0.3, 5)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.NotEqual(t, first, other)
}

func TestPredictShape(t *testing.T) {
	p := NewPredictor(1000)
	a, b := exponential(0.15, 30), exponential(0.2, 24)

	pred, err := p.Predict(context.Background(), a, b, 0, 1)
	require.NoError(t, err)
	require.Len(t, pred, 1000)

	for i := 1; i < len(pred); i++ {
		assert.GreaterOrEqual(t, pred[i].Time, pred[i-1].Time)
		assert.LessOrEqual(t, pred[i].Survival, pred[i-1].Survival)
	}
	// follow-up ends at the shorter curve
	assert.InDelta(t, 24, pred.MaxTime(), 1e-12)
	assert.Greater(t, pred[len(pred)-1].Survival, 0.0)
}

func TestPredictBeatsEachSingleAgent(t *testing.T) {
	p := NewPredictor(4000)
	a, b := exponential(0.12, 40), exponential(0.18, 40)

	pred, err := p.Predict(context.Background(), a, b, 0.2, 0)
	require.NoError(t, err)

	// medians of the single agents: ln2/rate
	assert.Greater(t, median(t, pred), math.Ln2/0.12)
	assert.Greater(t, median(t, pred), math.Ln2/0.18)
}

func TestPredictPerfectCorrelationOfIdenticalArms(t *testing.T) {
	p := NewPredictor(4000)
	a := exponential(0.1, 50)

	pred, err := p.Predict(context.Background(), a, a, 1, 9)
	require.NoError(t, err)
	// identical, fully correlated responses add nothing
	assert.InDelta(t, math.Ln2/0.1, median(t, pred), 0.5)
}

func TestPredictRejectsBadInputs(t *testing.T) {
	p := NewPredictor(10)
	a := exponential(0.1, 10)

	_, err := p.Predict(context.Background(), a, a, 1.5, 0)
	assert.Error(t, err)

	_, err = p.Predict(context.Background(), survival.Curve{{0, 100}}, a, 0, 0)
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Predict(ctx, a, a, 0, 0)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPearsonFromSpearman(t *testing.T) {
	assert.InDelta(t, 0, PearsonFromSpearman(0), 1e-12)
	assert.InDelta(t, 1, PearsonFromSpearman(1), 1e-12)
	assert.InDelta(t, -1, PearsonFromSpearman(-1), 1e-12)
	assert.InDelta(t, 0.5176, PearsonFromSpearman(0.5), 1e-4)
}

func TestQuantileTime(t *testing.T) {
	c := survival.Curve{{0, 100}, {10, 50}, {20, 40}}
	assert.Equal(t, 0.0, quantileTime(c, 0))
	assert.InDelta(t, 5, quantileTime(c, 0.25), 1e-12)
	assert.InDelta(t, 15, quantileTime(c, 0.55), 1e-12)
	assert.True(t, math.IsInf(quantileTime(c, 0.7), 1))
}
