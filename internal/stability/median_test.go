package stability

import (
	"math"
	"testing"

	"combosurv/domain/core"
	"combosurv/domain/survival"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectMedianRun(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   int
	}{
		{"odd count", []float64{5, 1, 3, 2, 4}, 2},
		{"even count takes rank n/2", []float64{1, 2, 3, 4}, 2},
		{"even count unsorted", []float64{4, 3, 2, 1}, 1},
		{"ties keep lower run first", []float64{7, 7, 7}, 1},
		{"single run", []float64{9}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SelectMedianRun(tt.values)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := SelectMedianRun(nil)
	assert.ErrorIs(t, err, core.ErrInvalidSampleSize)
}

func TestAnalyzePopulationStd(t *testing.T) {
	sum, err := Analyze([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	require.NoError(t, err)
	assert.InDelta(t, 2.0, sum.Std, 1e-12)
	assert.Equal(t, 4, sum.MedianRun)
}

func TestLandmarkSummary(t *testing.T) {
	c := make(survival.Curve, 10)
	for i := range c {
		c[i] = survival.Point{Time: float64(i) * 2, Survival: 100 - float64(i)*10}
	}

	v, err := LandmarkSummary(c, []int{4, 5})
	require.NoError(t, err)
	assert.InDelta(t, 9.0, v, 1e-12)

	_, err = LandmarkSummary(c, []int{9, 10})
	assert.ErrorIs(t, err, core.ErrLandmarkRange)

	_, err = LandmarkSummary(c, nil)
	assert.ErrorIs(t, err, core.ErrLandmarkRange)

	assert.False(t, math.IsNaN(v))
}
