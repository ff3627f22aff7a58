package rng

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func draw(t *testing.T, name string, seed int64) []int {
	t.Helper()
	r, err := NewAdapter().Stream(context.Background(), name, seed)
	require.NoError(t, err)
	out := make([]int, 20)
	for i := range out {
		out[i] = r.Intn(5000)
	}
	return out
}

func TestStreamIsReproducible(t *testing.T) {
	assert.Equal(t, draw(t, "PFS/A-B/Control", 0), draw(t, "PFS/A-B/Control", 0))
}

func TestStreamsDifferByNameAndSeed(t *testing.T) {
	base := draw(t, "PFS/A-B/Control", 0)
	assert.NotEqual(t, base, draw(t, "PFS/A-B/Experimental", 0))
	assert.NotEqual(t, base, draw(t, "PFS/A-B/Control", 1))
}

func TestSeededStreamHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewAdapter().SeededStream(ctx, 1)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int64(7), DeriveSeed("", 7))
}
