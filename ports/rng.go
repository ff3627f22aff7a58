package ports

import (
	"context"
	"math/rand"
)

// RNGPort provides seeded random number generation for deterministic operations
type RNGPort interface {
	// SeededStream creates a deterministic random number generator for a seed
	SeededStream(ctx context.Context, seed int64) (*rand.Rand, error)

	// Stream creates an independent deterministic stream for a named unit of
	// work (dataset/row/arm). The stream depends only on (name, baseSeed), so
	// results do not change with worker scheduling order.
	Stream(ctx context.Context, name string, baseSeed int64) (*rand.Rand, error)
}
