// Package rng derives reproducible per-task random streams.
package rng

import (
	"context"
	"math/rand"

	"combosurv/ports"
)

// Adapter implements ports.RNGPort with math/rand sources.
type Adapter struct{}

var _ ports.RNGPort = (*Adapter)(nil)

// NewAdapter creates a stream adapter.
func NewAdapter() *Adapter {
	return &Adapter{}
}

// SeededStream creates a deterministic random number generator for a seed
func (a *Adapter) SeededStream(ctx context.Context, seed int64) (*rand.Rand, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return rand.New(rand.NewSource(seed)), nil
}

// Stream creates a deterministic RNG stream for a named unit of work by
// hashing the name into the base seed.
func (a *Adapter) Stream(ctx context.Context, name string, baseSeed int64) (*rand.Rand, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return rand.New(rand.NewSource(DeriveSeed(name, baseSeed))), nil
}

// DeriveSeed combines a task name with the base seed.
func DeriveSeed(name string, baseSeed int64) int64 {
	if name == "" {
		return baseSeed
	}
	return int64(hashString(name)) + baseSeed
}

// hashString creates a simple hash for deterministic seeding
func hashString(s string) uint32 {
	var hash uint32 = 5381
	for _, c := range s {
		hash = ((hash << 5) + hash) + uint32(c) // djb2 algorithm
	}
	return hash
}
