package ports

import (
	"context"

	"combosurv/domain/survival"
)

// Predictor generates a combination survival curve from two single-agent
// curves. Implementations may be randomized but must be a pure function of
// (curveA, curveB, correlation, seed).
type Predictor interface {
	Predict(ctx context.Context, curveA, curveB survival.Curve, correlation float64, seed int64) (survival.Curve, error)
}
