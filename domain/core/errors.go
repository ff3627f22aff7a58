package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Not found errors
	ErrNotFound        = errors.New("resource not found")
	ErrCurveNotFound   = fmt.Errorf("%w: curve", ErrNotFound)
	ErrDatasetNotFound = fmt.Errorf("%w: dataset", ErrNotFound)
	ErrColumnNotFound  = fmt.Errorf("%w: column", ErrNotFound)

	// Input errors
	ErrInvalidCurve      = errors.New("invalid survival curve")
	ErrInvalidSampleSize = errors.New("invalid sample size")
	ErrInvalidTable      = errors.New("invalid patient table")
	ErrLandmarkRange     = errors.New("landmark index out of range")
	ErrInvalidMetadata   = errors.New("invalid metadata row")

	// Statistical degeneracy
	ErrDegenerateModel = errors.New("degenerate proportional hazards model")
	ErrNoConvergence   = fmt.Errorf("%w: no convergence", ErrDegenerateModel)

	// Batch errors
	ErrRowTimeout = errors.New("row processing timed out")
	ErrRowPanic   = errors.New("row processing panicked")
)

// Error constructors with context
func NewCurveError(reason string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidCurve, fmt.Sprintf(reason, args...))
}

func NewDegenerateError(reason string) error {
	return fmt.Errorf("%w: %s", ErrDegenerateModel, reason)
}

func NewNotFoundError(resource string, id string) error {
	return fmt.Errorf("%w: %s %s", ErrNotFound, resource, id)
}

// Error checking helpers
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsInputError reports malformed curve or table data.
func IsInputError(err error) bool {
	return errors.Is(err, ErrInvalidCurve) ||
		errors.Is(err, ErrInvalidSampleSize) ||
		errors.Is(err, ErrInvalidTable) ||
		errors.Is(err, ErrLandmarkRange) ||
		errors.Is(err, ErrInvalidMetadata) ||
		errors.Is(err, ErrNotFound)
}

// IsInconclusive reports statistical degeneracy, which callers surface as
// "could not compute" rather than "no difference".
func IsInconclusive(err error) bool {
	return errors.Is(err, ErrDegenerateModel)
}
