package vector

import (
	"context"
	"errors"
	"fmt"
)

// ErrDimensionMismatch is returned when a vector's length disagrees with the
// index dimensionality. Vectors are never silently truncated or padded.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// Result is a single nearest-neighbor hit: a row index into the identifier
// array and the score under the index metric.
type Result struct {
	Row   int
	Score float64
}

// Index is a similarity index over fixed-dimensional vectors. Row order is
// the order vectors were added; it is the sole link to external document
// identifiers and must be preserved by every implementation.
type Index interface {
	// Add appends vectors in order. Every vector must have exactly
	// Dimensions() components.
	Add(vectors [][]float32) error
	// Search returns up to k nearest neighbors ranked by the index metric.
	Search(ctx context.Context, query []float32, k int) ([]Result, error)
	// Vector returns the stored vector at row, for consistency spot-checks.
	Vector(row int) ([]float32, error)
	Rows() int
	Dimensions() int
	Metric() Metric
	// Save persists the index to path in the common artifact format.
	Save(path string) error
	Close() error
}

func checkDim(dim int, vec []float32) error {
	if len(vec) != dim {
		return fmt.Errorf("%w: got %d, expected %d", ErrDimensionMismatch, len(vec), dim)
	}
	return nil
}
