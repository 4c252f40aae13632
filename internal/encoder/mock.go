package encoder

import (
	"context"
	"math"

	"github.com/mk-mkone/multimodal-retrieval-system/pkg/utils"
)

// MockEncoder is a deterministic encoder for tests and for modalities whose
// real producer is not wired in. The same input always yields the same
// unit-length vector.
type MockEncoder struct {
	dimensions int
}

// NewMockEncoder returns an encoder producing deterministic embeddings of the
// given dimensions.
func NewMockEncoder(dimensions int) *MockEncoder {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &MockEncoder{dimensions: dimensions}
}

// Encode returns a deterministic embedding based on the input hash.
func (e *MockEncoder) Encode(ctx context.Context, input string) ([]float32, error) {
	h := HashString(input)
	vec := make([]float32, e.dimensions)
	for i := 0; i < e.dimensions; i++ {
		vec[i] = float32(math.Sin(float64(h*(i+1)))*0.1 + 0.01)
	}
	utils.NormalizeL2(vec)
	return vec, nil
}

// Dimensions returns the embedding dimension.
func (e *MockEncoder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op for MockEncoder.
func (e *MockEncoder) Close() error {
	return nil
}
