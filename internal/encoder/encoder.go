// Package encoder converts raw queries into vectors compatible with a target
// index, validating the external producer's output before it reaches the index.
package encoder

import (
	"context"
	"errors"
	"fmt"

	"github.com/mk-mkone/multimodal-retrieval-system/pkg/utils"
)

var (
	// ErrEncodingFailed is returned when the embedding producer fails.
	// Surfaced to the caller with context to retry; no retry loop here.
	ErrEncodingFailed = errors.New("encoding failed")
	// ErrInvalidQueryVector is returned when a query vector (produced or
	// caller-supplied) has the wrong length or non-finite components. The
	// vector never reaches the index.
	ErrInvalidQueryVector = errors.New("invalid query vector")
)

// Encoder produces a vector embedding for one modality's raw query input.
type Encoder interface {
	Encode(ctx context.Context, input string) ([]float32, error)
	Dimensions() int
	Close() error
}

// Adapter routes a query to the encoder registered for its modality and
// validates the returned vector before it is used.
type Adapter struct {
	encoders map[string]Encoder
}

// NewAdapter creates an adapter with no encoders registered.
func NewAdapter() *Adapter {
	return &Adapter{encoders: make(map[string]Encoder)}
}

// Register binds an encoder to a modality, replacing any previous binding.
func (a *Adapter) Register(modality string, enc Encoder) {
	a.encoders[modality] = enc
}

// EncodeQuery produces a vector of exactly wantDim components for the raw
// query, or fails. Producer errors surface as ErrEncodingFailed; malformed
// output surfaces as ErrInvalidQueryVector.
func (a *Adapter) EncodeQuery(ctx context.Context, modality, raw string, wantDim int) ([]float32, error) {
	enc, ok := a.encoders[modality]
	if !ok {
		return nil, fmt.Errorf("%w: no encoder registered for modality %q", ErrEncodingFailed, modality)
	}
	vec, err := enc.Encode(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncodingFailed, err)
	}
	if err := ValidateVector(vec, wantDim); err != nil {
		return nil, err
	}
	return vec, nil
}

// ValidateVector checks length and numeric finiteness of a query vector.
func ValidateVector(vec []float32, wantDim int) error {
	if len(vec) != wantDim {
		return fmt.Errorf("%w: dimensionality %d, index requires %d", ErrInvalidQueryVector, len(vec), wantDim)
	}
	if !utils.IsFinite(vec) {
		return fmt.Errorf("%w: vector contains NaN or infinite components", ErrInvalidQueryVector)
	}
	return nil
}

// Close closes every registered encoder.
func (a *Adapter) Close() error {
	var err error
	for _, enc := range a.encoders {
		if cerr := enc.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
