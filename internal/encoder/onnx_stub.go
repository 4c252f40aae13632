//go:build !cgo
// +build !cgo

package encoder

import (
	"context"
	"errors"
)

// ONNXTextEncoder stub type when built without CGO (see onnx.go for the real implementation).
type ONNXTextEncoder struct{}

// NewONNXTextEncoder returns an error when built without CGO (ONNX not available).
func NewONNXTextEncoder(_ string, _, _, _ int) (*ONNXTextEncoder, error) {
	return nil, errors.New("ONNX text encoder requires CGO; build with CGO_ENABLED=1 and onnxruntime")
}

// Encode is unreachable when built without CGO (the constructor always errors).
func (e *ONNXTextEncoder) Encode(_ context.Context, _ string) ([]float32, error) {
	return nil, errors.New("ONNX text encoder requires CGO; build with CGO_ENABLED=1 and onnxruntime")
}

// Dimensions is unreachable when built without CGO (the constructor always errors).
func (e *ONNXTextEncoder) Dimensions() int {
	return 0
}

// Close is unreachable when built without CGO (the constructor always errors).
func (e *ONNXTextEncoder) Close() error {
	return nil
}
