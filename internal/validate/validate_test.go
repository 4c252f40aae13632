package validate

import (
	"math"
	"testing"

	"github.com/mk-mkone/multimodal-retrieval-system/internal/vector"
)

func buildIndex(t *testing.T, vecs [][]float32) vector.Index {
	t.Helper()
	idx, err := vector.NewFlatIndex(len(vecs[0]), vector.MetricIP)
	if err != nil {
		t.Fatal(err)
	}
	if err := idx.Add(vecs); err != nil {
		t.Fatal(err)
	}
	return idx
}

func TestFull_OK(t *testing.T) {
	idx := buildIndex(t, [][]float32{{1, 0}, {0, 1}, {0.5, 0.5}})
	ids := []string{"a", "b", "c"}
	want := Expect{Dimensionality: 2, Metric: vector.MetricIP, VectorCount: 3}
	if err := Full(idx, ids, want, 8); err != nil {
		t.Fatal(err)
	}
}

func TestLight_RowCountMismatch(t *testing.T) {
	idx := buildIndex(t, [][]float32{{1, 0}, {0, 1}})
	ids := []string{"a"}
	want := Expect{Dimensionality: 2, Metric: vector.MetricIP, VectorCount: 2}
	if err := Light(idx, ids, want); err == nil {
		t.Error("expected error for id/row count mismatch")
	}
}

func TestLight_DimensionalityMismatch(t *testing.T) {
	idx := buildIndex(t, [][]float32{{1, 0}})
	want := Expect{Dimensionality: 3, Metric: vector.MetricIP, VectorCount: 1}
	if err := Light(idx, []string{"a"}, want); err == nil {
		t.Error("expected error for dimensionality mismatch")
	}
}

func TestLight_MetricMismatch(t *testing.T) {
	idx := buildIndex(t, [][]float32{{1, 0}})
	want := Expect{Dimensionality: 2, Metric: vector.MetricL2, VectorCount: 1}
	if err := Light(idx, []string{"a"}, want); err == nil {
		t.Error("expected error for metric mismatch")
	}
}

func TestFull_NonFinite(t *testing.T) {
	idx := buildIndex(t, [][]float32{{1, 0}, {float32(math.NaN()), 0}})
	ids := []string{"a", "b"}
	want := Expect{Dimensionality: 2, Metric: vector.MetricIP, VectorCount: 2}
	if err := Full(idx, ids, want, 10); err == nil {
		t.Error("expected error for non-finite component")
	}
}
