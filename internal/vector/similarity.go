// Package vector provides similarity metrics and index implementations for
// fixed-dimensional embedding vectors.
package vector

import "math"

// Metric is the similarity/distance function used to rank vectors.
type Metric string

const (
	// MetricIP ranks by inner product; higher is more similar. Vectors are
	// expected to be L2-normalized upstream for cosine equivalence — the
	// index does not re-normalize.
	MetricIP Metric = "ip"
	// MetricL2 ranks by Euclidean distance; lower is more similar.
	MetricL2 Metric = "l2"
)

// Valid reports whether m is a supported metric.
func (m Metric) Valid() bool {
	return m == MetricIP || m == MetricL2
}

// Better reports whether score a ranks ahead of score b under metric m.
func (m Metric) Better(a, b float64) bool {
	if m == MetricL2 {
		return a < b
	}
	return a > b
}

// InnerProduct returns the inner product of two vectors (for normalized
// vectors equals cosine similarity).
func InnerProduct(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i] * b[i])
	}
	return dot
}

// L2Distance returns the Euclidean distance between two vectors.
func L2Distance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return math.MaxFloat64
	}
	var sum float64
	for i := range a {
		d := float64(a[i] - b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Score computes the ranking score of candidate against query under m.
func (m Metric) Score(query, candidate []float32) float64 {
	if m == MetricL2 {
		return L2Distance(query, candidate)
	}
	return InnerProduct(query, candidate)
}
