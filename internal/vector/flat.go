package vector

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// FlatIndex is an exact similarity index using brute-force scan. It supports
// inner-product and L2 ranking and is the default strategy: results are exact
// by construction.
type FlatIndex struct {
	dimensions int
	metric     Metric
	vectors    [][]float32
	mu         sync.RWMutex
}

// NewFlatIndex creates an exact index with the given dimension and metric.
func NewFlatIndex(dimensions int, metric Metric) (*FlatIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	if !metric.Valid() {
		return nil, fmt.Errorf("unsupported metric: %q", metric)
	}
	return &FlatIndex{
		dimensions: dimensions,
		metric:     metric,
		vectors:    make([][]float32, 0),
	}, nil
}

// Type returns the index strategy identifier.
func (f *FlatIndex) Type() string {
	return string(StrategyFlat)
}

// Add appends vectors in order.
func (f *FlatIndex) Add(vectors [][]float32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, v := range vectors {
		if err := checkDim(f.dimensions, v); err != nil {
			return err
		}
		vec := make([]float32, f.dimensions)
		copy(vec, v)
		f.vectors = append(f.vectors, vec)
	}
	return nil
}

// Search returns the top-k rows by the index metric.
func (f *FlatIndex) Search(ctx context.Context, query []float32, k int) ([]Result, error) {
	if err := checkDim(f.dimensions, query); err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	if k <= 0 || len(f.vectors) == 0 {
		return nil, nil
	}
	results := make([]Result, len(f.vectors))
	for i, vec := range f.vectors {
		results[i] = Result{Row: i, Score: f.metric.Score(query, vec)}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return f.metric.Better(results[i].Score, results[j].Score)
	})
	if k > len(results) {
		k = len(results)
	}
	return results[:k], nil
}

// Vector returns a copy of the stored vector at row.
func (f *FlatIndex) Vector(row int) ([]float32, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if row < 0 || row >= len(f.vectors) {
		return nil, fmt.Errorf("row %d out of range [0,%d)", row, len(f.vectors))
	}
	out := make([]float32, f.dimensions)
	copy(out, f.vectors[row])
	return out, nil
}

// Rows returns the number of vectors in the index.
func (f *FlatIndex) Rows() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.vectors)
}

// Dimensions returns the vector dimensionality.
func (f *FlatIndex) Dimensions() int {
	return f.dimensions
}

// Metric returns the ranking metric.
func (f *FlatIndex) Metric() Metric {
	return f.metric
}

// Save writes the index artifact: common header, then raw little-endian
// float32 vectors in row order.
func (f *FlatIndex) Save(path string) error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	fh, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	defer fh.Close()
	w := bufio.NewWriter(fh)
	if err := writeHeader(w, StrategyFlat, f.metric, f.dimensions, len(f.vectors)); err != nil {
		return err
	}
	for _, vec := range f.vectors {
		if _, err := w.Write(Float32SliceToBytes(vec)); err != nil {
			return fmt.Errorf("write vector: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush index file: %w", err)
	}
	return nil
}

// Close is a no-op for FlatIndex.
func (f *FlatIndex) Close() error {
	return nil
}
