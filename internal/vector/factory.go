package vector

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

// Strategy selects the index implementation.
type Strategy string

const (
	// StrategyFlat is exact brute-force search. The default.
	StrategyFlat Strategy = "flat"
	// StrategyHNSW is graph-based approximate search. Same build contract as
	// flat (deterministic row order, exact id alignment); recall is tuned via
	// HNSWConfig.EfSearch rather than by changing correctness guarantees.
	StrategyHNSW Strategy = "hnsw"
)

// NewIndex creates an empty index of the given strategy.
// Supported strategies: "flat" (default when empty), "hnsw".
func NewIndex(strategy string, dimensions int, metric Metric) (Index, error) {
	switch Strategy(strategy) {
	case StrategyFlat, "":
		return NewFlatIndex(dimensions, metric)
	case StrategyHNSW:
		return NewHNSWIndex(dimensions, metric, DefaultHNSWConfig())
	default:
		return nil, fmt.Errorf("unknown index strategy: %s (supported: flat, hnsw)", strategy)
	}
}

// Load reads an index artifact written by Index.Save and returns the loaded
// index. The strategy is dispatched from the artifact header.
func Load(path string) (Index, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open index file: %w", err)
	}
	defer fh.Close()
	r := bufio.NewReader(fh)
	h, err := readHeader(r)
	if err != nil {
		return nil, err
	}
	switch h.strategy {
	case StrategyFlat:
		return loadFlat(r, h)
	case StrategyHNSW:
		return loadHNSW(r, h)
	}
	return nil, fmt.Errorf("unknown index strategy: %s", h.strategy)
}

func loadFlat(r io.Reader, h *artifactHeader) (*FlatIndex, error) {
	idx, err := NewFlatIndex(h.dim, h.metric)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, h.dim*4)
	idx.vectors = make([][]float32, 0, h.count)
	for i := 0; i < h.count; i++ {
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, fmt.Errorf("read vector %d: %w", i, err)
		}
		idx.vectors = append(idx.vectors, BytesToFloat32Slice(buf))
	}
	return idx, nil
}
