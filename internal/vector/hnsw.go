package vector

import (
	"bufio"
	"container/heap"
	"context"
	"encoding/gob"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// HNSWConfig contains tuning parameters for the HNSW graph.
type HNSWConfig struct {
	// M is the maximum number of connections per node per layer.
	M int
	// MMax is the maximum number of connections at layer 0, usually 2*M.
	MMax int
	// EfConstruction is the beam width during insertion.
	EfConstruction int
	// EfSearch is the beam width during search. This is the recall/latency
	// tradeoff knob: higher values approach exact results.
	EfSearch int
	// ML is the level generation factor, typically 1/ln(M).
	ML float64
}

// DefaultHNSWConfig returns sensible defaults.
func DefaultHNSWConfig() HNSWConfig {
	m := 16
	return HNSWConfig{
		M:              m,
		MMax:           m * 2,
		EfConstruction: 200,
		EfSearch:       100,
		ML:             1.0 / math.Log(float64(m)),
	}
}

// HNSWIndex is a graph-based approximate nearest neighbor index. Nodes are
// identified by insertion row, so id alignment matches the exact strategies.
type HNSWIndex struct {
	dimensions int
	metric     Metric
	config     HNSWConfig

	vectors    [][]float32
	levels     []int
	neighbors  [][][]int32 // neighbors[row][layer] = connected rows
	entryPoint int
	maxLevel   int

	rng *rand.Rand
	mu  sync.RWMutex
}

// NewHNSWIndex creates an empty HNSW index. The RNG is seeded deterministically
// so that rebuilding from identical input yields an identical graph.
func NewHNSWIndex(dimensions int, metric Metric, cfg HNSWConfig) (*HNSWIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	if !metric.Valid() {
		return nil, fmt.Errorf("unsupported metric: %q", metric)
	}
	return &HNSWIndex{
		dimensions: dimensions,
		metric:     metric,
		config:     cfg,
		entryPoint: -1,
		maxLevel:   -1,
		rng:        rand.New(rand.NewSource(42)),
	}, nil
}

// Type returns the index strategy identifier.
func (h *HNSWIndex) Type() string {
	return string(StrategyHNSW)
}

// distance is the internal ordering function; lower is always closer.
// Inner product is negated so one comparison works for both metrics.
func (h *HNSWIndex) distance(a, b []float32) float64 {
	if h.metric == MetricL2 {
		return L2Distance(a, b)
	}
	return -InnerProduct(a, b)
}

// Add appends vectors in order, inserting each into the graph.
func (h *HNSWIndex) Add(vectors [][]float32) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, v := range vectors {
		if err := checkDim(h.dimensions, v); err != nil {
			return err
		}
		vec := make([]float32, h.dimensions)
		copy(vec, v)
		h.insert(vec)
	}
	return nil
}

func (h *HNSWIndex) insert(vec []float32) {
	row := len(h.vectors)
	level := int(math.Floor(-math.Log(h.rng.Float64()) * h.config.ML))

	h.vectors = append(h.vectors, vec)
	h.levels = append(h.levels, level)
	layers := make([][]int32, level+1)
	h.neighbors = append(h.neighbors, layers)

	if h.entryPoint < 0 {
		h.entryPoint = row
		h.maxLevel = level
		return
	}

	ep := h.entryPoint
	for lc := h.maxLevel; lc > level; lc-- {
		ep = h.greedyClosest(vec, ep, lc)
	}

	top := level
	if top > h.maxLevel {
		top = h.maxLevel
	}
	for lc := top; lc >= 0; lc-- {
		candidates := h.searchLayer(vec, []int{ep}, h.config.EfConstruction, lc)
		m := h.config.M
		if len(candidates) < m {
			m = len(candidates)
		}
		for _, c := range candidates[:m] {
			h.connect(row, c.row, lc)
			h.connect(c.row, row, lc)
		}
		if len(candidates) > 0 {
			ep = candidates[0].row
		}
	}

	if level > h.maxLevel {
		h.entryPoint = row
		h.maxLevel = level
	}
}

func (h *HNSWIndex) maxDegree(layer int) int {
	if layer == 0 {
		return h.config.MMax
	}
	return h.config.M
}

// connect links from -> to at layer, pruning from's neighbor list to the
// layer's degree cap by keeping the closest.
func (h *HNSWIndex) connect(from, to int, layer int) {
	if from == to || layer >= len(h.neighbors[from]) {
		return
	}
	list := h.neighbors[from][layer]
	for _, n := range list {
		if int(n) == to {
			return
		}
	}
	list = append(list, int32(to))
	if limit := h.maxDegree(layer); len(list) > limit {
		sort.Slice(list, func(i, j int) bool {
			return h.distance(h.vectors[from], h.vectors[list[i]]) <
				h.distance(h.vectors[from], h.vectors[list[j]])
		})
		list = list[:limit]
	}
	h.neighbors[from][layer] = list
}

// greedyClosest walks layer lc from ep to the local minimum of distance to vec.
func (h *HNSWIndex) greedyClosest(vec []float32, ep int, lc int) int {
	cur := ep
	curDist := h.distance(vec, h.vectors[cur])
	for {
		improved := false
		if lc < len(h.neighbors[cur]) {
			for _, n := range h.neighbors[cur][lc] {
				if d := h.distance(vec, h.vectors[n]); d < curDist {
					cur, curDist = int(n), d
					improved = true
				}
			}
		}
		if !improved {
			return cur
		}
	}
}

type hnswCandidate struct {
	row  int
	dist float64
}

// candidateHeap is a min-heap by distance.
type candidateHeap []hnswCandidate

func (h candidateHeap) Len() int            { return len(h) }
func (h candidateHeap) Less(i, j int) bool  { return h[i].dist < h[j].dist }
func (h candidateHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *candidateHeap) Push(x interface{}) { *h = append(*h, x.(hnswCandidate)) }
func (h *candidateHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// searchLayer runs a beam search of width ef at layer lc and returns
// candidates sorted by ascending distance.
func (h *HNSWIndex) searchLayer(vec []float32, entryPoints []int, ef int, lc int) []hnswCandidate {
	visited := make(map[int]bool)
	candidates := &candidateHeap{}
	heap.Init(candidates)
	var results []hnswCandidate

	for _, ep := range entryPoints {
		if visited[ep] {
			continue
		}
		visited[ep] = true
		c := hnswCandidate{row: ep, dist: h.distance(vec, h.vectors[ep])}
		heap.Push(candidates, c)
		results = append(results, c)
	}

	for candidates.Len() > 0 {
		cur := heap.Pop(candidates).(hnswCandidate)
		worst := worstOf(results)
		if len(results) >= ef && cur.dist > worst {
			break
		}
		if lc < len(h.neighbors[cur.row]) {
			for _, n := range h.neighbors[cur.row][lc] {
				if visited[int(n)] {
					continue
				}
				visited[int(n)] = true
				d := h.distance(vec, h.vectors[n])
				if len(results) < ef || d < worstOf(results) {
					c := hnswCandidate{row: int(n), dist: d}
					heap.Push(candidates, c)
					results = append(results, c)
					if len(results) > ef {
						sort.Slice(results, func(i, j int) bool { return results[i].dist < results[j].dist })
						results = results[:ef]
					}
				}
			}
		}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].dist < results[j].dist })
	return results
}

func worstOf(results []hnswCandidate) float64 {
	worst := math.Inf(-1)
	for _, r := range results {
		if r.dist > worst {
			worst = r.dist
		}
	}
	return worst
}

// Search returns up to k approximate nearest neighbors ranked by the metric.
func (h *HNSWIndex) Search(ctx context.Context, query []float32, k int) ([]Result, error) {
	if err := checkDim(h.dimensions, query); err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if k <= 0 || len(h.vectors) == 0 {
		return nil, nil
	}

	ep := h.entryPoint
	for lc := h.maxLevel; lc > 0; lc-- {
		ep = h.greedyClosest(query, ep, lc)
	}
	ef := h.config.EfSearch
	if ef < k {
		ef = k
	}
	candidates := h.searchLayer(query, []int{ep}, ef, 0)
	if k > len(candidates) {
		k = len(candidates)
	}
	results := make([]Result, k)
	for i := 0; i < k; i++ {
		results[i] = Result{
			Row:   candidates[i].row,
			Score: h.metric.Score(query, h.vectors[candidates[i].row]),
		}
	}
	return results, nil
}

// Vector returns a copy of the stored vector at row.
func (h *HNSWIndex) Vector(row int) ([]float32, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if row < 0 || row >= len(h.vectors) {
		return nil, fmt.Errorf("row %d out of range [0,%d)", row, len(h.vectors))
	}
	out := make([]float32, h.dimensions)
	copy(out, h.vectors[row])
	return out, nil
}

// Rows returns the number of vectors in the index.
func (h *HNSWIndex) Rows() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.vectors)
}

// Dimensions returns the vector dimensionality.
func (h *HNSWIndex) Dimensions() int {
	return h.dimensions
}

// Metric returns the ranking metric.
func (h *HNSWIndex) Metric() Metric {
	return h.metric
}

// hnswArtifact is the gob payload following the common header.
type hnswArtifact struct {
	Vectors    [][]float32
	Levels     []int
	Neighbors  [][][]int32
	EntryPoint int
	MaxLevel   int
	Config     HNSWConfig
}

// Save writes the common header followed by the gob-encoded graph.
func (h *HNSWIndex) Save(path string) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	fh, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	defer fh.Close()
	w := bufio.NewWriter(fh)
	if err := writeHeader(w, StrategyHNSW, h.metric, h.dimensions, len(h.vectors)); err != nil {
		return err
	}
	art := hnswArtifact{
		Vectors:    h.vectors,
		Levels:     h.levels,
		Neighbors:  h.neighbors,
		EntryPoint: h.entryPoint,
		MaxLevel:   h.maxLevel,
		Config:     h.config,
	}
	if err := gob.NewEncoder(w).Encode(&art); err != nil {
		return fmt.Errorf("encode graph: %w", err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush index file: %w", err)
	}
	return nil
}

func loadHNSW(r *bufio.Reader, hdr *artifactHeader) (*HNSWIndex, error) {
	var art hnswArtifact
	if err := gob.NewDecoder(r).Decode(&art); err != nil {
		return nil, fmt.Errorf("decode graph: %w", err)
	}
	if len(art.Vectors) != hdr.count {
		return nil, fmt.Errorf("graph count %d disagrees with header %d", len(art.Vectors), hdr.count)
	}
	idx, err := NewHNSWIndex(hdr.dim, hdr.metric, art.Config)
	if err != nil {
		return nil, err
	}
	idx.vectors = art.Vectors
	idx.levels = art.Levels
	idx.neighbors = art.Neighbors
	idx.entryPoint = art.EntryPoint
	idx.maxLevel = art.MaxLevel
	return idx, nil
}

// Close is a no-op for HNSWIndex.
func (h *HNSWIndex) Close() error {
	return nil
}
