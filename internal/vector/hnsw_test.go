package vector

import (
	"context"
	"math"
	"math/rand"
	"path/filepath"
	"testing"
)

func randomUnitVectors(n, dim int, seed int64) [][]float32 {
	rng := rand.New(rand.NewSource(seed))
	vecs := make([][]float32, n)
	for i := range vecs {
		v := make([]float32, dim)
		var sum float64
		for j := range v {
			v[j] = float32(rng.NormFloat64())
			sum += float64(v[j] * v[j])
		}
		norm := float32(1.0 / math.Sqrt(sum))
		for j := range v {
			v[j] *= norm
		}
		vecs[i] = v
	}
	return vecs
}

func TestHNSWIndex_SelfSimilarity(t *testing.T) {
	idx, err := NewHNSWIndex(8, MetricIP, DefaultHNSWConfig())
	if err != nil {
		t.Fatal(err)
	}
	vecs := randomUnitVectors(200, 8, 1)
	if err := idx.Add(vecs); err != nil {
		t.Fatal(err)
	}
	if idx.Rows() != 200 {
		t.Fatalf("Rows=%d", idx.Rows())
	}

	ctx := context.Background()
	for _, row := range []int{0, 57, 199} {
		results, err := idx.Search(ctx, vecs[row], 1)
		if err != nil {
			t.Fatal(err)
		}
		if len(results) == 0 || results[0].Row != row {
			t.Errorf("self-query for row %d returned %+v", row, results)
		}
	}
}

func TestHNSWIndex_RecallAgainstFlat(t *testing.T) {
	vecs := randomUnitVectors(300, 16, 2)
	flat, _ := NewFlatIndex(16, MetricIP)
	_ = flat.Add(vecs)
	hnsw, _ := NewHNSWIndex(16, MetricIP, DefaultHNSWConfig())
	_ = hnsw.Add(vecs)

	ctx := context.Background()
	query := randomUnitVectors(1, 16, 3)[0]
	exact, _ := flat.Search(ctx, query, 10)
	approx, _ := hnsw.Search(ctx, query, 10)

	exactSet := make(map[int]bool)
	for _, r := range exact {
		exactSet[r.Row] = true
	}
	overlap := 0
	for _, r := range approx {
		if exactSet[r.Row] {
			overlap++
		}
	}
	// With EfSearch=100 on 300 vectors, recall should be near-perfect.
	if overlap < 8 {
		t.Errorf("recall too low: %d/10 overlap with exact results", overlap)
	}
}

func TestHNSWIndex_SaveLoad(t *testing.T) {
	vecs := randomUnitVectors(50, 4, 4)
	idx, _ := NewHNSWIndex(4, MetricL2, DefaultHNSWConfig())
	_ = idx.Add(vecs)

	path := filepath.Join(t.TempDir(), "index.bin")
	if err := idx.Save(path); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Rows() != 50 || loaded.Metric() != MetricL2 {
		t.Errorf("loaded: rows=%d metric=%s", loaded.Rows(), loaded.Metric())
	}
	results, err := loaded.Search(context.Background(), vecs[7], 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) == 0 || results[0].Row != 7 {
		t.Errorf("self-query after load returned %+v", results)
	}
}
