package search

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/mk-mkone/multimodal-retrieval-system/internal/config"
	"github.com/mk-mkone/multimodal-retrieval-system/internal/encoder"
	"github.com/mk-mkone/multimodal-retrieval-system/internal/metadata"
	"github.com/mk-mkone/multimodal-retrieval-system/internal/models"
	"github.com/mk-mkone/multimodal-retrieval-system/internal/registry"
	"github.com/mk-mkone/multimodal-retrieval-system/internal/vector"
)

func testConfig() *config.SearchConfig {
	return &config.SearchConfig{
		DefaultTopK:           10,
		MaxTopK:               1000,
		DefaultPageSize:       10,
		MaxPageSize:           100,
		CollaboratorTimeoutMS: 5000,
		ValidateSample:        16,
	}
}

// publishIndex writes an artifact pair and publishes it for (modality, model).
func publishIndex(t *testing.T, reg *registry.Registry, modality, model string, metric vector.Metric, ids []string, vecs [][]float32) {
	t.Helper()
	idx, err := vector.NewFlatIndex(len(vecs[0]), metric)
	if err != nil {
		t.Fatal(err)
	}
	if err := idx.Add(vecs); err != nil {
		t.Fatal(err)
	}
	dir := filepath.Join(reg.Root(), modality, model)
	indexPath := filepath.Join(dir, "index.bin")
	idsPath := filepath.Join(dir, "ids.bin")
	if err := idx.Save(indexPath); err != nil {
		t.Fatal(err)
	}
	if err := registry.WriteIDs(idsPath, ids); err != nil {
		t.Fatal(err)
	}
	entry := &registry.Entry{
		Modality:       modality,
		ModelID:        model,
		Dimensionality: len(vecs[0]),
		Metric:         metric,
		IndexLocation:  indexPath,
		IDsLocation:    idsPath,
		VectorCount:    len(ids),
		BuildTimestamp: time.Now().UTC(),
	}
	if err := reg.Publish(entry); err != nil {
		t.Fatal(err)
	}
}

func newTestExecutor(t *testing.T, store metadata.FilterStore) (*Executor, *registry.Registry) {
	t.Helper()
	reg, err := registry.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	adapter := encoder.NewAdapter()
	adapter.Register(models.ModalityText, encoder.NewMockEncoder(4))
	return NewExecutor(reg, adapter, store, testConfig()), reg
}

func TestSearch_RankedInnerProduct(t *testing.T) {
	e, reg := newTestExecutor(t, nil)
	publishIndex(t, reg, "text", "minilm", vector.MetricIP,
		[]string{"A", "B", "C"},
		[][]float32{{1, 0, 0, 0}, {0, 1, 0, 0}, {0.9, 0.1, 0, 0}})

	resp, err := e.Search(context.Background(), &models.SearchRequest{
		Modality: "text",
		Model:    "minilm",
		Vector:   []float32{1, 0, 0, 0},
		TopK:     2,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Results) != 2 {
		t.Fatalf("results = %d", len(resp.Results))
	}
	if resp.Results[0].DocumentID != "A" || math.Abs(resp.Results[0].Score-1.0) > 1e-6 {
		t.Errorf("top hit = %+v", resp.Results[0])
	}
	if resp.Results[1].DocumentID != "C" || math.Abs(resp.Results[1].Score-0.9) > 1e-6 {
		t.Errorf("second hit = %+v", resp.Results[1])
	}
	if resp.Results[0].Rank != 1 || resp.Results[1].Rank != 2 {
		t.Errorf("ranks = %d, %d", resp.Results[0].Rank, resp.Results[1].Rank)
	}
}

func TestSearch_UnknownIndex(t *testing.T) {
	e, _ := newTestExecutor(t, nil)
	_, err := e.Search(context.Background(), &models.SearchRequest{
		Modality: "timeseries",
		Model:    "nonexistent",
		Vector:   []float32{1, 0, 0, 0},
	})
	if !errors.Is(err, registry.ErrUnknownIndex) {
		t.Errorf("expected ErrUnknownIndex, got %v", err)
	}
}

func TestSearch_InvalidQueryVector(t *testing.T) {
	e, reg := newTestExecutor(t, nil)
	publishIndex(t, reg, "text", "minilm", vector.MetricIP,
		[]string{"A"}, [][]float32{{1, 0, 0, 0}})

	_, err := e.Search(context.Background(), &models.SearchRequest{
		Modality: "text",
		Model:    "minilm",
		Vector:   []float32{1, 0, 0},
	})
	if !errors.Is(err, encoder.ErrInvalidQueryVector) {
		t.Errorf("expected ErrInvalidQueryVector, got %v", err)
	}
}

func TestSearch_EncodedQuery(t *testing.T) {
	e, reg := newTestExecutor(t, nil)
	publishIndex(t, reg, "text", "minilm", vector.MetricIP,
		[]string{"A", "B"}, [][]float32{{1, 0, 0, 0}, {0, 1, 0, 0}})

	resp, err := e.Search(context.Background(), &models.SearchRequest{
		Modality: "text",
		Model:    "minilm",
		Query:    "perovskite solar absorber",
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Results) != 2 {
		t.Errorf("results = %d", len(resp.Results))
	}
}

func TestSearch_TieBreakByDocumentID(t *testing.T) {
	e, reg := newTestExecutor(t, nil)
	// Identical vectors: scores tie exactly, ids decide.
	publishIndex(t, reg, "text", "minilm", vector.MetricIP,
		[]string{"zeta", "alpha", "mid"},
		[][]float32{{1, 0, 0, 0}, {1, 0, 0, 0}, {1, 0, 0, 0}})

	resp, err := e.Search(context.Background(), &models.SearchRequest{
		Modality: "text",
		Model:    "minilm",
		Vector:   []float32{1, 0, 0, 0},
		TopK:     3,
	})
	if err != nil {
		t.Fatal(err)
	}
	got := []string{resp.Results[0].DocumentID, resp.Results[1].DocumentID, resp.Results[2].DocumentID}
	want := []string{"alpha", "mid", "zeta"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("tie-break order = %v, want %v", got, want)
			break
		}
	}
}

func TestSearch_PaginationLaw(t *testing.T) {
	e, reg := newTestExecutor(t, nil)
	n := 9
	ids := make([]string, n)
	vecs := make([][]float32, n)
	for i := 0; i < n; i++ {
		ids[i] = fmt.Sprintf("doc-%02d", i)
		vecs[i] = []float32{1 - float32(i)*0.05, float32(i) * 0.05, 0, 0}
	}
	publishIndex(t, reg, "text", "minilm", vector.MetricIP, ids, vecs)

	full, err := e.Search(context.Background(), &models.SearchRequest{
		Modality: "text", Model: "minilm", Vector: []float32{1, 0, 0, 0},
		TopK: n, Size: n,
	})
	if err != nil {
		t.Fatal(err)
	}

	var paged []string
	for page := 1; page <= 3; page++ {
		resp, err := e.Search(context.Background(), &models.SearchRequest{
			Modality: "text", Model: "minilm", Vector: []float32{1, 0, 0, 0},
			TopK: n, Page: page, Size: 3,
		})
		if err != nil {
			t.Fatal(err)
		}
		if resp.Total != n {
			t.Errorf("page %d total = %d, want %d", page, resp.Total, n)
		}
		for _, r := range resp.Results {
			paged = append(paged, r.DocumentID)
		}
	}
	if len(paged) != len(full.Results) {
		t.Fatalf("concatenated pages = %d results, unpaginated = %d", len(paged), len(full.Results))
	}
	for i, r := range full.Results {
		if paged[i] != r.DocumentID {
			t.Errorf("position %d: paged %s vs full %s", i, paged[i], r.DocumentID)
		}
	}
}

func metadataFixture(t *testing.T) *metadata.SQLiteStore {
	t.Helper()
	s, err := metadata.NewSQLiteStore(filepath.Join(t.TempDir(), "documents.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })
	ctx := context.Background()
	docs := []*models.DocumentMeta{
		{DocumentID: "A", Modality: "text", Source: "arxiv", Year: 2018, Method: "dft", Title: "Old paper"},
		{DocumentID: "B", Modality: "text", Source: "arxiv", Year: 2023, Method: "md", Title: "New paper"},
		{DocumentID: "C", Modality: "text", Source: "arxiv", Year: 2024, Method: "dft", Title: "Newest paper"},
	}
	for _, d := range docs {
		if err := s.Put(ctx, d); err != nil {
			t.Fatal(err)
		}
	}
	return s
}

func TestSearch_FilterPreservesRankOrder(t *testing.T) {
	store := metadataFixture(t)
	e, reg := newTestExecutor(t, store)
	publishIndex(t, reg, "text", "minilm", vector.MetricIP,
		[]string{"A", "B", "C"},
		[][]float32{{1, 0, 0, 0}, {0.95, 0.05, 0, 0}, {0.9, 0.1, 0, 0}})

	resp, err := e.Search(context.Background(), &models.SearchRequest{
		Modality: "text",
		Model:    "minilm",
		Vector:   []float32{1, 0, 0, 0},
		TopK:     3,
		Filters:  &models.SearchFilters{Method: "dft"},
	})
	if err != nil {
		t.Fatal(err)
	}
	// B (md) drops; A and C keep their relative order from the unfiltered list.
	if resp.Total != 2 || len(resp.Results) != 2 {
		t.Fatalf("total=%d results=%d", resp.Total, len(resp.Results))
	}
	if resp.Results[0].DocumentID != "A" || resp.Results[1].DocumentID != "C" {
		t.Errorf("filtered order = %s, %s", resp.Results[0].DocumentID, resp.Results[1].DocumentID)
	}
	if resp.Results[0].Title != "Old paper" {
		t.Errorf("hydrated title = %q", resp.Results[0].Title)
	}
}

func TestSearch_PartialResultWarning(t *testing.T) {
	store := metadataFixture(t)
	e, reg := newTestExecutor(t, store)
	// 6 vectors in the index; only A/B/C are known to the store and only two
	// survive the method filter. Fetch is capped below the index size.
	ids := []string{"A", "B", "C", "D", "E", "F"}
	vecs := [][]float32{
		{1, 0, 0, 0}, {0.95, 0.05, 0, 0}, {0.9, 0.1, 0, 0},
		{0.85, 0.15, 0, 0}, {0.8, 0.2, 0, 0}, {0.75, 0.25, 0, 0},
	}
	publishIndex(t, reg, "text", "minilm", vector.MetricIP, ids, vecs)

	resp, err := e.Search(context.Background(), &models.SearchRequest{
		Modality: "text",
		Model:    "minilm",
		Vector:   []float32{1, 0, 0, 0},
		TopK:     4,
		Page:     1,
		Size:     5,
		Filters:  &models.SearchFilters{Method: "dft"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Total != 2 {
		t.Errorf("total = %d", resp.Total)
	}
	if len(resp.Warnings) == 0 {
		t.Error("expected a partial_result warning")
	}
}

type slowStore struct{}

func (s *slowStore) Filter(ctx context.Context, candidates []string, filters *models.SearchFilters) (map[string]*models.DocumentMeta, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}
func (s *slowStore) Get(ctx context.Context, id string) (*models.DocumentMeta, error) {
	return nil, nil
}
func (s *slowStore) CountDocuments(ctx context.Context) (int64, error) { return 0, nil }
func (s *slowStore) Close() error                                      { return nil }

func TestSearch_FilterStoreTimeout(t *testing.T) {
	e, reg := newTestExecutor(t, &slowStore{})
	e.cfg.CollaboratorTimeoutMS = 20
	publishIndex(t, reg, "text", "minilm", vector.MetricIP,
		[]string{"A"}, [][]float32{{1, 0, 0, 0}})

	_, err := e.Search(context.Background(), &models.SearchRequest{
		Modality: "text",
		Model:    "minilm",
		Vector:   []float32{1, 0, 0, 0},
		Filters:  &models.SearchFilters{Method: "dft"},
	})
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("expected ErrTimeout, got %v", err)
	}
}

func TestSearch_FiltersWithoutStore(t *testing.T) {
	e, reg := newTestExecutor(t, nil)
	publishIndex(t, reg, "text", "minilm", vector.MetricIP,
		[]string{"A"}, [][]float32{{1, 0, 0, 0}})

	_, err := e.Search(context.Background(), &models.SearchRequest{
		Modality: "text",
		Model:    "minilm",
		Vector:   []float32{1, 0, 0, 0},
		Filters:  &models.SearchFilters{Method: "dft"},
	})
	if !errors.Is(err, metadata.ErrStoreUnavailable) {
		t.Errorf("expected ErrStoreUnavailable, got %v", err)
	}
}
