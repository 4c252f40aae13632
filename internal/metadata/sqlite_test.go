package metadata

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/mk-mkone/multimodal-retrieval-system/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "documents.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })

	ctx := context.Background()
	docs := []*models.DocumentMeta{
		{DocumentID: "A", Modality: "text", Source: "arxiv", Year: 2019, Method: "dft", Title: "Perovskite stability"},
		{DocumentID: "B", Modality: "text", Source: "arxiv", Year: 2022, Method: "md", Title: "Cathode dynamics"},
		{DocumentID: "C", Modality: "simulation", Source: "nomad", Year: 2021, Method: "dft", Title: "Band structure run"},
	}
	for _, d := range docs {
		if err := s.Put(ctx, d); err != nil {
			t.Fatal(err)
		}
	}
	return s
}

func TestFilter_NoPredicates(t *testing.T) {
	s := newTestStore(t)
	got, err := s.Filter(context.Background(), []string{"A", "B", "Z"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Errorf("expected 2 known candidates, got %d", len(got))
	}
	if got["A"].Title != "Perovskite stability" {
		t.Errorf("hydrated title = %q", got["A"].Title)
	}
}

func TestFilter_YearRange(t *testing.T) {
	s := newTestStore(t)
	filters := &models.SearchFilters{YearFrom: 2020, YearTo: 2022}
	got, err := s.Filter(context.Background(), []string{"A", "B", "C"}, filters)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got["A"] != nil {
		t.Errorf("year filter kept %v", got)
	}
}

func TestFilter_Method(t *testing.T) {
	s := newTestStore(t)
	filters := &models.SearchFilters{Method: "dft"}
	got, err := s.Filter(context.Background(), []string{"A", "B", "C"}, filters)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got["B"] != nil {
		t.Errorf("method filter kept %v", got)
	}
}

func TestFilter_EmptyCandidates(t *testing.T) {
	s := newTestStore(t)
	got, err := s.Filter(context.Background(), nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty result, got %v", got)
	}
}

func TestGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	m, err := s.Get(ctx, "C")
	if err != nil {
		t.Fatal(err)
	}
	if m == nil || m.Source != "nomad" {
		t.Errorf("Get(C) = %+v", m)
	}
	unknown, err := s.Get(ctx, "nope")
	if err != nil {
		t.Fatal(err)
	}
	if unknown != nil {
		t.Errorf("unknown document should return nil, got %+v", unknown)
	}
}

func TestCountDocuments(t *testing.T) {
	s := newTestStore(t)
	n, err := s.CountDocuments(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("count = %d", n)
	}
}
