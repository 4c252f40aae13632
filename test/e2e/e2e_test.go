package e2e

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/mk-mkone/multimodal-retrieval-system/internal/builder"
	"github.com/mk-mkone/multimodal-retrieval-system/internal/config"
	"github.com/mk-mkone/multimodal-retrieval-system/internal/encoder"
	"github.com/mk-mkone/multimodal-retrieval-system/internal/manifest"
	"github.com/mk-mkone/multimodal-retrieval-system/internal/metadata"
	"github.com/mk-mkone/multimodal-retrieval-system/internal/models"
	"github.com/mk-mkone/multimodal-retrieval-system/internal/registry"
	"github.com/mk-mkone/multimodal-retrieval-system/internal/search"
	"github.com/mk-mkone/multimodal-retrieval-system/internal/vector"
)

const (
	e2eDimensions = 16
	e2eModel      = "minilm-e2e"
	e2eCorpusSize = 60
	e2ePartRows   = 25
)

type pipeline struct {
	reg      *registry.Registry
	executor *search.Executor
	builder  *builder.Builder
	store    *metadata.SQLiteStore
	enc      *encoder.MockEncoder
	embRoot  string
	partSeq  int
}

// newPipeline assembles the services the way the server binary does, with a
// deterministic mock encoder shared by ingestion and querying.
func newPipeline(t *testing.T) *pipeline {
	t.Helper()
	embRoot := t.TempDir()
	reg, err := registry.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	store, err := metadata.NewSQLiteStore(filepath.Join(t.TempDir(), "documents.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })

	enc := encoder.NewMockEncoder(e2eDimensions)
	adapter := encoder.NewAdapter()
	adapter.Register(models.ModalityText, enc)

	cfg := &config.SearchConfig{
		DefaultTopK:           10,
		MaxTopK:               1000,
		DefaultPageSize:       10,
		MaxPageSize:           100,
		CollaboratorTimeoutMS: 5000,
		ValidateSample:        16,
	}
	return &pipeline{
		reg:      reg,
		executor: search.NewExecutor(reg, adapter, store, cfg),
		builder:  builder.NewBuilder(embRoot, reg),
		store:    store,
		enc:      enc,
		embRoot:  embRoot,
	}
}

// dropEmbeddings writes the corpus as partitioned embedding files and fills
// the metadata store, the way an upstream embedding job would.
func (p *pipeline) dropEmbeddings(t *testing.T, corpus *Corpus) {
	t.Helper()
	ctx := context.Background()
	w := manifest.NewWriter(p.embRoot)
	var rows []manifest.Row
	flush := func() {
		if len(rows) == 0 {
			return
		}
		name := fmt.Sprintf("part-%03d", p.partSeq)
		if _, err := w.WritePart(models.ModalityText, e2eModel, name, vector.MetricIP, rows); err != nil {
			t.Fatal(err)
		}
		p.partSeq++
		rows = nil
	}
	for i := range corpus.Documents {
		doc := &corpus.Documents[i]
		vec, err := p.enc.Encode(ctx, doc.Phrase)
		if err != nil {
			t.Fatal(err)
		}
		rows = append(rows, manifest.Row{DocumentID: doc.ID, Vector: vec})
		if len(rows) == e2ePartRows {
			flush()
		}
		if err := p.store.Put(ctx, doc.Meta()); err != nil {
			t.Fatal(err)
		}
	}
	flush()
}

func (p *pipeline) build(t *testing.T, strategy string) *models.BuildReport {
	t.Helper()
	report, err := p.builder.Build(context.Background(), &models.BuildRequest{
		Modality: models.ModalityText,
		Model:    e2eModel,
		Strategy: strategy,
	})
	if err != nil {
		t.Fatal(err)
	}
	return report
}

func TestE2E_BuildAndSearch(t *testing.T) {
	p := newPipeline(t)
	corpus := BuildCorpus(e2eCorpusSize)
	p.dropEmbeddings(t, corpus)

	report := p.build(t, "")
	if report.VectorsIndexed != e2eCorpusSize {
		t.Fatalf("vectors indexed = %d, want %d", report.VectorsIndexed, e2eCorpusSize)
	}

	ctx := context.Background()
	for _, tc := range corpus.TestCases {
		t.Run(tc.Description, func(t *testing.T) {
			resp, err := p.executor.Search(ctx, &models.SearchRequest{
				Modality: models.ModalityText,
				Model:    e2eModel,
				Query:    tc.Query,
				TopK:     5,
			})
			if err != nil {
				t.Fatalf("search failed: %v", err)
			}
			if len(resp.Results) == 0 {
				t.Fatal("no results")
			}
			top := resp.Results[0]
			if top.DocumentID != tc.ExpectedID {
				t.Errorf("query %q: top hit = %s, want %s", tc.Query, top.DocumentID, tc.ExpectedID)
			}
			if top.Title == "" || top.Year == 0 {
				t.Errorf("query %q: hit not hydrated: %+v", tc.Query, top)
			}
		})
	}
}

func TestE2E_FilteredSearch(t *testing.T) {
	p := newPipeline(t)
	corpus := BuildCorpus(e2eCorpusSize)
	p.dropEmbeddings(t, corpus)
	p.build(t, "")

	tc := corpus.TestCases[0]
	expected := &corpus.Documents[0]

	ctx := context.Background()
	resp, err := p.executor.Search(ctx, &models.SearchRequest{
		Modality: models.ModalityText,
		Model:    e2eModel,
		Query:    tc.Query,
		TopK:     e2eCorpusSize,
		Size:     e2eCorpusSize,
		Filters: &models.SearchFilters{
			YearFrom: expected.Year,
			YearTo:   expected.Year,
			Method:   expected.Method,
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Results) == 0 {
		t.Fatal("no results after filtering")
	}
	if resp.Results[0].DocumentID != expected.ID {
		t.Errorf("top filtered hit = %s, want %s", resp.Results[0].DocumentID, expected.ID)
	}
	for _, hit := range resp.Results {
		if hit.Year != expected.Year {
			t.Errorf("hit %s has year %d outside filter", hit.DocumentID, hit.Year)
		}
		if hit.Method != expected.Method {
			t.Errorf("hit %s has method %s outside filter", hit.DocumentID, hit.Method)
		}
	}
	if resp.Total >= e2eCorpusSize {
		t.Errorf("filter did not reduce candidates: total=%d", resp.Total)
	}
}

func TestE2E_HNSWStrategy(t *testing.T) {
	p := newPipeline(t)
	corpus := BuildCorpus(e2eCorpusSize)
	p.dropEmbeddings(t, corpus)
	p.build(t, string(vector.StrategyHNSW))

	ctx := context.Background()
	hits := 0
	for _, tc := range corpus.TestCases {
		resp, err := p.executor.Search(ctx, &models.SearchRequest{
			Modality: models.ModalityText,
			Model:    e2eModel,
			Query:    tc.Query,
			TopK:     5,
		})
		if err != nil {
			t.Fatalf("search failed: %v", err)
		}
		for _, hit := range resp.Results {
			if hit.DocumentID == tc.ExpectedID {
				hits++
				break
			}
		}
	}
	// An exact-match query vector should almost always be retrieved.
	if hits < len(corpus.TestCases)*9/10 {
		t.Errorf("hnsw recall too low: %d/%d queries found their document", hits, len(corpus.TestCases))
	}
}

func TestE2E_RepublishIsVisible(t *testing.T) {
	p := newPipeline(t)
	corpus := BuildCorpus(20)
	p.dropEmbeddings(t, corpus)
	first := p.build(t, "")

	// A second drop extends the corpus; rebuilding must serve the new size.
	more := BuildCorpus(40)
	extra := &Corpus{Documents: more.Documents[20:]}
	p.dropEmbeddings(t, extra)
	second := p.build(t, "")

	if second.BuildID == first.BuildID {
		t.Error("rebuild reused the previous build id")
	}
	if second.VectorsIndexed != 40 {
		t.Fatalf("vectors indexed after republish = %d, want 40", second.VectorsIndexed)
	}

	resp, err := p.executor.Search(context.Background(), &models.SearchRequest{
		Modality: models.ModalityText,
		Model:    e2eModel,
		Query:    more.Documents[30].Phrase,
		TopK:     3,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Results) == 0 || resp.Results[0].DocumentID != more.Documents[30].ID {
		t.Errorf("new document not served after republish: %+v", resp.Results)
	}
}
