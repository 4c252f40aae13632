// Package search runs similarity queries merged with metadata filtering and
// deterministic pagination.
package search

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/mk-mkone/multimodal-retrieval-system/internal/config"
	"github.com/mk-mkone/multimodal-retrieval-system/internal/encoder"
	"github.com/mk-mkone/multimodal-retrieval-system/internal/metadata"
	"github.com/mk-mkone/multimodal-retrieval-system/internal/models"
	"github.com/mk-mkone/multimodal-retrieval-system/internal/registry"
)

// ErrTimeout is returned when an external collaborator (encoder or metadata
// store) does not answer within the configured timeout.
var ErrTimeout = errors.New("timeout waiting on collaborator")

// DefaultTextModel is assumed when a text request names no model.
const DefaultTextModel = "all-MiniLM-L6-v2"

// Executor resolves, ranks, filters, and paginates search requests. The index
// lookup itself is CPU-bound and runs against an immutable snapshot resolved
// at call start; no lock is held across collaborator waits.
type Executor struct {
	reg     *registry.Registry
	adapter *encoder.Adapter
	store   metadata.FilterStore
	cfg     *config.SearchConfig
	logger  *zap.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets a logger for per-query debug output.
func WithLogger(l *zap.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

// NewExecutor creates an executor. store may be nil when no metadata store is
// configured; filtered queries then fail with the store-unavailable error.
func NewExecutor(reg *registry.Registry, adapter *encoder.Adapter, store metadata.FilterStore, cfg *config.SearchConfig, opts ...Option) *Executor {
	e := &Executor{
		reg:     reg,
		adapter: adapter,
		store:   store,
		cfg:     cfg,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type candidate struct {
	documentID string
	score      float64
	meta       *models.DocumentMeta
}

// Search runs the full query pipeline and returns a deterministically ranked,
// paginated result.
func (e *Executor) Search(ctx context.Context, req *models.SearchRequest) (*models.SearchResponse, error) {
	start := time.Now()
	if req.TopK <= 0 {
		req.TopK = e.cfg.DefaultTopK
	}
	if req.Size <= 0 {
		req.Size = e.cfg.DefaultPageSize
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	e.clamp(req)
	if req.Model == "" && req.Modality == models.ModalityText {
		req.Model = DefaultTextModel
	}

	entry, err := e.reg.Resolve(req.Modality, req.Model)
	if err != nil {
		return nil, err
	}
	handle, err := e.reg.Handle(entry)
	if err != nil {
		return nil, err
	}

	qvec, err := e.queryVector(ctx, req, entry.Dimensionality)
	if err != nil {
		return nil, err
	}

	hits, err := handle.Index.Search(ctx, qvec, req.TopK)
	if err != nil {
		return nil, err
	}

	candidates := make([]candidate, len(hits))
	for i, h := range hits {
		if h.Row < 0 || h.Row >= len(handle.IDs) {
			return nil, fmt.Errorf("%w: row %d outside identifier array of length %d",
				registry.ErrIndexCorruption, h.Row, len(handle.IDs))
		}
		candidates[i] = candidate{documentID: handle.IDs[h.Row], score: h.Score}
	}

	// Exactly equal scores tie-break by document id ascending.
	metric := entry.Metric
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score == candidates[j].score {
			return candidates[i].documentID < candidates[j].documentID
		}
		return metric.Better(candidates[i].score, candidates[j].score)
	})

	filtered, warnings, err := e.applyFilters(ctx, req, candidates, handle.Index.Rows())
	if err != nil {
		return nil, err
	}

	resp := e.paginate(req, filtered, warnings)
	resp.QueryTime = time.Since(start).Milliseconds()

	e.logger.Debug("search done",
		zap.String("modality", req.Modality),
		zap.String("model", req.Model),
		zap.Int("top_k", req.TopK),
		zap.Int("page", req.Page),
		zap.Int("size", req.Size),
		zap.Int("total_after_filters", resp.Total),
		zap.Int64("latency_ms", resp.QueryTime))
	return resp, nil
}

func (e *Executor) clamp(req *models.SearchRequest) {
	if req.TopK > e.cfg.MaxTopK {
		req.TopK = e.cfg.MaxTopK
	}
	if req.Size > e.cfg.MaxPageSize {
		req.Size = e.cfg.MaxPageSize
	}
}

// queryVector returns a validated query vector: the caller-supplied one when
// present, otherwise the encoder adapter's output. Collaborator waits carry a
// request-level timeout.
func (e *Executor) queryVector(ctx context.Context, req *models.SearchRequest, wantDim int) ([]float32, error) {
	if len(req.Vector) > 0 {
		if err := encoder.ValidateVector(req.Vector, wantDim); err != nil {
			return nil, err
		}
		return req.Vector, nil
	}

	encCtx, cancel := context.WithTimeout(ctx, e.cfg.CollaboratorTimeout())
	defer cancel()
	vec, err := e.adapter.EncodeQuery(encCtx, req.Modality, req.Query, wantDim)
	if err != nil {
		if errors.Is(encCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: query encoder", ErrTimeout)
		}
		return nil, err
	}
	return vec, nil
}

// applyFilters resolves metadata for the candidate set. With predicates
// present, non-matching candidates are dropped; rank order among survivors is
// preserved (filtering never re-ranks). Without predicates, every candidate
// survives and known metadata is attached for hydration.
func (e *Executor) applyFilters(ctx context.Context, req *models.SearchRequest, candidates []candidate, indexRows int) ([]candidate, []string, error) {
	hasFilters := !req.Filters.Empty()
	if e.store == nil {
		if hasFilters {
			return nil, nil, fmt.Errorf("%w: filters requested but no store configured", metadata.ErrStoreUnavailable)
		}
		return candidates, nil, nil
	}

	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.documentID
	}

	storeCtx, cancel := context.WithTimeout(ctx, e.cfg.CollaboratorTimeout())
	defer cancel()
	metas, err := e.store.Filter(storeCtx, ids, req.Filters)
	if err != nil {
		if errors.Is(storeCtx.Err(), context.DeadlineExceeded) {
			return nil, nil, fmt.Errorf("%w: metadata store", ErrTimeout)
		}
		return nil, nil, err
	}

	if !hasFilters {
		for i := range candidates {
			candidates[i].meta = metas[candidates[i].documentID]
		}
		return candidates, nil, nil
	}

	kept := make([]candidate, 0, len(candidates))
	for _, c := range candidates {
		if m, ok := metas[c.documentID]; ok {
			c.meta = m
			kept = append(kept, c)
		}
	}

	// Underflow of the requested page is non-fatal. Warn only when a larger
	// top_k could actually have helped.
	var warnings []string
	if len(kept) < req.Page*req.Size && len(candidates) == req.TopK && req.TopK < indexRows {
		warnings = append(warnings, fmt.Sprintf(
			"partial_result: %d candidates survived filtering, page %d needs %d; re-query with a larger top_k",
			len(kept), req.Page, req.Page*req.Size))
	}
	return kept, warnings, nil
}

// paginate clips the filtered list to the requested page. Offset is
// (page-1)*size; ranks are absolute positions in the filtered ranking.
func (e *Executor) paginate(req *models.SearchRequest, filtered []candidate, warnings []string) *models.SearchResponse {
	startIdx := (req.Page - 1) * req.Size
	endIdx := startIdx + req.Size
	if startIdx > len(filtered) {
		startIdx = len(filtered)
	}
	if endIdx > len(filtered) {
		endIdx = len(filtered)
	}

	results := make([]*models.SearchHit, 0, endIdx-startIdx)
	for i := startIdx; i < endIdx; i++ {
		c := filtered[i]
		hit := &models.SearchHit{
			DocumentID: c.documentID,
			Score:      c.score,
			Rank:       i + 1,
		}
		if c.meta != nil {
			hit.Title = c.meta.Title
			hit.Year = c.meta.Year
			hit.Source = c.meta.Source
			hit.Method = c.meta.Method
			hit.Modality = c.meta.Modality
		}
		results = append(results, hit)
	}

	return &models.SearchResponse{
		Results:  results,
		Total:    len(filtered),
		Page:     req.Page,
		Size:     req.Size,
		Warnings: warnings,
	}
}
