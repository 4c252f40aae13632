// Package builder constructs similarity indices from embedding manifests and
// publishes them through the registry.
package builder

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mk-mkone/multimodal-retrieval-system/internal/manifest"
	"github.com/mk-mkone/multimodal-retrieval-system/internal/models"
	"github.com/mk-mkone/multimodal-retrieval-system/internal/registry"
	"github.com/mk-mkone/multimodal-retrieval-system/internal/validate"
	"github.com/mk-mkone/multimodal-retrieval-system/internal/vector"
)

const addBatchSize = 1024

// Builder builds index artifacts from embedding partitions. Builds run to a
// staging directory and never touch the currently published artifact set;
// only the publish step takes the per-key lock.
type Builder struct {
	embRoot        string
	reg            *registry.Registry
	validateSample int
	logger         *zap.Logger
}

// Option configures a Builder.
type Option func(*Builder)

// WithLogger sets a logger for build progress output.
func WithLogger(l *zap.Logger) Option {
	return func(b *Builder) { b.logger = l }
}

// WithValidateSample sets the finiteness spot-check sample size (default 16).
func WithValidateSample(n int) Option {
	return func(b *Builder) { b.validateSample = n }
}

// NewBuilder creates a builder reading embeddings from embRoot and publishing
// into reg.
func NewBuilder(embRoot string, reg *registry.Registry, opts ...Option) *Builder {
	b := &Builder{
		embRoot:        embRoot,
		reg:            reg,
		validateSample: 16,
		logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build reads the manifest for (modality, model), streams its partitions in
// declared order into a fresh index with the identifier array appended in
// lock-step, validates the pair, and publishes atomically. A failure at any
// stage leaves the previously published entry untouched.
func (b *Builder) Build(ctx context.Context, req *models.BuildRequest) (*models.BuildReport, error) {
	start := time.Now()
	buildID := uuid.New().String()

	embRoot := req.EmbRoot
	if embRoot == "" {
		embRoot = b.embRoot
	}
	outRoot := req.OutDir
	if outRoot == "" {
		outRoot = b.reg.Root()
	}

	m, err := manifest.Read(embRoot, req.Modality, req.Model)
	if err != nil {
		return nil, err
	}

	// One build per (modality, model) at a time; concurrent callers wait.
	lock := flock.New(filepath.Join(outRoot, req.Modality+"-"+req.Model+".build.lock"))
	locked, err := lock.TryLockContext(ctx, 100*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("acquire build lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("build lock unavailable for %s/%s", req.Modality, req.Model)
	}
	defer func() { _ = lock.Unlock() }()

	b.logger.Info("build started",
		zap.String("build_id", buildID),
		zap.String("modality", req.Modality),
		zap.String("model", req.Model),
		zap.Int("vector_count", m.VectorCount))

	idx, err := vector.NewIndex(req.Strategy, m.Dimensionality, m.Metric)
	if err != nil {
		return nil, err
	}
	defer idx.Close()

	ids, err := b.ingest(ctx, m, idx)
	if err != nil {
		return nil, err
	}

	want := validate.Expect{
		Dimensionality: m.Dimensionality,
		Metric:         m.Metric,
		VectorCount:    m.VectorCount,
	}
	if err := validate.Full(idx, ids, want, b.validateSample); err != nil {
		return nil, fmt.Errorf("build validation failed: %w", err)
	}

	entry, err := b.stageAndPublish(buildID, req, m, idx, ids, outRoot)
	if err != nil {
		return nil, err
	}

	report := &models.BuildReport{
		BuildID:        buildID,
		Modality:       req.Modality,
		Model:          req.Model,
		VectorsIndexed: len(ids),
		Dimensionality: m.Dimensionality,
		Metric:         string(m.Metric),
		Duration:       time.Since(start),
	}
	b.logger.Info("build published",
		zap.String("build_id", buildID),
		zap.String("key", entry.Key()),
		zap.Int("vectors", report.VectorsIndexed),
		zap.Duration("duration", report.Duration))
	return report, nil
}

// ingest streams every partition in declared order, adding vectors in batches
// and appending document ids in lock-step.
func (b *Builder) ingest(ctx context.Context, m *manifest.Manifest, idx vector.Index) ([]string, error) {
	ids := make([]string, 0, m.VectorCount)
	batch := make([][]float32, 0, addBatchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := idx.Add(batch); err != nil {
			return err
		}
		batch = batch[:0]
		return nil
	}

	for _, p := range m.Partitions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pr, err := manifest.OpenPartition(m.PartitionPath(p))
		if err != nil {
			return nil, err
		}
		for {
			row, err := pr.Next()
			if err == io.EOF {
				break
			}
			if err != nil {
				_ = pr.Close()
				return nil, fmt.Errorf("partition %s: %w", p.Path, err)
			}
			ids = append(ids, row.DocumentID)
			batch = append(batch, row.Vector)
			if len(batch) == addBatchSize {
				if err := flush(); err != nil {
					_ = pr.Close()
					return nil, err
				}
			}
		}
		if err := pr.Close(); err != nil {
			return nil, err
		}
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return ids, nil
}

// stageAndPublish writes the artifact pair to a staging directory, moves it
// into a fresh versioned location, and publishes the registry entry. The old
// artifact set is removed best-effort after the swap.
func (b *Builder) stageAndPublish(buildID string, req *models.BuildRequest, m *manifest.Manifest, idx vector.Index, ids []string, outRoot string) (*registry.Entry, error) {
	staging := filepath.Join(outRoot, ".staging", buildID)
	if err := os.MkdirAll(staging, 0755); err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	defer os.RemoveAll(staging)

	stagedIndex := filepath.Join(staging, "index.bin")
	stagedIDs := filepath.Join(staging, "ids.bin")
	if err := idx.Save(stagedIndex); err != nil {
		return nil, err
	}
	if err := registry.WriteIDs(stagedIDs, ids); err != nil {
		return nil, err
	}

	finalDir := filepath.Join(outRoot, req.Modality, req.Model, buildID)
	if err := os.MkdirAll(filepath.Dir(finalDir), 0755); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}
	if err := os.Rename(staging, finalDir); err != nil {
		return nil, fmt.Errorf("swap artifacts into place: %w", err)
	}

	var previous *registry.Entry
	if prev, err := b.reg.Resolve(req.Modality, req.Model); err == nil {
		previous = prev
	}

	entry := &registry.Entry{
		Modality:       req.Modality,
		ModelID:        req.Model,
		Dimensionality: m.Dimensionality,
		Metric:         m.Metric,
		IndexLocation:  filepath.Join(finalDir, "index.bin"),
		IDsLocation:    filepath.Join(finalDir, "ids.bin"),
		VectorCount:    len(ids),
		BuildTimestamp: time.Now().UTC(),
	}
	if err := b.reg.Publish(entry); err != nil {
		return nil, err
	}

	if previous != nil {
		if old := filepath.Dir(previous.IndexLocation); old != finalDir {
			_ = os.RemoveAll(old)
		}
	}
	return entry, nil
}
