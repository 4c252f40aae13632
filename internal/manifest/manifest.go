// Package manifest reads and writes embedding partition sets and their
// manifest descriptor.
package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mk-mkone/multimodal-retrieval-system/internal/vector"
)

// ManifestFileName is the descriptor file inside each (modality, model) directory.
const ManifestFileName = "manifest.json"

var (
	// ErrNotFound is returned when no manifest exists for a (modality, model) pair.
	ErrNotFound = errors.New("manifest not found")
	// ErrCorrupt is returned when the manifest disagrees with its partition
	// files (row-count mismatch, missing partition, dimensionality disagreement).
	ErrCorrupt = errors.New("manifest corrupt")
)

// Partition is one embedding partition file and its declared row count.
type Partition struct {
	Path     string `json:"path"`
	RowCount int    `json:"row_count"`
}

// Manifest describes an embedding partition set for one (modality, model) pair.
type Manifest struct {
	Modality       string        `json:"modality"`
	ModelID        string        `json:"model_id"`
	Dimensionality int           `json:"dimensionality"`
	Metric         vector.Metric `json:"metric"`
	VectorCount    int           `json:"vector_count"`
	Partitions     []Partition   `json:"partitions"`

	// dir is the directory the manifest was read from; partition paths are
	// resolved relative to it.
	dir string
}

// Dir returns the directory the manifest was loaded from.
func (m *Manifest) Dir() string {
	return m.dir
}

// PartitionPath resolves a partition's path against the manifest directory.
func (m *Manifest) PartitionPath(p Partition) string {
	if filepath.IsAbs(p.Path) {
		return p.Path
	}
	return filepath.Join(m.dir, p.Path)
}

// Read loads and validates the manifest for (modality, model) under root.
// Every declared partition file must exist and its own header must agree with
// the declared row count and the manifest dimensionality before totals are
// trusted. Read-only; no side effects.
func Read(root, modality, modelID string) (*Manifest, error) {
	dir := filepath.Join(root, modality, modelID)
	path := filepath.Join(dir, ManifestFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: invalid json: %v", ErrCorrupt, err)
	}
	m.dir = dir

	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Manifest) validate() error {
	if m.Modality == "" || m.ModelID == "" {
		return fmt.Errorf("%w: missing modality or model_id", ErrCorrupt)
	}
	if m.Dimensionality <= 0 {
		return fmt.Errorf("%w: dimensionality must be positive, got %d", ErrCorrupt, m.Dimensionality)
	}
	if !m.Metric.Valid() {
		return fmt.Errorf("%w: unsupported metric %q", ErrCorrupt, m.Metric)
	}

	total := 0
	for _, p := range m.Partitions {
		path := m.PartitionPath(p)
		hdr, err := ReadPartitionHeader(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("%w: partition file missing: %s", ErrCorrupt, path)
			}
			return fmt.Errorf("%w: partition %s: %v", ErrCorrupt, p.Path, err)
		}
		if hdr.RowCount != p.RowCount {
			return fmt.Errorf("%w: partition %s declares %d rows, file has %d",
				ErrCorrupt, p.Path, p.RowCount, hdr.RowCount)
		}
		if hdr.Dimensions != m.Dimensionality {
			return fmt.Errorf("%w: partition %s has dimensionality %d, manifest declares %d",
				ErrCorrupt, p.Path, hdr.Dimensions, m.Dimensionality)
		}
		total += p.RowCount
	}
	if total != m.VectorCount {
		return fmt.Errorf("%w: partition rows sum to %d, manifest declares vector_count %d",
			ErrCorrupt, total, m.VectorCount)
	}
	return nil
}
