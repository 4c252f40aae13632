package manifest

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mk-mkone/multimodal-retrieval-system/internal/vector"
)

// Writer persists embedding partitions under a root directory and maintains
// the manifest. Used by operational tooling and test fixtures; the upstream
// embedding pipeline produces the same layout.
type Writer struct {
	root string
}

// NewWriter creates a writer rooted at root.
func NewWriter(root string) *Writer {
	return &Writer{root: root}
}

// WritePart writes rows as partition {part}.vec for (modality, model) and
// updates the manifest. All parts of one manifest must share dimensionality
// and metric; disagreement is an error before anything is written.
func (w *Writer) WritePart(modality, modelID, part string, metric vector.Metric, rows []Row) (string, error) {
	if len(rows) == 0 {
		return "", fmt.Errorf("no rows to write")
	}
	if !metric.Valid() {
		return "", fmt.Errorf("unsupported metric: %q", metric)
	}
	dim := len(rows[0].Vector)
	for i, r := range rows {
		if len(r.Vector) != dim {
			return "", fmt.Errorf("row %d has dimensionality %d, expected %d", i, len(r.Vector), dim)
		}
	}

	dir := filepath.Join(w.root, modality, modelID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create partition dir: %w", err)
	}

	m, err := w.loadOrInitManifest(dir, modality, modelID, dim, metric)
	if err != nil {
		return "", err
	}

	fileName := part + ".vec"
	out := filepath.Join(dir, fileName)
	if err := writePartitionFile(out, dim, rows); err != nil {
		return "", err
	}

	m.Partitions = append(m.Partitions, Partition{Path: fileName, RowCount: len(rows)})
	m.VectorCount += len(rows)
	if err := writeManifestFile(filepath.Join(dir, ManifestFileName), m); err != nil {
		return "", err
	}
	return out, nil
}

func (w *Writer) loadOrInitManifest(dir, modality, modelID string, dim int, metric vector.Metric) (*Manifest, error) {
	path := filepath.Join(dir, ManifestFileName)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Manifest{
			Modality:       modality,
			ModelID:        modelID,
			Dimensionality: dim,
			Metric:         metric,
			dir:            dir,
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: invalid json: %v", ErrCorrupt, err)
	}
	m.dir = dir
	if m.Dimensionality != dim {
		return nil, fmt.Errorf("manifest has dimensionality %d, new part has %d", m.Dimensionality, dim)
	}
	if m.Metric != metric {
		return nil, fmt.Errorf("manifest has metric %q, new part declares %q", m.Metric, metric)
	}
	return &m, nil
}

func writePartitionFile(path string, dim int, rows []Row) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create partition file: %w", err)
	}
	defer f.Close()
	bw := bufio.NewWriter(f)
	if err := binary.Write(bw, binary.LittleEndian, uint32(dim)); err != nil {
		return fmt.Errorf("write dimensions: %w", err)
	}
	if err := binary.Write(bw, binary.LittleEndian, uint32(len(rows))); err != nil {
		return fmt.Errorf("write count: %w", err)
	}
	for _, r := range rows {
		idBytes := []byte(r.DocumentID)
		if err := binary.Write(bw, binary.LittleEndian, uint32(len(idBytes))); err != nil {
			return fmt.Errorf("write id length: %w", err)
		}
		if _, err := bw.Write(idBytes); err != nil {
			return fmt.Errorf("write id: %w", err)
		}
		if _, err := bw.Write(vector.Float32SliceToBytes(r.Vector)); err != nil {
			return fmt.Errorf("write vector: %w", err)
		}
	}
	return bw.Flush()
}

func writeManifestFile(path string, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}
