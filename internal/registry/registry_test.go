package registry

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/mk-mkone/multimodal-retrieval-system/internal/vector"
)

func publishFixture(t *testing.T, r *Registry, root string, built time.Time) *Entry {
	t.Helper()
	idx, err := vector.NewFlatIndex(2, vector.MetricIP)
	if err != nil {
		t.Fatal(err)
	}
	if err := idx.Add([][]float32{{1, 0}, {0, 1}}); err != nil {
		t.Fatal(err)
	}
	indexPath := filepath.Join(root, "text", "m1", "index.bin")
	idsPath := filepath.Join(root, "text", "m1", "ids.bin")
	if err := idx.Save(indexPath); err != nil {
		t.Fatal(err)
	}
	if err := WriteIDs(idsPath, []string{"a", "b"}); err != nil {
		t.Fatal(err)
	}
	e := &Entry{
		Modality:       "text",
		ModelID:        "m1",
		Dimensionality: 2,
		Metric:         vector.MetricIP,
		IndexLocation:  indexPath,
		IDsLocation:    idsPath,
		VectorCount:    2,
		BuildTimestamp: built,
	}
	if err := r.Publish(e); err != nil {
		t.Fatal(err)
	}
	return e
}

func TestPublishResolve(t *testing.T) {
	root := t.TempDir()
	r, err := Open(root)
	if err != nil {
		t.Fatal(err)
	}
	publishFixture(t, r, root, time.Now())

	e, err := r.Resolve("text", "m1")
	if err != nil {
		t.Fatal(err)
	}
	if e.Dimensionality != 2 || e.Metric != vector.MetricIP {
		t.Errorf("resolved entry = %+v", e)
	}

	// Registry survives reopen.
	r2, err := Open(root)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r2.Resolve("text", "m1"); err != nil {
		t.Errorf("entry lost after reopen: %v", err)
	}
}

func TestResolve_Unknown(t *testing.T) {
	r, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	_, err = r.Resolve("timeseries", "nonexistent")
	if !errors.Is(err, ErrUnknownIndex) {
		t.Errorf("expected ErrUnknownIndex, got %v", err)
	}
}

func TestHandle_LoadAndCache(t *testing.T) {
	root := t.TempDir()
	r, _ := Open(root)
	e := publishFixture(t, r, root, time.Now())

	h1, err := r.Handle(e)
	if err != nil {
		t.Fatal(err)
	}
	if h1.Index.Rows() != 2 || len(h1.IDs) != 2 || h1.IDs[0] != "a" {
		t.Errorf("handle = rows %d ids %v", h1.Index.Rows(), h1.IDs)
	}

	h2, err := r.Handle(e)
	if err != nil {
		t.Fatal(err)
	}
	if h1 != h2 {
		t.Error("second Handle call should hit the cache")
	}
}

func TestHandle_RepublishEvicts(t *testing.T) {
	root := t.TempDir()
	r, _ := Open(root)
	e := publishFixture(t, r, root, time.Unix(100, 0))
	h1, err := r.Handle(e)
	if err != nil {
		t.Fatal(err)
	}

	e2 := publishFixture(t, r, root, time.Unix(200, 0))
	h2, err := r.Handle(e2)
	if err != nil {
		t.Fatal(err)
	}
	if h1 == h2 {
		t.Error("republish should evict the cached handle")
	}
}

func TestHandle_CorruptIDs(t *testing.T) {
	root := t.TempDir()
	r, _ := Open(root)
	e := publishFixture(t, r, root, time.Now())

	// Shrink the identifier array behind the registry's back.
	if err := WriteIDs(e.IDsLocation, []string{"a"}); err != nil {
		t.Fatal(err)
	}
	_, err := r.Handle(e)
	if !errors.Is(err, ErrIndexCorruption) {
		t.Errorf("expected ErrIndexCorruption, got %v", err)
	}
}

func TestIDsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ids.bin")
	in := []string{"doc-1", "doc-2", ""}
	if err := WriteIDs(path, in); err != nil {
		t.Fatal(err)
	}
	out, err := ReadIDs(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 3 || out[0] != "doc-1" || out[2] != "" {
		t.Errorf("ids = %v", out)
	}
}
