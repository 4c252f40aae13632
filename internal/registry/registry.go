// Package registry tracks which (modality, model) indices exist and resolves
// queries to their on-disk artifacts. It is the only mutable shared state in
// the engine: resolves are concurrent, publishes swap entries atomically.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mk-mkone/multimodal-retrieval-system/internal/validate"
	"github.com/mk-mkone/multimodal-retrieval-system/internal/vector"
)

// RegistryFileName is the persisted registry map under the index root.
const RegistryFileName = "registry.json"

var (
	// ErrUnknownIndex is returned when a query references an unregistered
	// (modality, model) pair. A client error, not a retryable fault.
	ErrUnknownIndex = errors.New("unknown index")
	// ErrIndexCorruption is returned when a published artifact no longer
	// matches its registry entry. Requires an operator rebuild; never retried.
	ErrIndexCorruption = errors.New("index corruption")
)

// Entry binds a (modality, model) pair to its published artifacts.
type Entry struct {
	Modality       string        `json:"modality"`
	ModelID        string        `json:"model_id"`
	Dimensionality int           `json:"dimensionality"`
	Metric         vector.Metric `json:"metric"`
	IndexLocation  string        `json:"index_location"`
	IDsLocation    string        `json:"ids_location"`
	VectorCount    int           `json:"vector_count"`
	BuildTimestamp time.Time     `json:"build_timestamp"`
}

// Key returns the unique registry key for the entry.
func (e *Entry) Key() string {
	return e.Modality + "/" + e.ModelID
}

// Registry is the published map of (modality, model) -> Entry, persisted as
// registry.json under the index root.
type Registry struct {
	root    string
	path    string
	mu      sync.RWMutex
	entries map[string]*Entry
	cache   *handleCache
	logger  *zap.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets a logger for publish/resolve debug output.
func WithLogger(l *zap.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// WithCacheSize sets the loaded-index cache capacity (default 8).
func WithCacheSize(n int) Option {
	return func(r *Registry) { r.cache = newHandleCache(n) }
}

// Open loads the registry under indexRoot, creating the root if needed.
// A missing registry file yields an empty registry, not an error.
func Open(indexRoot string, opts ...Option) (*Registry, error) {
	if err := os.MkdirAll(indexRoot, 0755); err != nil {
		return nil, fmt.Errorf("create index root: %w", err)
	}
	r := &Registry{
		root:    indexRoot,
		path:    filepath.Join(indexRoot, RegistryFileName),
		entries: make(map[string]*Entry),
		cache:   newHandleCache(8),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}

	data, err := os.ReadFile(r.path)
	if os.IsNotExist(err) {
		return r, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read registry: %w", err)
	}
	if err := json.Unmarshal(data, &r.entries); err != nil {
		return nil, fmt.Errorf("parse registry: %w", err)
	}
	return r, nil
}

// Root returns the index root directory.
func (r *Registry) Root() string {
	return r.root
}

// Resolve returns the published entry for (modality, model), or ErrUnknownIndex.
func (r *Registry) Resolve(modality, modelID string) (*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[modality+"/"+modelID]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrUnknownIndex, modality, modelID)
	}
	return e, nil
}

// Publish atomically overwrites the entry for its key: the registry file is
// rewritten via temp-file rename, then the in-memory map is swapped under the
// write lock and any cached handle for the key is evicted. Readers see either
// the old or the new entry, never a torn one.
func (r *Registry) Publish(e *Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := make(map[string]*Entry, len(r.entries)+1)
	for k, v := range r.entries {
		next[k] = v
	}
	next[e.Key()] = e

	if err := r.persist(next); err != nil {
		return err
	}
	r.entries = next
	r.cache.Invalidate(e.Key())
	r.logger.Info("published index",
		zap.String("key", e.Key()),
		zap.Int("vectors", e.VectorCount),
		zap.String("metric", string(e.Metric)))
	return nil
}

func (r *Registry) persist(entries map[string]*Entry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal registry: %w", err)
	}
	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write registry temp: %w", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("swap registry file: %w", err)
	}
	return nil
}

// List returns all entries sorted by key.
func (r *Registry) List() []*Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

// Handle is a read-only, loaded view of one published index: the similarity
// index and its aligned identifier array. Shared across concurrent queries,
// never mutated in place.
type Handle struct {
	Entry *Entry
	Index vector.Index
	IDs   []string
}

// Handle loads (or returns the cached) artifacts for entry, running the
// lightweight consistency check. A check failure surfaces as ErrIndexCorruption.
func (r *Registry) Handle(e *Entry) (*Handle, error) {
	if h, ok := r.cache.Get(e.Key(), e.BuildTimestamp); ok {
		return h, nil
	}

	idx, err := vector.Load(e.IndexLocation)
	if err != nil {
		return nil, fmt.Errorf("%w: load index %s: %v", ErrIndexCorruption, e.IndexLocation, err)
	}
	ids, err := ReadIDs(e.IDsLocation)
	if err != nil {
		return nil, fmt.Errorf("%w: load ids %s: %v", ErrIndexCorruption, e.IDsLocation, err)
	}
	want := validate.Expect{
		Dimensionality: e.Dimensionality,
		Metric:         e.Metric,
		VectorCount:    e.VectorCount,
	}
	if err := validate.Light(idx, ids, want); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrIndexCorruption, e.Key(), err)
	}

	h := &Handle{Entry: e, Index: idx, IDs: ids}
	r.cache.Set(e.Key(), e.BuildTimestamp, h)
	return h, nil
}
