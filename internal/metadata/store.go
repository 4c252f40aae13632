// Package metadata defines the read-only interface to the external document
// metadata store, used for filter predicates and hit hydration.
package metadata

import (
	"context"
	"errors"

	"github.com/mk-mkone/multimodal-retrieval-system/internal/models"
)

// ErrStoreUnavailable is returned when the metadata store cannot be reached.
// Surfaced to the caller with context to retry; backoff policy stays with the
// caller.
var ErrStoreUnavailable = errors.New("metadata store unavailable")

// FilterStore resolves filter predicates over candidate document sets and
// hydrates result metadata. Read-only from the engine's point of view.
type FilterStore interface {
	// Filter returns the metadata rows of the candidates matching the
	// predicates, keyed by document id. Candidates absent from the store are
	// simply absent from the result.
	Filter(ctx context.Context, candidates []string, filters *models.SearchFilters) (map[string]*models.DocumentMeta, error)

	// Get returns the metadata row for one document, or nil when unknown.
	Get(ctx context.Context, documentID string) (*models.DocumentMeta, error)

	// CountDocuments returns the number of documents known to the store.
	CountDocuments(ctx context.Context) (int64, error)

	Close() error
}
