// Package models defines the request, result, and build types shared across the engine.
package models

import "fmt"

// Modalities known to the platform. Each modality carries its own embedding model(s).
const (
	ModalityText       = "text"
	ModalitySimulation = "simulation"
	ModalityTimeseries = "timeseries"
)

// ValidModality reports whether m names a known modality.
func ValidModality(m string) bool {
	return m == ModalityText || m == ModalitySimulation || m == ModalityTimeseries
}

// SearchFilters are the metadata predicates applied after the top-k stage.
// Zero values mean "no constraint".
type SearchFilters struct {
	YearFrom int    `json:"year_from,omitempty"`
	YearTo   int    `json:"year_to,omitempty"`
	Method   string `json:"method,omitempty"`
	Source   string `json:"source,omitempty"`
}

// Empty reports whether no filter is set.
func (f *SearchFilters) Empty() bool {
	return f == nil || (f.YearFrom == 0 && f.YearTo == 0 && f.Method == "" && f.Source == "")
}

// SearchRequest is a similarity query against one (modality, model) index.
// Either Query (raw input for the encoder) or Vector (pre-vectorized) must be set.
type SearchRequest struct {
	Modality string         `json:"modality"`
	Model    string         `json:"model"`
	Query    string         `json:"query,omitempty"`
	Vector   []float32      `json:"vector,omitempty"`
	TopK     int            `json:"top_k,omitempty"`
	Page     int            `json:"page,omitempty"`
	Size     int            `json:"size,omitempty"`
	Filters  *SearchFilters `json:"filters,omitempty"`
}

// Validate ensures the request has valid fields and sets defaults.
func (r *SearchRequest) Validate() error {
	if !ValidModality(r.Modality) {
		return fmt.Errorf("unknown modality: %q", r.Modality)
	}
	if r.Query == "" && len(r.Vector) == 0 {
		return fmt.Errorf("either query or vector must be provided")
	}
	if r.TopK <= 0 {
		r.TopK = 10
	}
	if r.Page <= 0 {
		r.Page = 1
	}
	if r.Size <= 0 {
		r.Size = 10
	}
	return nil
}
