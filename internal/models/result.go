package models

// SearchHit is a single ranked result, hydrated with metadata when the
// document is known to the metadata store.
type SearchHit struct {
	DocumentID string  `json:"document_id"`
	Score      float64 `json:"score"`
	Rank       int     `json:"rank"`
	Title      string  `json:"title,omitempty"`
	Year       int     `json:"year,omitempty"`
	Source     string  `json:"source,omitempty"`
	Method     string  `json:"method,omitempty"`
	Modality   string  `json:"modality,omitempty"`
}

// SearchResponse is the response for a search request. Ordering is stable for
// identical inputs against an unchanged index.
type SearchResponse struct {
	Results []*SearchHit `json:"results"`
	// Total is the filtered candidate count, for client-side page computation.
	Total     int      `json:"total"`
	Page      int      `json:"page"`
	Size      int      `json:"size"`
	QueryTime int64    `json:"query_time_ms"`
	Warnings  []string `json:"warnings,omitempty"`
}

// DocumentMeta is a metadata row for one document, as returned by the
// external metadata store.
type DocumentMeta struct {
	DocumentID string `json:"document_id"`
	Modality   string `json:"modality"`
	Source     string `json:"source"`
	SourceID   string `json:"source_id,omitempty"`
	Year       int    `json:"year,omitempty"`
	Method     string `json:"method,omitempty"`
	Title      string `json:"title,omitempty"`
}
