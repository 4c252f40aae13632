package models

import "testing"

func TestSearchRequest_Validate(t *testing.T) {
	req := &SearchRequest{Modality: ModalityText, Query: "perovskite band gap"}
	if err := req.Validate(); err != nil {
		t.Fatal(err)
	}
	if req.TopK != 10 || req.Page != 1 || req.Size != 10 {
		t.Errorf("defaults not applied: %+v", req)
	}
}

func TestSearchRequest_Validate_unknownModality(t *testing.T) {
	req := &SearchRequest{Modality: "audio", Query: "x"}
	if err := req.Validate(); err == nil {
		t.Error("expected error for unknown modality")
	}
}

func TestSearchRequest_Validate_missingQueryAndVector(t *testing.T) {
	req := &SearchRequest{Modality: ModalitySimulation}
	if err := req.Validate(); err == nil {
		t.Error("expected error when neither query nor vector is set")
	}
}

func TestSearchFilters_Empty(t *testing.T) {
	var f *SearchFilters
	if !f.Empty() {
		t.Error("nil filters should be empty")
	}
	if !(&SearchFilters{}).Empty() {
		t.Error("zero filters should be empty")
	}
	if (&SearchFilters{YearFrom: 2020}).Empty() {
		t.Error("filters with year_from should not be empty")
	}
}
