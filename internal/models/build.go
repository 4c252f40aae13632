package models

import "time"

// BuildRequest triggers an index build for one (modality, model) pair.
// Used by operational tooling, not by the query path.
type BuildRequest struct {
	Modality string `json:"modality"`
	Model    string `json:"model"`
	// EmbRoot and OutDir override the configured roots when set.
	EmbRoot string `json:"emb_root,omitempty"`
	OutDir  string `json:"out_dir,omitempty"`
	// Strategy selects the index implementation ("flat" default, "hnsw").
	Strategy string `json:"strategy,omitempty"`
}

// BuildReport summarizes a completed build.
type BuildReport struct {
	BuildID        string        `json:"build_id"`
	Modality       string        `json:"modality"`
	Model          string        `json:"model"`
	VectorsIndexed int           `json:"vectors_indexed"`
	Dimensionality int           `json:"dimensionality"`
	Metric         string        `json:"metric"`
	Duration       time.Duration `json:"duration"`
}
