// Package cli provides output helpers for the command line interface.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/mk-mkone/multimodal-retrieval-system/internal/models"
	"github.com/mk-mkone/multimodal-retrieval-system/internal/registry"
)

// OutputFormat is the format for CLI output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat validates an -output flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch s {
	case "text", "":
		return OutputText, nil
	case "json":
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text or json", s)
	}
}

// WriteSearchResults writes search results to w in the given format.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format OutputFormat) error {
	if format == OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(response)
	}
	fmt.Fprintf(w, "\nFound %d results in %dms (page %d, size %d)\n\n",
		response.Total, response.QueryTime, response.Page, response.Size)
	for _, warning := range response.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warning)
	}
	for _, hit := range response.Results {
		writeOneHit(w, hit)
	}
	return nil
}

func writeOneHit(w io.Writer, hit *models.SearchHit) {
	fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
	fmt.Fprintf(w, "Rank: %d | Score: %.4f\n", hit.Rank, hit.Score)
	fmt.Fprintf(w, "ID: %s\n", hit.DocumentID)
	if hit.Title != "" {
		fmt.Fprintf(w, "Title: %s\n", Truncate(hit.Title, 120))
	}
	var details []string
	if hit.Year > 0 {
		details = append(details, fmt.Sprintf("year=%d", hit.Year))
	}
	if hit.Method != "" {
		details = append(details, "method="+hit.Method)
	}
	if hit.Source != "" {
		details = append(details, "source="+hit.Source)
	}
	if len(details) > 0 {
		fmt.Fprintf(w, "%s\n", strings.Join(details, " "))
	}
	fmt.Fprintln(w)
}

// WriteIndices writes the registry listing to w in the given format.
func WriteIndices(w io.Writer, entries []*registry.Entry, format OutputFormat) error {
	if format == OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}
	if len(entries) == 0 {
		fmt.Fprintln(w, "no indices registered")
		return nil
	}
	for _, e := range entries {
		fmt.Fprintf(w, "%-32s dims=%-5d metric=%-3s vectors=%-8d built=%s\n",
			e.Modality+"/"+e.ModelID, e.Dimensionality, e.Metric, e.VectorCount,
			e.BuildTimestamp.Format("2006-01-02 15:04:05"))
	}
	return nil
}

// Truncate truncates s to maxLen and appends "..." if truncated.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
