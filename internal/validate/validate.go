// Package validate checks index/identifier alignment before an index is
// published or served.
package validate

import (
	"fmt"

	"github.com/mk-mkone/multimodal-retrieval-system/internal/vector"
	"github.com/mk-mkone/multimodal-retrieval-system/pkg/utils"
)

// Expect describes what the registry entry (or the manifest, at build time)
// declares about an artifact pair.
type Expect struct {
	Dimensionality int
	Metric         vector.Metric
	VectorCount    int
}

// Full verifies row-count equality between index and identifier array,
// dimensionality and metric against the declaration, and spot-checks up to
// sample vectors for finiteness. Invoked at the end of every build; a failure
// gates publish.
func Full(idx vector.Index, ids []string, want Expect, sample int) error {
	if err := Light(idx, ids, want); err != nil {
		return err
	}
	rows := idx.Rows()
	if sample <= 0 || rows == 0 {
		return nil
	}
	if sample > rows {
		sample = rows
	}
	// Evenly spaced rows cover every partition without reading the full set.
	step := rows / sample
	if step == 0 {
		step = 1
	}
	for row := 0; row < rows; row += step {
		vec, err := idx.Vector(row)
		if err != nil {
			return fmt.Errorf("spot-check row %d: %w", row, err)
		}
		if !utils.IsFinite(vec) {
			return fmt.Errorf("row %d (%s) contains non-finite components", row, ids[row])
		}
	}
	return nil
}

// Light verifies only the structural invariants: row counts and declared
// dimensionality/metric. Invoked at registry resolution time to detect
// externally modified artifacts before a query returns meaningless rows.
func Light(idx vector.Index, ids []string, want Expect) error {
	if idx.Rows() != len(ids) {
		return fmt.Errorf("index has %d rows but identifier array has %d entries", idx.Rows(), len(ids))
	}
	if idx.Dimensions() != want.Dimensionality {
		return fmt.Errorf("index dimensionality %d does not match declared %d", idx.Dimensions(), want.Dimensionality)
	}
	if idx.Metric() != want.Metric {
		return fmt.Errorf("index metric %q does not match declared %q", idx.Metric(), want.Metric)
	}
	if want.VectorCount >= 0 && idx.Rows() != want.VectorCount {
		return fmt.Errorf("index has %d rows but declaration says %d", idx.Rows(), want.VectorCount)
	}
	return nil
}
