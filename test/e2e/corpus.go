// Package e2e provides end-to-end tests covering the build, publish, and
// query pipeline with a generated materials corpus.
package e2e

import (
	"fmt"

	"github.com/mk-mkone/multimodal-retrieval-system/internal/models"
)

// E2EDocument is a document entry in the corpus. Phrase is a unique signature
// the document's embedding is derived from, so queries can assert the correct
// document comes back first.
type E2EDocument struct {
	ID     string
	Title  string
	Phrase string
	Year   int
	Method string
	Source string
}

// QueryTestCase defines a query and the document ID that must rank first.
type QueryTestCase struct {
	Query       string
	ExpectedID  string
	Description string
}

// Corpus holds documents and query test cases.
type Corpus struct {
	Documents []E2EDocument
	TestCases []QueryTestCase
}

var topics = []struct {
	title  string
	phrase string
	method string
}{
	{"Perovskite Stability", "perovskite solar absorber stability", "dft"},
	{"Solid Electrolytes", "lithium garnet solid electrolyte conductivity", "md"},
	{"Thermoelectrics", "half-heusler thermoelectric figure of merit", "dft"},
	{"Battery Cathodes", "layered oxide cathode capacity retention", "experiment"},
	{"2D Materials", "transition metal dichalcogenide monolayer band gap", "dft"},
	{"High-Entropy Alloys", "high entropy alloy phase stability", "md"},
	{"Photocatalysts", "titania photocatalytic water splitting", "experiment"},
	{"Superconductors", "hydride superconductor critical temperature", "dft"},
	{"MOF Adsorption", "metal organic framework carbon capture", "md"},
	{"Ferroelectrics", "hafnia thin film ferroelectric polarization", "experiment"},
	{"Topological Insulators", "bismuth selenide topological surface states", "dft"},
	{"Shape Memory Alloys", "nickel titanium martensitic transformation", "md"},
	{"Glass Formers", "bulk metallic glass forming ability", "md"},
	{"Catalyst Screening", "single atom catalyst oxygen reduction", "dft"},
	{"Polymer Membranes", "polymer membrane gas separation selectivity", "experiment"},
	{"Magnetocalorics", "gadolinium alloy magnetocaloric effect", "experiment"},
	{"Wide Bandgap", "gallium nitride power electronics breakdown", "dft"},
	{"Solid Oxide Cells", "perovskite oxide electrode oxygen evolution", "experiment"},
	{"Ion Conductors", "sodium superionic conductor migration barrier", "md"},
	{"Hard Coatings", "transition metal nitride coating hardness", "dft"},
}

var sources = []string{"arxiv", "materials_project", "oqmd"}

// BuildCorpus returns n documents cycling through the topic list, each with a
// unique signature phrase, plus one query test case per topic.
func BuildCorpus(n int) *Corpus {
	docs := make([]E2EDocument, 0, n)
	for i := 0; i < n; i++ {
		topic := topics[i%len(topics)]
		docs = append(docs, E2EDocument{
			ID:     fmt.Sprintf("doc-%03d", i),
			Title:  fmt.Sprintf("%s (entry %d)", topic.title, i),
			Phrase: fmt.Sprintf("%s entry %d", topic.phrase, i),
			Year:   2015 + i%10,
			Method: topic.method,
			Source: sources[i%len(sources)],
		})
	}
	cases := make([]QueryTestCase, 0, len(topics))
	for i := range topics {
		if i >= len(docs) {
			break
		}
		cases = append(cases, QueryTestCase{
			Query:       docs[i].Phrase,
			ExpectedID:  docs[i].ID,
			Description: topics[i].title,
		})
	}
	return &Corpus{Documents: docs, TestCases: cases}
}

// Meta converts a corpus document into a metadata store row.
func (d *E2EDocument) Meta() *models.DocumentMeta {
	return &models.DocumentMeta{
		DocumentID: d.ID,
		Modality:   models.ModalityText,
		Source:     d.Source,
		Year:       d.Year,
		Method:     d.Method,
		Title:      d.Title,
	}
}
