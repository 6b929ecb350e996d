// Package report holds the corpus document model shared by the search engine
// and the annotation analytics.
package report

// LabelVector maps CheXbert finding names to their label value:
// 1.0 present, 0.0 absent, -1.0 uncertain/excluded, nil unlabeled.
// Label vectors are supplied by the index and never mutated here.
type LabelVector map[string]*float64

// Report is one radiology report as stored in the index. The RadGraph fields
// hold the raw annotation payload exactly as indexed (one of the three
// heterogeneous encodings); parsing happens lazily per request.
type Report struct {
	ID                 string      `json:"report_id"`
	Text               string      `json:"report_text"`
	PatientID          string      `json:"patient_id,omitempty"`
	ChexbertLabels     LabelVector `json:"chexbert_labels,omitempty"`
	RadgraphFindings   string      `json:"radgraph_findings,omitempty"`
	RadgraphImpression string      `json:"radgraph_impression,omitempty"`
	ImageURL           string      `json:"image_url,omitempty"`
}
