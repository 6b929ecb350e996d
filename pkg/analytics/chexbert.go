package analytics

import (
	mapset "github.com/deckarep/golang-set/v2"

	"github.com/athapong/radgraph-mcp/pkg/report"
)

// MaxValidationEntries caps the match/conflict lists returned to callers.
// Scoring always runs over the full uncapped set.
const MaxValidationEntries = 50

// chexbertLabelOrder fixes the comparison order so validation output is
// deterministic across runs.
var chexbertLabelOrder = []string{
	"Cardiomegaly",
	"Pleural Effusion",
	"Pneumonia",
	"Pneumothorax",
	"Atelectasis",
	"Edema",
}

// chexbertSynonyms maps CheXbert label names to free-text RadGraph terms that
// count as a mention. Matching is substring in either direction on normalized
// terms. Labels outside this mapping are excluded from scoring.
var chexbertSynonyms = map[string][]string{
	"Cardiomegaly":     {"cardiomegaly", "enlarged heart", "cardiac enlargement"},
	"Pleural Effusion": {"pleural effusion", "effusion", "fluid"},
	"Pneumonia":        {"pneumonia", "infiltrate", "consolidation"},
	"Pneumothorax":     {"pneumothorax", "ptx"},
	"Atelectasis":      {"atelectasis", "collapse"},
	"Edema":            {"edema", "pulmonary edema"},
}

// ReportLabels pairs one report's CheXbert label vector with the normalized
// texts of its present RadGraph observations.
type ReportLabels struct {
	ReportID            string
	Labels              report.LabelVector
	PresentObservations mapset.Set[string]
}

// NewReportLabels builds a ReportLabels with an empty observation set.
func NewReportLabels(reportID string, labels report.LabelVector) ReportLabels {
	return ReportLabels{
		ReportID:            reportID,
		Labels:              labels,
		PresentObservations: mapset.NewSet[string](),
	}
}

// ValidationEntry records one label comparison for one report.
type ValidationEntry struct {
	ReportID       string  `json:"report_id"`
	ChexbertLabel  string  `json:"chexbert_label"`
	ChexbertValue  float64 `json:"chexbert_value"`
	RadgraphStatus string  `json:"radgraph_status"`
	Status         string  `json:"status"`
	Explanation    string  `json:"explanation,omitempty"`
}

// ValidationSummary totals the comparison outcomes.
type ValidationSummary struct {
	TotalMatches   int     `json:"total_matches"`
	TotalConflicts int     `json:"total_conflicts"`
	ConflictRate   float64 `json:"conflict_rate"`
}

// ValidationReport is the cross-validation result for one batch.
type ValidationReport struct {
	ReportsAnalyzed  int               `json:"reports_analyzed"`
	TotalComparisons int               `json:"total_comparisons"`
	ConsistencyScore float64           `json:"consistency_score"`
	Matches          []ValidationEntry `json:"matches"`
	Conflicts        []ValidationEntry `json:"conflicts"`
	Summary          ValidationSummary `json:"summary"`
}

// ValidateLabels compares each report's derived present observations against
// its CheXbert label vector. A 1.0 label is consistent when a synonym appears
// among present observations, a 0.0 label when none does; the opposite cases
// are conflicts. Unmapped labels and values outside {0.0, 1.0} are excluded.
// The consistency score is matches/(matches+conflicts), 0 when nothing was
// comparable.
func ValidateLabels(docs []ReportLabels) ValidationReport {
	var matches, conflicts []ValidationEntry

	for _, doc := range docs {
		for _, label := range chexbertLabelOrder {
			value, ok := doc.Labels[label]
			if !ok || value == nil {
				continue
			}

			found := false
			observations := doc.PresentObservations.ToSlice()
			for _, term := range chexbertSynonyms[label] {
				normTerm := NormalizeTerm(term)
				for _, obs := range observations {
					if termsMatch(obs, normTerm) {
						found = true
						break
					}
				}
				if found {
					break
				}
			}

			switch *value {
			case 1.0:
				if found {
					matches = append(matches, ValidationEntry{
						ReportID:       doc.ReportID,
						ChexbertLabel:  label,
						ChexbertValue:  1.0,
						RadgraphStatus: "present",
						Status:         "consistent",
					})
				} else {
					conflicts = append(conflicts, ValidationEntry{
						ReportID:       doc.ReportID,
						ChexbertLabel:  label,
						ChexbertValue:  1.0,
						RadgraphStatus: "not_found",
						Status:         "conflict",
						Explanation:    "CheXbert shows present (1.0), but not found in RadGraph",
					})
				}
			case 0.0:
				if found {
					conflicts = append(conflicts, ValidationEntry{
						ReportID:       doc.ReportID,
						ChexbertLabel:  label,
						ChexbertValue:  0.0,
						RadgraphStatus: "present",
						Status:         "conflict",
						Explanation:    "CheXbert shows absent (0.0), but found in RadGraph",
					})
				} else {
					matches = append(matches, ValidationEntry{
						ReportID:       doc.ReportID,
						ChexbertLabel:  label,
						ChexbertValue:  0.0,
						RadgraphStatus: "absent",
						Status:         "consistent",
					})
				}
			}
		}
	}

	total := len(matches) + len(conflicts)
	score := 0.0
	conflictRate := 0.0
	if total > 0 {
		score = round2(float64(len(matches)) / float64(total))
		conflictRate = round2(float64(len(conflicts)) / float64(total))
	}

	return ValidationReport{
		ReportsAnalyzed:  len(docs),
		TotalComparisons: total,
		ConsistencyScore: score,
		Matches:          capEntries(matches),
		Conflicts:        capEntries(conflicts),
		Summary: ValidationSummary{
			TotalMatches:   len(matches),
			TotalConflicts: len(conflicts),
			ConflictRate:   conflictRate,
		},
	}
}

func capEntries(entries []ValidationEntry) []ValidationEntry {
	if len(entries) > MaxValidationEntries {
		return entries[:MaxValidationEntries]
	}
	return entries
}
