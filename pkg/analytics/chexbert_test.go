package analytics

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/athapong/radgraph-mcp/pkg/report"
)

func labelValue(v float64) *float64 {
	return &v
}

func labeled(reportID string, labels report.LabelVector, observations ...string) ReportLabels {
	doc := NewReportLabels(reportID, labels)
	for _, obs := range observations {
		doc.PresentObservations.Add(NormalizeTerm(obs))
	}
	return doc
}

func TestValidateLabelsMatchesAndConflicts(t *testing.T) {
	docs := []ReportLabels{
		labeled("r1", report.LabelVector{"Cardiomegaly": labelValue(1.0)}, "cardiomegaly"),
		labeled("r2", report.LabelVector{"Pneumothorax": labelValue(0.0)}, "pneumothorax"),
	}

	result := ValidateLabels(docs)

	assert.Equal(t, 2, result.ReportsAnalyzed)
	assert.Equal(t, 2, result.TotalComparisons)
	assert.Equal(t, 0.5, result.ConsistencyScore)

	require.Len(t, result.Matches, 1)
	assert.Equal(t, "r1", result.Matches[0].ReportID)
	assert.Equal(t, "consistent", result.Matches[0].Status)
	assert.Equal(t, "present", result.Matches[0].RadgraphStatus)

	require.Len(t, result.Conflicts, 1)
	assert.Equal(t, "r2", result.Conflicts[0].ReportID)
	assert.Equal(t, "CheXbert shows absent (0.0), but found in RadGraph", result.Conflicts[0].Explanation)
	assert.Equal(t, 0.5, result.Summary.ConflictRate)
}

func TestValidateLabelsPresentButNotFound(t *testing.T) {
	docs := []ReportLabels{
		labeled("r1", report.LabelVector{"Cardiomegaly": labelValue(1.0)}, "cardiomegaly"),
		labeled("r2", report.LabelVector{"Pneumothorax": labelValue(1.0)}, "opacity"),
	}

	result := ValidateLabels(docs)
	assert.Equal(t, 0.5, result.ConsistencyScore)
	require.Len(t, result.Conflicts, 1)
	assert.Equal(t, "not_found", result.Conflicts[0].RadgraphStatus)
	assert.Equal(t, "CheXbert shows present (1.0), but not found in RadGraph", result.Conflicts[0].Explanation)
}

func TestValidateLabelsSynonymMatching(t *testing.T) {
	// "fluid" is a Pleural Effusion synonym; matching is substring on
	// normalized terms.
	docs := []ReportLabels{
		labeled("r1", report.LabelVector{"Pleural Effusion": labelValue(1.0)}, "fluid collection"),
	}

	result := ValidateLabels(docs)
	require.Len(t, result.Matches, 1)
	assert.Empty(t, result.Conflicts)
}

func TestValidateLabelsAbsentAgreement(t *testing.T) {
	docs := []ReportLabels{
		labeled("r1", report.LabelVector{"Edema": labelValue(0.0)}, "opacity"),
	}

	result := ValidateLabels(docs)
	require.Len(t, result.Matches, 1)
	assert.Equal(t, "absent", result.Matches[0].RadgraphStatus)
	assert.Equal(t, 1.0, result.ConsistencyScore)
}

func TestValidateLabelsSkipsUncomparableValues(t *testing.T) {
	docs := []ReportLabels{
		labeled("r1", report.LabelVector{
			"Cardiomegaly": labelValue(-1.0), // excluded value
			"Pneumonia":    nil,              // unlabeled
		}, "cardiomegaly"),
	}

	result := ValidateLabels(docs)
	assert.Equal(t, 0, result.TotalComparisons)
	assert.Equal(t, 0.0, result.ConsistencyScore)
}

func TestValidateLabelsCapsEntries(t *testing.T) {
	var docs []ReportLabels
	for i := 0; i < MaxValidationEntries+10; i++ {
		docs = append(docs, labeled(fmt.Sprintf("r%d", i),
			report.LabelVector{"Cardiomegaly": labelValue(1.0)}, "cardiomegaly"))
	}

	result := ValidateLabels(docs)
	assert.Len(t, result.Matches, MaxValidationEntries)
	// Scoring still covers the full set.
	assert.Equal(t, MaxValidationEntries+10, result.Summary.TotalMatches)
	assert.Equal(t, MaxValidationEntries+10, result.TotalComparisons)
}

func TestValidateLabelsEmptyBatch(t *testing.T) {
	result := ValidateLabels(nil)
	assert.Equal(t, 0, result.ReportsAnalyzed)
	assert.Equal(t, 0.0, result.ConsistencyScore)
	assert.Empty(t, result.Matches)
	assert.Empty(t, result.Conflicts)
}
