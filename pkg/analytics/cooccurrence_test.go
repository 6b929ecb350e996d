package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeTerm(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Pleural Effusion", "pleural_effusion"},
		{"  opacity  ", "opacity"},
		{"RIGHT LOWER LOBE", "right_lower_lobe"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeTerm(tt.in))
	}
}

func TestCooccurrencePercentage(t *testing.T) {
	reports := []ReportObservations{
		{ReportID: "r1", Present: []string{"pleural effusion", "cardiomegaly"}},
		{ReportID: "r2", Present: []string{"effusion", "cardiomegaly"}},
		{ReportID: "r3", Present: []string{"pleural effusion", "cardiomegaly"}},
		{ReportID: "r4", Present: []string{"effusion"}},
	}

	result := Cooccurrence(reports, []string{"effusion", "cardiomegaly"})

	require.Contains(t, result.Patterns, "effusion + cardiomegaly")
	pattern := result.Patterns["effusion + cardiomegaly"]
	assert.Equal(t, 3, pattern.Count)
	assert.Equal(t, 4, pattern.TotalReports)
	assert.Equal(t, 75.0, pattern.Percentage)
	assert.Equal(t, 4, result.TotalReports)
}

func TestCooccurrenceSubstringMatching(t *testing.T) {
	reports := []ReportObservations{
		{ReportID: "r1", Present: []string{"small pleural effusion"}},
	}

	result := Cooccurrence(reports, []string{"effusion"})
	assert.Equal(t, 1, result.ObservationCounts["effusion"])
}

func TestCooccurrencePairKeysAreForwardOnly(t *testing.T) {
	// The pair key follows the target order, not the order the observations
	// appear in any report.
	reports := []ReportObservations{
		{ReportID: "r1", Present: []string{"cardiomegaly", "effusion"}},
		{ReportID: "r2", Present: []string{"effusion", "cardiomegaly"}},
	}

	result := Cooccurrence(reports, []string{"effusion", "cardiomegaly"})

	assert.Contains(t, result.Patterns, "effusion + cardiomegaly")
	assert.NotContains(t, result.Patterns, "cardiomegaly + effusion")
	assert.Equal(t, 2, result.Patterns["effusion + cardiomegaly"].Count)
}

func TestCooccurrenceCountsPerMention(t *testing.T) {
	reports := []ReportObservations{
		{ReportID: "r1", Present: []string{"effusion", "bilateral effusion"}},
	}

	result := Cooccurrence(reports, []string{"effusion"})
	assert.Equal(t, 2, result.ObservationCounts["effusion"])
}

func TestCooccurrenceEmptyBatch(t *testing.T) {
	result := Cooccurrence(nil, []string{"effusion"})

	assert.Equal(t, 0, result.TotalReports)
	assert.Empty(t, result.Patterns)
	assert.Equal(t, 0, result.ObservationCounts["effusion"])
}
