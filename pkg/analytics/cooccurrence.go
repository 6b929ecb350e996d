// Package analytics computes batch statistics over per-report entity graphs:
// co-occurrence, anatomical distribution, causal chains and CheXbert label
// cross-validation. Every report is rebuilt in full from the current candidate
// batch; nothing here is incrementally updated or persisted.
package analytics

import (
	"math"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
)

// NormalizeTerm lower-cases, trims and underscores a medical term so free-text
// spellings compare consistently.
func NormalizeTerm(term string) string {
	return strings.ReplaceAll(strings.TrimSpace(strings.ToLower(term)), " ", "_")
}

// termsMatch reports whether two normalized terms match by substring in
// either direction.
func termsMatch(a, b string) bool {
	return strings.Contains(a, b) || strings.Contains(b, a)
}

// ReportObservations is the present-observation texts of one report, in
// extraction order.
type ReportObservations struct {
	ReportID string
	Present  []string
}

// CooccurrenceStats describes how often a pair of observations appears
// together across the batch.
type CooccurrenceStats struct {
	Count        int     `json:"count"`
	TotalReports int     `json:"total_reports"`
	Percentage   float64 `json:"percentage"`
}

// CooccurrenceReport aggregates pairwise co-occurrence across one batch.
type CooccurrenceReport struct {
	ObservationCounts map[string]int               `json:"observation_counts"`
	Patterns          map[string]CooccurrenceStats `json:"cooccurrence_patterns"`
	TotalReports      int                          `json:"total_reports"`
}

// Cooccurrence counts, for every unordered pair of target observation names,
// the reports where both are present. Observation texts match a target by
// case-insensitive substring in either direction on normalized terms. Pair
// keys are stable: targets are walked in the order given and only paired
// forward, so "A + B" never also shows up as "B + A".
func Cooccurrence(reports []ReportObservations, targetNames []string) CooccurrenceReport {
	observationCounts := make(map[string]int, len(targetNames))
	for _, name := range targetNames {
		observationCounts[name] = 0
	}

	pairCounts := make(map[string]int)
	var pairOrder []string
	totalReports := len(reports)

	for _, rep := range reports {
		seen := mapset.NewSet[string]()
		var matched []string
		for _, target := range targetNames {
			normTarget := NormalizeTerm(target)
			for _, obs := range rep.Present {
				if termsMatch(NormalizeTerm(obs), normTarget) {
					observationCounts[target]++
					if seen.Add(target) {
						matched = append(matched, target)
					}
				}
			}
		}

		for i := 0; i < len(matched); i++ {
			for j := i + 1; j < len(matched); j++ {
				key := matched[i] + " + " + matched[j]
				if _, ok := pairCounts[key]; !ok {
					pairOrder = append(pairOrder, key)
				}
				pairCounts[key]++
			}
		}
	}

	patterns := make(map[string]CooccurrenceStats, len(pairCounts))
	for _, key := range pairOrder {
		count := pairCounts[key]
		pct := 0.0
		if totalReports > 0 {
			pct = round1(float64(count) / float64(totalReports) * 100)
		}
		patterns[key] = CooccurrenceStats{
			Count:        count,
			TotalReports: totalReports,
			Percentage:   pct,
		}
	}

	return CooccurrenceReport{
		ObservationCounts: observationCounts,
		Patterns:          patterns,
		TotalReports:      totalReports,
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
