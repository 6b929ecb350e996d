package analytics

import (
	"sort"
	"strings"

	"github.com/athapong/radgraph-mcp/pkg/radgraph"
)

// Confidence policy for suggestive relationships. Fixed thresholds so the
// labels are testable and adjustable in one place.
const (
	HighConfidenceMinCount     = 5
	ModerateConfidenceMinCount = 3

	// Response size caps.
	MaxCausalChains   = 20
	MaxChainReportIDs = 10
)

// causalRelations are the relation types treated as causal evidence.
var causalRelations = map[string]bool{
	radgraph.RelationCauses:         true,
	radgraph.RelationAssociatedWith: true,
	radgraph.RelationManifestsAs:    true,
}

// CausalChain is one "source → relation → target" pattern with the number of
// triplet occurrences supporting it and the reports it came from.
type CausalChain struct {
	Chain        []string `json:"chain"`
	SupportCount int      `json:"support_count"`
	ReportIDs    []string `json:"report_ids"`
}

// SuggestiveRelation is one "observation suggestive_of diagnosis" pattern
// with a frequency-derived confidence label.
type SuggestiveRelation struct {
	Observation  string `json:"observation"`
	SuggestiveOf string `json:"suggestive_of"`
	Confidence   string `json:"confidence"`
	CaseCount    int    `json:"case_count"`
}

// ConfidenceLabel maps an occurrence count to a confidence bucket.
func ConfidenceLabel(count int) string {
	switch {
	case count >= HighConfidenceMinCount:
		return "high"
	case count >= ModerateConfidenceMinCount:
		return "moderate"
	default:
		return "low"
	}
}

// CausalChains accumulates causes/associated_with/manifests_as triplets into
// chains keyed by "source → relation → target", sorted by support descending
// (ties keep first-seen order). Stored report ids are distinct and capped at
// MaxChainReportIDs; callers cap the chain list itself at MaxCausalChains
// after recording the uncapped count.
func CausalChains(triplets []radgraph.Triplet) []CausalChain {
	type chainAgg struct {
		support   int
		reportIDs []string
	}
	chains := make(map[string]*chainAgg)
	var order []string

	for _, t := range triplets {
		if !causalRelations[t.Relation] {
			continue
		}
		key := t.SourceEntity + " → " + t.Relation + " → " + t.TargetEntity
		agg, ok := chains[key]
		if !ok {
			agg = &chainAgg{}
			chains[key] = agg
			order = append(order, key)
		}
		agg.support++
		if !containsString(agg.reportIDs, t.ReportID) {
			agg.reportIDs = append(agg.reportIDs, t.ReportID)
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		return chains[order[i]].support > chains[order[j]].support
	})

	formatted := make([]CausalChain, 0, len(order))
	for _, key := range order {
		agg := chains[key]
		ids := agg.reportIDs
		if len(ids) > MaxChainReportIDs {
			ids = ids[:MaxChainReportIDs]
		}
		formatted = append(formatted, CausalChain{
			Chain:        strings.Split(key, " → "),
			SupportCount: agg.support,
			ReportIDs:    ids,
		})
	}
	return formatted
}

// SuggestiveRelationships counts suggestive_of triplets per
// "source → target" pair. Occurrences are counted per triplet, not
// deduplicated by report, so repeated mentions raise confidence.
func SuggestiveRelationships(triplets []radgraph.Triplet) []SuggestiveRelation {
	counts := make(map[string]int)
	var order []string

	for _, t := range triplets {
		if t.Relation != radgraph.RelationSuggestiveOf {
			continue
		}
		key := t.SourceEntity + " → " + t.TargetEntity
		if _, ok := counts[key]; !ok {
			order = append(order, key)
		}
		counts[key]++
	}

	formatted := make([]SuggestiveRelation, 0, len(order))
	for _, key := range order {
		parts := strings.SplitN(key, " → ", 2)
		formatted = append(formatted, SuggestiveRelation{
			Observation:  parts[0],
			SuggestiveOf: parts[1],
			Confidence:   ConfidenceLabel(counts[key]),
			CaseCount:    counts[key],
		})
	}
	return formatted
}
