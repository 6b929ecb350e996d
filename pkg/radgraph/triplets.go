package radgraph

import "github.com/athapong/radgraph-mcp/pkg/metrics"

// ExtractTriplets derives relation triplets from a graph. Only relations
// whose target id resolves inside the same graph produce a triplet; dangling
// targets are dropped. Each triplet carries the source entity's certainty
// (not the target's) plus the owning report id and section so batch analytics
// can attribute it later.
func ExtractTriplets(graph *EntityGraph, reportID string, section Section) []Triplet {
	var triplets []Triplet
	for _, source := range graph.Entities() {
		sourceType, sourceCertainty := source.TypeAndCertainty()
		for _, rel := range source.Relations {
			target, ok := graph.Get(rel.TargetID)
			if !ok {
				continue
			}
			targetType, _ := target.TypeAndCertainty()
			triplets = append(triplets, Triplet{
				SourceEntity: source.Text,
				SourceType:   sourceType,
				SourceID:     source.ID,
				Relation:     rel.Type,
				TargetEntity: target.Text,
				TargetType:   targetType,
				TargetID:     target.ID,
				Certainty:    sourceCertainty,
				ReportID:     reportID,
				Section:      section,
			})
		}
	}
	metrics.TripletsExtracted.Add(float64(len(triplets)))
	return triplets
}
