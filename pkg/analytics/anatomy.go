package analytics

import (
	"sort"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/athapong/radgraph-mcp/pkg/radgraph"
)

// LocationCount is one anatomical location for an observation, with the
// number of relationship mentions supporting it.
type LocationCount struct {
	Location    string `json:"location"`
	ReportCount int    `json:"report_count"`
}

// AnatomyFrequency summarizes one anatomical region: how many observation
// mentions land there and which single observation is most common.
type AnatomyFrequency struct {
	ObservationCount int    `json:"observation_count"`
	MostCommon       string `json:"most_common,omitempty"`
}

// AnatomicalReport maps observations to where they occur.
type AnatomicalReport struct {
	ObservationsWithLocation    int                         `json:"observations_with_location"`
	ObservationsWithoutLocation int                         `json:"observations_without_location"`
	UniqueAnatomies             int                         `json:"unique_anatomies"`
	TotalLocationRelationships  int                         `json:"total_location_relationships"`
	ObservationLocations        map[string][]LocationCount  `json:"observation_locations"`
	AnatomyFrequency            map[string]AnatomyFrequency `json:"anatomy_frequency"`
}

// AnatomicalDistribution builds the observation/location mapping from
// located_at triplets whose source is an Observation. Per-observation
// locations are sorted by mention count descending; the most common
// observation for a region is the highest-count one, first seen winning ties.
func AnatomicalDistribution(triplets []radgraph.Triplet) AnatomicalReport {
	locCounts := make(map[string]map[string]int)
	var obsOrder []string
	locOrder := make(map[string][]string)

	regionCounts := make(map[string]int)
	regionObs := make(map[string][]string)
	var regionOrder []string

	total := 0
	for _, t := range triplets {
		if t.Relation != radgraph.RelationLocatedAt || t.SourceType != radgraph.TypeObservation {
			continue
		}
		total++
		obs, loc := t.SourceEntity, t.TargetEntity

		if _, ok := locCounts[obs]; !ok {
			locCounts[obs] = make(map[string]int)
			obsOrder = append(obsOrder, obs)
		}
		if _, ok := locCounts[obs][loc]; !ok {
			locOrder[obs] = append(locOrder[obs], loc)
		}
		locCounts[obs][loc]++

		if _, ok := regionCounts[loc]; !ok {
			regionOrder = append(regionOrder, loc)
		}
		regionCounts[loc]++
		if !containsString(regionObs[loc], obs) {
			regionObs[loc] = append(regionObs[loc], obs)
		}
	}

	observationLocations := make(map[string][]LocationCount, len(obsOrder))
	for _, obs := range obsOrder {
		locations := make([]LocationCount, 0, len(locOrder[obs]))
		for _, loc := range locOrder[obs] {
			locations = append(locations, LocationCount{Location: loc, ReportCount: locCounts[obs][loc]})
		}
		sort.SliceStable(locations, func(i, j int) bool {
			return locations[i].ReportCount > locations[j].ReportCount
		})
		observationLocations[obs] = locations
	}

	anatomyFrequency := make(map[string]AnatomyFrequency, len(regionOrder))
	for _, loc := range regionOrder {
		mostCommon := ""
		best := 0
		for _, obs := range regionObs[loc] {
			if c := locCounts[obs][loc]; c > best {
				best = c
				mostCommon = obs
			}
		}
		anatomyFrequency[loc] = AnatomyFrequency{
			ObservationCount: regionCounts[loc],
			MostCommon:       mostCommon,
		}
	}

	// Observations that appear as triplet sources but never with a location.
	allObs := mapset.NewSet[string]()
	for _, t := range triplets {
		if t.SourceType == radgraph.TypeObservation {
			allObs.Add(t.SourceEntity)
		}
	}
	without := allObs.Cardinality() - len(obsOrder)
	if without < 0 {
		without = 0
	}

	return AnatomicalReport{
		ObservationsWithLocation:    len(obsOrder),
		ObservationsWithoutLocation: without,
		UniqueAnatomies:             len(regionOrder),
		TotalLocationRelationships:  total,
		ObservationLocations:        observationLocations,
		AnatomyFrequency:            anatomyFrequency,
	}
}

// LocationCounts gives the raw (observation, location) mention counts from
// located_at triplets with an Observation source.
func LocationCounts(triplets []radgraph.Triplet) map[string]map[string]int {
	counts := make(map[string]map[string]int)
	for _, t := range triplets {
		if t.Relation != radgraph.RelationLocatedAt || t.SourceType != radgraph.TypeObservation {
			continue
		}
		if _, ok := counts[t.SourceEntity]; !ok {
			counts[t.SourceEntity] = make(map[string]int)
		}
		counts[t.SourceEntity][t.TargetEntity]++
	}
	return counts
}

// ModifierAssociations groups modify-relation triplets with a Modifier target
// into (observation, modifier) counts.
func ModifierAssociations(triplets []radgraph.Triplet) map[string]map[string]int {
	associations := make(map[string]map[string]int)
	for _, t := range triplets {
		if t.Relation != radgraph.RelationModify || t.TargetType != radgraph.TypeModifier {
			continue
		}
		if _, ok := associations[t.SourceEntity]; !ok {
			associations[t.SourceEntity] = make(map[string]int)
		}
		associations[t.SourceEntity][t.TargetEntity]++
	}
	return associations
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
