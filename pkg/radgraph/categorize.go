package radgraph

// DefaultUncertainToPresent controls where Observation entities with an
// unrecognized certainty token land. Defaulting to the present bucket biases
// toward recall of positive findings instead of silently dropping them.
const DefaultUncertainToPresent = true

// CategorizedEntity is an entity projected into a category bucket, keeping
// the fields downstream analytics need.
type CategorizedEntity struct {
	ID        string     `json:"id"`
	Text      string     `json:"text"`
	Relations []Relation `json:"relations,omitempty"`
	Certainty string     `json:"certainty,omitempty"`
}

// Categories partitions a graph's entities by type and certainty.
type Categories struct {
	Anatomies             []CategorizedEntity `json:"anatomies"`
	ObservationsPresent   []CategorizedEntity `json:"observations_present"`
	ObservationsAbsent    []CategorizedEntity `json:"observations_absent"`
	ObservationsUncertain []CategorizedEntity `json:"observations_uncertain"`
	Modifiers             []CategorizedEntity `json:"modifiers"`
}

// Total reports the number of entities across all buckets.
func (c Categories) Total() int {
	return len(c.Anatomies) + len(c.ObservationsPresent) + len(c.ObservationsAbsent) +
		len(c.ObservationsUncertain) + len(c.Modifiers)
}

// Categorize partitions the graph's entities into the five analysis buckets.
// Entities of unknown type are dropped; Observations with an unrecognized
// certainty follow the DefaultUncertainToPresent policy.
func Categorize(graph *EntityGraph) Categories {
	var cats Categories
	for _, entity := range graph.Entities() {
		entityType, certainty := entity.TypeAndCertainty()
		ce := CategorizedEntity{
			ID:        entity.ID,
			Text:      entity.Text,
			Relations: entity.Relations,
			Certainty: certainty,
		}

		switch entityType {
		case TypeAnatomy:
			cats.Anatomies = append(cats.Anatomies, ce)
		case TypeObservation:
			switch certainty {
			case CertaintyPresent:
				cats.ObservationsPresent = append(cats.ObservationsPresent, ce)
			case CertaintyAbsent:
				cats.ObservationsAbsent = append(cats.ObservationsAbsent, ce)
			case CertaintyUncertain:
				cats.ObservationsUncertain = append(cats.ObservationsUncertain, ce)
			default:
				if DefaultUncertainToPresent {
					cats.ObservationsPresent = append(cats.ObservationsPresent, ce)
				} else {
					cats.ObservationsUncertain = append(cats.ObservationsUncertain, ce)
				}
			}
		case TypeModifier:
			cats.Modifiers = append(cats.Modifiers, ce)
		}
	}
	return cats
}
