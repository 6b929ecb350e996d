package radgraph

import "strings"

// Section identifies which part of a report an entity graph was parsed from.
type Section string

const (
	SectionFindings   Section = "findings"
	SectionImpression Section = "impression"
)

// RadGraph entity types.
const (
	TypeAnatomy     = "Anatomy"
	TypeObservation = "Observation"
	TypeModifier    = "Modifier"
)

// Certainty levels carried in RadGraph labels ("Type::certainty").
// Anatomy and Modifier entities carry "NA", which normalizes to the empty string.
const (
	CertaintyPresent   = "definitely present"
	CertaintyAbsent    = "definitely absent"
	CertaintyUncertain = "uncertain"
)

// Relation types observed in RadGraph annotations.
const (
	RelationLocatedAt      = "located_at"
	RelationModify         = "modify"
	RelationCauses         = "causes"
	RelationAssociatedWith = "associated_with"
	RelationManifestsAs    = "manifests_as"
	RelationSuggestiveOf   = "suggestive_of"
)

// Relation is a directed, typed edge from its owning entity to another
// entity in the same graph.
type Relation struct {
	Type     string `json:"type"`
	TargetID string `json:"target_id"`
}

// Entity is one annotated span of report text. Entities are built once by the
// parser and never mutated afterwards.
type Entity struct {
	ID        string     `json:"id"`
	Text      string     `json:"text"`
	Label     string     `json:"label"`
	Relations []Relation `json:"relations,omitempty"`
}

// TypeAndCertainty splits the "Type::certainty" label. A missing or "NA"
// certainty returns the empty string.
func (e Entity) TypeAndCertainty() (entityType, certainty string) {
	parts := strings.SplitN(e.Label, "::", 2)
	entityType = parts[0]
	if len(parts) > 1 && parts[1] != "NA" {
		certainty = parts[1]
	}
	return entityType, certainty
}

// EntityGraph holds the entities of one (report, section) parse, preserving
// the order they appeared in the annotation payload. Relation targets are
// local ids; targets that do not resolve inside the graph are dropped by the
// triplet extractor.
type EntityGraph struct {
	ids      []string
	entities map[string]Entity
}

// NewEntityGraph returns an empty graph.
func NewEntityGraph() *EntityGraph {
	return &EntityGraph{entities: make(map[string]Entity)}
}

// Add inserts an entity. Re-adding an existing id replaces the entity but
// keeps its original position.
func (g *EntityGraph) Add(e Entity) {
	if _, ok := g.entities[e.ID]; !ok {
		g.ids = append(g.ids, e.ID)
	}
	g.entities[e.ID] = e
}

// Get looks up an entity by local id.
func (g *EntityGraph) Get(id string) (Entity, bool) {
	e, ok := g.entities[id]
	return e, ok
}

// Len reports the number of entities in the graph.
func (g *EntityGraph) Len() int {
	return len(g.ids)
}

// Entities returns the entities in insertion order.
func (g *EntityGraph) Entities() []Entity {
	out := make([]Entity, 0, len(g.ids))
	for _, id := range g.ids {
		out = append(out, g.entities[id])
	}
	return out
}

// Triplet is a (source, relation, target) edge resolved inside one entity
// graph, tagged with the owning report and section for batch analytics.
// Triplets are derived data: they can be regenerated from the graph at any
// time and are never the primary store of truth.
type Triplet struct {
	SourceEntity string  `json:"source_entity"`
	SourceType   string  `json:"source_type"`
	SourceID     string  `json:"source_id"`
	Relation     string  `json:"relation"`
	TargetEntity string  `json:"target_entity"`
	TargetType   string  `json:"target_type"`
	TargetID     string  `json:"target_id"`
	Certainty    string  `json:"certainty,omitempty"`
	ReportID     string  `json:"report_id"`
	Section      Section `json:"section"`
}
