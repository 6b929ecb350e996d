package radgraph

import (
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/athapong/radgraph-mcp/pkg/metrics"
)

// Parser normalizes the annotation encodings seen across ingestion paths into
// one canonical EntityGraph. Three encodings occur in the corpus:
//
//  1. Pre-reduced triplet strings: ["opacity:located_at:lung", ...]
//  2. Nested structure: [{"0": {"text": "...", "entities": {...}}}]
//  3. Direct entity map: {"1": {"tokens": "...", "label": "...", ...}}
//
// Parsing is total: malformed payloads degrade to an empty graph and a log
// line, never an error. Corpus noise must not fail a whole batch.
type Parser struct {
	logger *logrus.Logger
}

// NewParser creates a parser. A nil logger falls back to the logrus default.
func NewParser(logger *logrus.Logger) *Parser {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Parser{logger: logger}
}

// Parse decodes one raw annotation field into an EntityGraph. The input is
// the raw JSON of the field as stored in the document source; an empty
// string, "null", "[]" or an empty list all mean "no annotations".
func (p *Parser) Parse(raw string) *EntityGraph {
	graph := NewEntityGraph()

	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" || raw == "[]" || raw == `""` {
		return graph
	}

	value := gjson.Parse(raw)

	// Annotation fields are sometimes stored as a JSON string holding the
	// real payload. Unwrap one level.
	if value.Type == gjson.String {
		inner := strings.TrimSpace(value.String())
		if inner == "" || inner == "[]" {
			return graph
		}
		value = gjson.Parse(inner)
	}

	switch {
	case value.IsArray():
		items := value.Array()
		if len(items) == 0 {
			return graph
		}
		if items[0].Type == gjson.String && strings.Contains(items[0].String(), ":") {
			p.parseTriplets(items, graph)
			return graph
		}
		// Nested structure: unwrap the first list element.
		p.parseNested(items[0], graph)
	case value.IsObject():
		p.parseNested(value, graph)
	default:
		metrics.AnnotationParseErrors.Inc()
		p.logger.Warnf("failed to parse radgraph annotation: unsupported payload %q", truncate(raw, 80))
	}
	return graph
}

// parseTriplets rebuilds an entity graph from pre-reduced triplet strings.
// No certainty information survives the reduction, so new source nodes
// default to "definitely present" and target types are inferred from the
// relation. Repeated texts resolve to the same node, never duplicates.
func (p *Parser) parseTriplets(items []gjson.Result, graph *EntityGraph) {
	idByText := make(map[string]string)
	relations := make(map[string][]Relation)
	counter := 0

	intern := func(text, label string) string {
		id, ok := idByText[text]
		if !ok {
			id = strconv.Itoa(counter)
			counter++
			idByText[text] = id
			graph.Add(Entity{ID: id, Text: text, Label: label})
		}
		return id
	}

	for _, item := range items {
		if item.Type != gjson.String {
			continue
		}
		parts := strings.Split(item.String(), ":")
		if len(parts) != 3 {
			p.logger.Debugf("skipping malformed triplet %q", item.String())
			continue
		}
		sourceText, relation, targetText := parts[0], parts[1], parts[2]

		sourceID := intern(sourceText, TypeObservation+"::"+CertaintyPresent)

		targetLabel := TypeModifier + "::NA"
		if relation == RelationLocatedAt {
			targetLabel = TypeAnatomy + "::NA"
		}
		targetID := intern(targetText, targetLabel)

		relations[sourceID] = append(relations[sourceID], Relation{Type: relation, TargetID: targetID})
	}

	for id, rels := range relations {
		entity, _ := graph.Get(id)
		entity.Relations = rels
		graph.Add(entity)
	}
}

// parseNested decodes the nested and direct-map encodings. The nested form
// wraps the entity map one dict level down under the first key, inside an
// "entities" field; the direct form is the entity map itself.
func (p *Parser) parseNested(value gjson.Result, graph *EntityGraph) {
	if !value.IsObject() {
		metrics.AnnotationParseErrors.Inc()
		p.logger.Warnf("failed to parse radgraph annotation: expected object, got %s", value.Type)
		return
	}

	entityMap := value
	var firstValue gjson.Result
	value.ForEach(func(_, v gjson.Result) bool {
		firstValue = v
		return false
	})
	if firstValue.IsObject() && firstValue.Get("entities").Exists() {
		entityMap = firstValue.Get("entities")
	}
	if !entityMap.IsObject() {
		return
	}

	entityMap.ForEach(func(key, data gjson.Result) bool {
		if !data.IsObject() {
			// Non-dict entries are individual noise, not a fatal condition.
			return true
		}
		entity := Entity{
			ID:    key.String(),
			Text:  data.Get("tokens").String(),
			Label: data.Get("label").String(),
		}
		data.Get("relations").ForEach(func(_, rel gjson.Result) bool {
			pair := rel.Array()
			if len(pair) == 2 {
				entity.Relations = append(entity.Relations, Relation{
					Type:     pair[0].String(),
					TargetID: pair[1].String(),
				})
			}
			return true
		})
		graph.Add(entity)
		return true
	})
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
