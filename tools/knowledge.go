package tools

import (
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/athapong/radgraph-mcp/pkg/analytics"
	"github.com/athapong/radgraph-mcp/pkg/metrics"
	"github.com/athapong/radgraph-mcp/pkg/radgraph"
	"github.com/athapong/radgraph-mcp/pkg/report"
	"github.com/athapong/radgraph-mcp/pkg/search"
	"github.com/athapong/radgraph-mcp/pkg/state"
	"github.com/athapong/radgraph-mcp/util"
)

func RegisterKnowledgeTools(s *server.MCPServer, deps *Dependencies) {
	entitiesTool := mcp.NewTool("extract_radgraph_entities",
		mcp.WithDescription("Extract and categorize RadGraph entities from the current search results by type and certainty"),
	)
	s.AddTool(entitiesTool, util.ErrorGuard(deps.extractEntitiesHandler))

	tripletsTool := mcp.NewTool("extract_relationship_triplets",
		mcp.WithDescription("Build entity-relation-entity triplets from RadGraph annotations in the current search results"),
	)
	s.AddTool(tripletsTool, util.ErrorGuard(deps.extractTripletsHandler))

	cooccurrenceTool := mcp.NewTool("analyze_cooccurrence_patterns",
		mcp.WithDescription("Analyze which observations co-occur across the current search results"),
		mcp.WithString("focus_observations", mcp.Description("Comma-separated observations to focus on, e.g. 'effusion,cardiomegaly'. Analyzes all observations when omitted")),
	)
	s.AddTool(cooccurrenceTool, util.ErrorGuard(deps.cooccurrenceHandler))

	validateTool := mcp.NewTool("validate_against_chexbert",
		mcp.WithDescription("Cross-validate RadGraph observations against CheXbert labels for the current search results"),
	)
	s.AddTool(validateTool, util.ErrorGuard(deps.validateChexbertHandler))

	anatomicalTool := mcp.NewTool("extract_anatomical_locations",
		mcp.WithDescription("Map observations to their anatomical locations from located_at relationships"),
	)
	s.AddTool(anatomicalTool, util.ErrorGuard(deps.anatomicalLocationsHandler))

	causalTool := mcp.NewTool("identify_causal_relationships",
		mcp.WithDescription("Identify causal chains and suggestive relationships from RadGraph relation patterns"),
		mcp.WithString("focus_entity", mcp.Description("Optional entity to highlight in the analysis metadata")),
	)
	s.AddTool(causalTool, util.ErrorGuard(deps.causalRelationshipsHandler))
}

// ContextEntity is a categorized entity annotated with the report it came
// from, so aggregated buckets stay traceable across the batch.
type ContextEntity struct {
	radgraph.CategorizedEntity
	ReportID  string           `json:"report_id"`
	PatientID string           `json:"patient_id,omitempty"`
	Section   radgraph.Section `json:"section"`
}

// EntityBuckets aggregates categorized entities across the whole batch.
type EntityBuckets struct {
	Anatomies             []ContextEntity `json:"anatomies"`
	ObservationsPresent   []ContextEntity `json:"observations_present"`
	ObservationsAbsent    []ContextEntity `json:"observations_absent"`
	ObservationsUncertain []ContextEntity `json:"observations_uncertain"`
	Modifiers             []ContextEntity `json:"modifiers"`
}

type entityExtractionMetadata struct {
	ReportsAnalyzed  int            `json:"reports_analyzed"`
	TotalEntities    int            `json:"total_entities"`
	SectionsAnalyzed []string       `json:"sections_analyzed"`
	EntityCounts     map[string]int `json:"entity_counts"`
}

type entityExtraction struct {
	Status         string                   `json:"status"`
	Metadata       entityExtractionMetadata `json:"analysis_metadata"`
	EntitiesByType EntityBuckets            `json:"entities_by_type"`
	AllEntities    []ContextEntity          `json:"all_entities"`
}

// reportSections fixes the processing order of the two annotated sections.
var reportSections = []struct {
	name radgraph.Section
	raw  func(report.Report) string
}{
	{radgraph.SectionImpression, func(r report.Report) string { return r.RadgraphImpression }},
	{radgraph.SectionFindings, func(r report.Report) string { return r.RadgraphFindings }},
}

func (d *Dependencies) extractEntitiesHandler(arguments map[string]interface{}) (*mcp.CallToolResult, error) {
	candidates, ok := d.candidates()
	if !ok {
		return noInputResult()
	}

	var buckets EntityBuckets
	var allEntities []ContextEntity

	appendBucket := func(dst []ContextEntity, entities []radgraph.CategorizedEntity, c search.Candidate, section radgraph.Section) []ContextEntity {
		for _, e := range entities {
			ce := ContextEntity{
				CategorizedEntity: e,
				ReportID:          c.ID,
				PatientID:         c.PatientID,
				Section:           section,
			}
			dst = append(dst, ce)
			allEntities = append(allEntities, ce)
		}
		return dst
	}

	for _, c := range candidates {
		for _, section := range reportSections {
			raw := section.raw(c.Report)
			if strings.TrimSpace(raw) == "" {
				continue
			}
			cats := radgraph.Categorize(d.Parser.Parse(raw))
			buckets.Anatomies = appendBucket(buckets.Anatomies, cats.Anatomies, c, section.name)
			buckets.ObservationsPresent = appendBucket(buckets.ObservationsPresent, cats.ObservationsPresent, c, section.name)
			buckets.ObservationsAbsent = appendBucket(buckets.ObservationsAbsent, cats.ObservationsAbsent, c, section.name)
			buckets.ObservationsUncertain = appendBucket(buckets.ObservationsUncertain, cats.ObservationsUncertain, c, section.name)
			buckets.Modifiers = appendBucket(buckets.Modifiers, cats.Modifiers, c, section.name)
		}
	}

	observations := len(buckets.ObservationsPresent) + len(buckets.ObservationsAbsent) + len(buckets.ObservationsUncertain)
	metrics.EntitiesExtracted.WithLabelValues(radgraph.TypeAnatomy).Add(float64(len(buckets.Anatomies)))
	metrics.EntitiesExtracted.WithLabelValues(radgraph.TypeObservation).Add(float64(observations))
	metrics.EntitiesExtracted.WithLabelValues(radgraph.TypeModifier).Add(float64(len(buckets.Modifiers)))

	result := entityExtraction{
		Status: search.StatusSuccess,
		Metadata: entityExtractionMetadata{
			ReportsAnalyzed:  len(candidates),
			TotalEntities:    len(allEntities),
			SectionsAnalyzed: []string{string(radgraph.SectionImpression), string(radgraph.SectionFindings)},
			EntityCounts: map[string]int{
				"anatomies":              len(buckets.Anatomies),
				"observations_present":   len(buckets.ObservationsPresent),
				"observations_absent":    len(buckets.ObservationsAbsent),
				"observations_uncertain": len(buckets.ObservationsUncertain),
				"modifiers":              len(buckets.Modifiers),
			},
		},
		EntitiesByType: buckets,
		AllEntities:    allEntities,
	}

	d.State.Set(state.KeyEntities, buckets)
	d.State.Set(state.KeyEntitiesFull, allEntities)

	if len(allEntities) == 0 {
		d.Logger.Warnf("no RadGraph entities extracted from %d reports, annotation fields may be absent or misnamed", len(candidates))
	} else {
		d.Logger.Infof("extracted %d entities from %d reports", len(allEntities), len(candidates))
	}
	return jsonResult(result)
}

type relationEntry struct {
	Entity    string `json:"entity"`
	Target    string `json:"target"`
	ReportID  string `json:"report_id"`
	Certainty string `json:"certainty,omitempty"`
}

type tripletMetadata struct {
	TotalTriplets       int            `json:"total_triplets"`
	RelationTypes       []string       `json:"relation_types"`
	MostCommonRelations map[string]int `json:"most_common_relations"`
}

type tripletExtraction struct {
	Status             string                     `json:"status"`
	Metadata           tripletMetadata            `json:"triplet_metadata"`
	Triplets           []radgraph.Triplet         `json:"triplets"`
	TripletsByRelation map[string][]relationEntry `json:"triplets_by_relation"`
}

func (d *Dependencies) extractTripletsHandler(arguments map[string]interface{}) (*mcp.CallToolResult, error) {
	candidates, ok := d.candidates()
	if !ok {
		return noInputResult()
	}

	triplets := d.extractAllTriplets(candidates)

	relationCounts := make(map[string]int)
	var relationOrder []string
	byRelation := make(map[string][]relationEntry)
	for _, t := range triplets {
		if _, seen := relationCounts[t.Relation]; !seen {
			relationOrder = append(relationOrder, t.Relation)
		}
		relationCounts[t.Relation]++
		byRelation[t.Relation] = append(byRelation[t.Relation], relationEntry{
			Entity:    t.SourceEntity,
			Target:    t.TargetEntity,
			ReportID:  t.ReportID,
			Certainty: t.Certainty,
		})
	}

	// Top relation types by frequency, capped at ten.
	topRelations := append([]string(nil), relationOrder...)
	sort.SliceStable(topRelations, func(i, j int) bool {
		return relationCounts[topRelations[i]] > relationCounts[topRelations[j]]
	})
	if len(topRelations) > 10 {
		topRelations = topRelations[:10]
	}
	mostCommon := make(map[string]int, len(topRelations))
	for _, rel := range topRelations {
		mostCommon[rel] = relationCounts[rel]
	}

	result := tripletExtraction{
		Status: search.StatusSuccess,
		Metadata: tripletMetadata{
			TotalTriplets:       len(triplets),
			RelationTypes:       relationOrder,
			MostCommonRelations: mostCommon,
		},
		Triplets:           triplets,
		TripletsByRelation: byRelation,
	}

	d.State.Set(state.KeyTriplets, triplets)

	d.Logger.Infof("extracted %d relationship triplets across %d relation types", len(triplets), len(relationOrder))
	return jsonResult(result)
}

type patternMetadata struct {
	ReportsAnalyzed    int      `json:"reports_analyzed"`
	UniqueObservations int      `json:"unique_observations"`
	PatternsFound      int      `json:"patterns_found"`
	FocusObservations  []string `json:"focus_observations,omitempty"`
}

type cooccurrenceAnalysis struct {
	Status                 string                                 `json:"status"`
	Metadata               patternMetadata                        `json:"pattern_metadata"`
	CooccurrencePatterns   map[string]analytics.CooccurrenceStats `json:"cooccurrence_patterns"`
	AnatomicalDistribution map[string]map[string]int              `json:"anatomical_distribution"`
	CommonModifiers        map[string]map[string]int              `json:"common_modifiers"`
}

func (d *Dependencies) cooccurrenceHandler(arguments map[string]interface{}) (*mcp.CallToolResult, error) {
	candidates, ok := d.candidates()
	if !ok {
		return noInputResult()
	}
	focus := listArg(arguments, "focus_observations")

	perReport := make([]analytics.ReportObservations, 0, len(candidates))
	var nameOrder []string
	seenNames := make(map[string]bool)
	for _, c := range candidates {
		obs := analytics.ReportObservations{ReportID: c.ID}
		for _, section := range reportSections {
			raw := section.raw(c.Report)
			if strings.TrimSpace(raw) == "" {
				continue
			}
			cats := radgraph.Categorize(d.Parser.Parse(raw))
			for _, e := range cats.ObservationsPresent {
				obs.Present = append(obs.Present, e.Text)
				if !seenNames[e.Text] {
					seenNames[e.Text] = true
					nameOrder = append(nameOrder, e.Text)
				}
			}
		}
		perReport = append(perReport, obs)
	}

	targets := focus
	if len(targets) == 0 {
		targets = nameOrder
	}
	cooc := analytics.Cooccurrence(perReport, targets)

	// Anatomy and modifier context comes from previously extracted triplets,
	// when the agent has run triplet extraction in this session.
	triplets := d.storedTriplets()

	result := cooccurrenceAnalysis{
		Status: search.StatusSuccess,
		Metadata: patternMetadata{
			ReportsAnalyzed:    len(candidates),
			UniqueObservations: len(nameOrder),
			PatternsFound:      len(cooc.Patterns),
			FocusObservations:  focus,
		},
		CooccurrencePatterns:   cooc.Patterns,
		AnatomicalDistribution: analytics.LocationCounts(triplets),
		CommonModifiers:        analytics.ModifierAssociations(triplets),
	}

	d.State.Set(state.KeyCooccurrence, result)

	d.Logger.Infof("analyzed %d co-occurrence patterns across %d reports", len(cooc.Patterns), len(candidates))
	return jsonResult(result)
}

type validationResult struct {
	Status    string                      `json:"status"`
	Metadata  validationMetadata          `json:"validation_metadata"`
	Matches   []analytics.ValidationEntry `json:"matches"`
	Conflicts []analytics.ValidationEntry `json:"conflicts"`
	Summary   analytics.ValidationSummary `json:"summary"`
}

type validationMetadata struct {
	ReportsAnalyzed  int     `json:"reports_analyzed"`
	TotalComparisons int     `json:"total_comparisons"`
	ConsistencyScore float64 `json:"consistency_score"`
	Matches          int     `json:"matches"`
	Conflicts        int     `json:"conflicts"`
}

func (d *Dependencies) validateChexbertHandler(arguments map[string]interface{}) (*mcp.CallToolResult, error) {
	candidates, ok := d.candidates()
	if !ok {
		return noInputResult()
	}

	docs := make([]analytics.ReportLabels, 0, len(candidates))
	for _, c := range candidates {
		doc := analytics.NewReportLabels(c.ID, c.ChexbertLabels)
		for _, section := range reportSections {
			raw := section.raw(c.Report)
			if strings.TrimSpace(raw) == "" {
				continue
			}
			cats := radgraph.Categorize(d.Parser.Parse(raw))
			for _, e := range cats.ObservationsPresent {
				doc.PresentObservations.Add(analytics.NormalizeTerm(e.Text))
			}
		}
		docs = append(docs, doc)
	}

	validation := analytics.ValidateLabels(docs)
	result := validationResult{
		Status: search.StatusSuccess,
		Metadata: validationMetadata{
			ReportsAnalyzed:  validation.ReportsAnalyzed,
			TotalComparisons: validation.TotalComparisons,
			ConsistencyScore: validation.ConsistencyScore,
			Matches:          validation.Summary.TotalMatches,
			Conflicts:        validation.Summary.TotalConflicts,
		},
		Matches:   validation.Matches,
		Conflicts: validation.Conflicts,
		Summary:   validation.Summary,
	}

	d.State.Set(state.KeyChexbertValidation, result)

	d.Logger.Infof("validated %d label comparisons, consistency score %.2f", validation.TotalComparisons, validation.ConsistencyScore)
	return jsonResult(result)
}

type locationResult struct {
	Status   string `json:"status"`
	Metadata struct {
		ObservationsWithLocation    int `json:"observations_with_location"`
		ObservationsWithoutLocation int `json:"observations_without_location"`
		UniqueAnatomies             int `json:"unique_anatomies"`
		TotalLocationRelationships  int `json:"total_location_relationships"`
	} `json:"location_metadata"`
	ObservationLocations map[string][]analytics.LocationCount  `json:"observation_locations"`
	AnatomyFrequency     map[string]analytics.AnatomyFrequency `json:"anatomy_frequency"`
}

func (d *Dependencies) anatomicalLocationsHandler(arguments map[string]interface{}) (*mcp.CallToolResult, error) {
	triplets, ok := d.tripletsOrExtract()
	if !ok {
		return noInputResult()
	}

	dist := analytics.AnatomicalDistribution(triplets)
	var result locationResult
	result.Status = search.StatusSuccess
	result.Metadata.ObservationsWithLocation = dist.ObservationsWithLocation
	result.Metadata.ObservationsWithoutLocation = dist.ObservationsWithoutLocation
	result.Metadata.UniqueAnatomies = dist.UniqueAnatomies
	result.Metadata.TotalLocationRelationships = dist.TotalLocationRelationships
	result.ObservationLocations = dist.ObservationLocations
	result.AnatomyFrequency = dist.AnatomyFrequency

	d.State.Set(state.KeyAnatomicalLocations, result)

	d.Logger.Infof("extracted %d location relationships covering %d observations",
		dist.TotalLocationRelationships, dist.ObservationsWithLocation)
	return jsonResult(result)
}

type causalResult struct {
	Status   string `json:"status"`
	Metadata struct {
		CausalChainsFound        int    `json:"causal_chains_found"`
		SuggestiveRelationsFound int    `json:"suggestive_relations_found"`
		FocusEntity              string `json:"focus_entity,omitempty"`
	} `json:"causal_metadata"`
	CausalChains            []analytics.CausalChain        `json:"causal_chains"`
	SuggestiveRelationships []analytics.SuggestiveRelation `json:"suggestive_relationships"`
}

func (d *Dependencies) causalRelationshipsHandler(arguments map[string]interface{}) (*mcp.CallToolResult, error) {
	triplets, ok := d.tripletsOrExtract()
	if !ok {
		return noInputResult()
	}
	focusEntity, _ := arguments["focus_entity"].(string)

	chains := analytics.CausalChains(triplets)
	suggestive := analytics.SuggestiveRelationships(triplets)

	var result causalResult
	result.Status = search.StatusSuccess
	result.Metadata.CausalChainsFound = len(chains)
	result.Metadata.SuggestiveRelationsFound = len(suggestive)
	result.Metadata.FocusEntity = focusEntity
	if len(chains) > analytics.MaxCausalChains {
		chains = chains[:analytics.MaxCausalChains]
	}
	result.CausalChains = chains
	result.SuggestiveRelationships = suggestive

	d.State.Set(state.KeyCausalRelationships, result)

	d.Logger.Infof("identified %d causal chains and %d suggestive relationships",
		result.Metadata.CausalChainsFound, len(suggestive))
	return jsonResult(result)
}

// candidates loads the current search batch from session state.
func (d *Dependencies) candidates() ([]search.Candidate, bool) {
	v, ok := d.State.Get(state.KeySearchResults)
	if !ok {
		return nil, false
	}
	resp, ok := v.(*search.Response)
	if !ok || len(resp.Results) == 0 {
		return nil, false
	}
	return resp.Results, true
}

// storedTriplets returns triplets from a previous extraction, or nil.
func (d *Dependencies) storedTriplets() []radgraph.Triplet {
	if v, ok := d.State.Get(state.KeyTriplets); ok {
		if t, ok := v.([]radgraph.Triplet); ok {
			return t
		}
	}
	return nil
}

// tripletsOrExtract returns the session's triplets, extracting them from the
// current search batch when triplet extraction has not run yet.
func (d *Dependencies) tripletsOrExtract() ([]radgraph.Triplet, bool) {
	if triplets := d.storedTriplets(); triplets != nil {
		return triplets, true
	}
	candidates, ok := d.candidates()
	if !ok {
		return nil, false
	}
	triplets := d.extractAllTriplets(candidates)
	d.State.Set(state.KeyTriplets, triplets)
	return triplets, true
}

// extractAllTriplets parses both annotated sections of every candidate and
// flattens the per-graph triplets into one batch, candidate order preserved.
func (d *Dependencies) extractAllTriplets(candidates []search.Candidate) []radgraph.Triplet {
	var triplets []radgraph.Triplet
	for _, c := range candidates {
		for _, section := range reportSections {
			raw := section.raw(c.Report)
			if strings.TrimSpace(raw) == "" {
				continue
			}
			graph := d.Parser.Parse(raw)
			triplets = append(triplets, radgraph.ExtractTriplets(graph, c.ID, section.name)...)
		}
	}
	return triplets
}

func noInputResult() (*mcp.CallToolResult, error) {
	return jsonResult(map[string]interface{}{
		"status":  search.StatusNoInput,
		"message": "no search results in session state, run a search first",
	})
}

func listArg(arguments map[string]interface{}, key string) []string {
	raw, _ := arguments[key].(string)
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
