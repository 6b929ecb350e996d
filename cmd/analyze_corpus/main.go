// Command analyze_corpus runs one retrieval plus the full annotation
// analytics pipeline from the command line and writes the combined report as
// JSON. Useful for batch corpus studies without an MCP client in the loop.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/athapong/radgraph-mcp/pkg/analytics"
	"github.com/athapong/radgraph-mcp/pkg/radgraph"
	"github.com/athapong/radgraph-mcp/pkg/search"
	"github.com/athapong/radgraph-mcp/services"
)

var (
	query      = flag.String("query", "", "Search query to select the report batch")
	envFile    = flag.String("env", ".env", "Path to environment file")
	topKStage1 = flag.Int("top-k-stage1", search.DefaultTopKStage1, "Per-retriever candidate count before fusion")
	topNFinal  = flag.Int("top-n", search.DefaultTopNFinal, "Number of fused results to analyze")
	rrfK       = flag.Int("rrf-k", search.DefaultRRFK, "RRF rank constant")
	outputFile = flag.String("output", "corpus_analysis.json", "Output file path for the analysis report")
	logLevel   = flag.String("log-level", "info", "Logging level (debug, info, warn, error)")
)

type corpusAnalysis struct {
	Query          string                         `json:"query"`
	GeneratedAt    string                         `json:"generated_at"`
	SearchMetadata search.Metadata                `json:"search_metadata"`
	ReportIDs      []string                       `json:"report_ids"`
	EntityCounts   map[string]int                 `json:"entity_counts"`
	Triplets       []radgraph.Triplet             `json:"triplets"`
	Cooccurrence   analytics.CooccurrenceReport   `json:"cooccurrence"`
	Anatomical     analytics.AnatomicalReport     `json:"anatomical_distribution"`
	CausalChains   []analytics.CausalChain        `json:"causal_chains"`
	Suggestive     []analytics.SuggestiveRelation `json:"suggestive_relationships"`
	Modifiers      map[string]map[string]int      `json:"modifier_associations"`
	Validation     analytics.ValidationReport     `json:"chexbert_validation"`
}

func main() {
	flag.Parse()

	logger := logrus.New()
	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		logger.Fatalf("Invalid log level: %v", err)
	}
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	if *query == "" {
		logger.Fatal("Query must be specified")
	}

	if err := godotenv.Load(*envFile); err != nil {
		logger.Warnf("Error loading env file %s: %v", *envFile, err)
	}

	ctx := context.Background()
	esClient := services.NewElasticsearchClient(services.ElasticsearchConfigFromEnv(), logger)
	engine := search.NewEngine(esClient, esClient, logger)

	resp := runSearch(ctx, engine, logger)
	if resp.Status == search.StatusError {
		logger.Fatalf("Search failed: %s", resp.SearchMetadata.Error)
	}
	if len(resp.Results) == 0 {
		logger.Fatal("Search returned no results, nothing to analyze")
	}
	logger.Infof("Analyzing %d reports...", len(resp.Results))

	analysis := analyze(*query, resp, logger)

	data, err := json.MarshalIndent(analysis, "", "  ")
	if err != nil {
		logger.Fatalf("Failed to encode analysis: %v", err)
	}
	if err := os.WriteFile(*outputFile, data, 0o644); err != nil {
		logger.Fatalf("Failed to write %s: %v", *outputFile, err)
	}
	logger.Infof("Analysis written to %s", *outputFile)
}

// runSearch prefers hybrid retrieval and falls back to BM25 when no embedding
// backend is configured.
func runSearch(ctx context.Context, engine *search.Engine, logger *logrus.Logger) *search.Response {
	embedder, err := services.NewOpenAIEmbedderFromEnv()
	if err != nil {
		logger.Warnf("Embeddings unavailable (%v), falling back to BM25 only", err)
		return engine.SearchLexical(ctx, *query, *topNFinal, nil)
	}

	vector, err := embedder.EmbedText(ctx, *query)
	if err != nil {
		logger.Warnf("Query embedding failed (%v), falling back to BM25 only", err)
		return engine.SearchLexical(ctx, *query, *topNFinal, nil)
	}

	return engine.SearchHybrid(ctx, *query, vector, search.HybridParams{
		TopKStage1: *topKStage1,
		TopNFinal:  *topNFinal,
		RRFK:       *rrfK,
	})
}

func analyze(query string, resp *search.Response, logger *logrus.Logger) corpusAnalysis {
	parser := radgraph.NewParser(logger)

	sections := []struct {
		name radgraph.Section
		raw  func(i int) string
	}{
		{radgraph.SectionImpression, func(i int) string { return resp.Results[i].RadgraphImpression }},
		{radgraph.SectionFindings, func(i int) string { return resp.Results[i].RadgraphFindings }},
	}

	entityCounts := map[string]int{
		"anatomies":              0,
		"observations_present":   0,
		"observations_absent":    0,
		"observations_uncertain": 0,
		"modifiers":              0,
	}
	var triplets []radgraph.Triplet
	var reportIDs []string
	perReport := make([]analytics.ReportObservations, 0, len(resp.Results))
	docs := make([]analytics.ReportLabels, 0, len(resp.Results))
	var nameOrder []string
	seenNames := make(map[string]bool)

	for i, c := range resp.Results {
		reportIDs = append(reportIDs, c.ID)
		obs := analytics.ReportObservations{ReportID: c.ID}
		doc := analytics.NewReportLabels(c.ID, c.ChexbertLabels)

		for _, section := range sections {
			raw := section.raw(i)
			if strings.TrimSpace(raw) == "" {
				continue
			}
			graph := parser.Parse(raw)
			cats := radgraph.Categorize(graph)

			entityCounts["anatomies"] += len(cats.Anatomies)
			entityCounts["observations_present"] += len(cats.ObservationsPresent)
			entityCounts["observations_absent"] += len(cats.ObservationsAbsent)
			entityCounts["observations_uncertain"] += len(cats.ObservationsUncertain)
			entityCounts["modifiers"] += len(cats.Modifiers)

			for _, e := range cats.ObservationsPresent {
				obs.Present = append(obs.Present, e.Text)
				doc.PresentObservations.Add(analytics.NormalizeTerm(e.Text))
				if !seenNames[e.Text] {
					seenNames[e.Text] = true
					nameOrder = append(nameOrder, e.Text)
				}
			}

			triplets = append(triplets, radgraph.ExtractTriplets(graph, c.ID, section.name)...)
		}
		perReport = append(perReport, obs)
		docs = append(docs, doc)
	}

	chains := analytics.CausalChains(triplets)
	if len(chains) > analytics.MaxCausalChains {
		chains = chains[:analytics.MaxCausalChains]
	}

	return corpusAnalysis{
		Query:          query,
		GeneratedAt:    time.Now().UTC().Format(time.RFC3339),
		SearchMetadata: resp.SearchMetadata,
		ReportIDs:      reportIDs,
		EntityCounts:   entityCounts,
		Triplets:       triplets,
		Cooccurrence:   analytics.Cooccurrence(perReport, nameOrder),
		Anatomical:     analytics.AnatomicalDistribution(triplets),
		CausalChains:   chains,
		Suggestive:     analytics.SuggestiveRelationships(triplets),
		Modifiers:      analytics.ModifierAssociations(triplets),
		Validation:     analytics.ValidateLabels(docs),
	}
}
