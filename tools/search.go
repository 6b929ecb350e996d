package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"

	"github.com/athapong/radgraph-mcp/pkg/radgraph"
	"github.com/athapong/radgraph-mcp/pkg/search"
	"github.com/athapong/radgraph-mcp/pkg/state"
	"github.com/athapong/radgraph-mcp/services"
	"github.com/athapong/radgraph-mcp/util"
)

// Dependencies bundles what the search and knowledge tools share: the fusion
// engine, the query embedder, the annotation parser and the session working
// state the tools hand results to each other through.
type Dependencies struct {
	Engine   *search.Engine
	Embedder services.Embedder
	Parser   *radgraph.Parser
	State    *state.Store
	Logger   *logrus.Logger
}

func RegisterSearchTools(s *server.MCPServer, deps *Dependencies) {
	bm25Tool := mcp.NewTool("search_reports_bm25",
		mcp.WithDescription("Search radiology reports with BM25 keyword matching over the report text"),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query, e.g. 'bilateral pleural effusion'")),
		mcp.WithNumber("top_n", mcp.Description("Number of results to return (default 10)")),
		mcp.WithString("filters", mcp.Description("JSON object of CheXbert label filters, e.g. {\"Pneumonia\": 1.0}")),
	)
	s.AddTool(bm25Tool, util.ErrorGuard(deps.searchBM25Handler))

	knnTool := mcp.NewTool("search_reports_knn",
		mcp.WithDescription("Search radiology reports by embedding similarity (semantic kNN)"),
		mcp.WithString("query", mcp.Required(), mcp.Description("Natural-language query to embed and match")),
		mcp.WithNumber("top_n", mcp.Description("Number of results to return (default 10)")),
		mcp.WithString("filters", mcp.Description("JSON object of CheXbert label filters, e.g. {\"Pneumonia\": 1.0}")),
	)
	s.AddTool(knnTool, util.ErrorGuard(deps.searchKNNHandler))

	hybridTool := mcp.NewTool("search_reports_hybrid",
		mcp.WithDescription("Hybrid search: BM25 and semantic kNN run in parallel and merge with Reciprocal Rank Fusion"),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query")),
		mcp.WithNumber("top_k_stage1", mcp.Description("Per-retriever candidate count before fusion (default 100)")),
		mcp.WithNumber("top_n_final", mcp.Description("Number of fused results to return (default 10)")),
		mcp.WithNumber("rrf_k", mcp.Description("RRF rank constant (default 60)")),
		mcp.WithString("filters", mcp.Description("JSON object of CheXbert label filters, e.g. {\"Pneumonia\": 1.0}")),
	)
	s.AddTool(hybridTool, util.ErrorGuard(deps.searchHybridHandler))
}

func (d *Dependencies) searchBM25Handler(arguments map[string]interface{}) (*mcp.CallToolResult, error) {
	query, ok := arguments["query"].(string)
	if !ok || strings.TrimSpace(query) == "" {
		return mcp.NewToolResultError("query must be a non-empty string"), nil
	}
	filters, err := filtersArg(arguments)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	resp := d.Engine.SearchLexical(context.Background(), query, intArg(arguments, "top_n"), filters)
	d.saveSearch(query, resp)
	return jsonResult(resp)
}

func (d *Dependencies) searchKNNHandler(arguments map[string]interface{}) (*mcp.CallToolResult, error) {
	query, ok := arguments["query"].(string)
	if !ok || strings.TrimSpace(query) == "" {
		return mcp.NewToolResultError("query must be a non-empty string"), nil
	}
	filters, err := filtersArg(arguments)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if d.Embedder == nil {
		return mcp.NewToolResultError("embeddings not configured, set OPENAI_API_KEY"), nil
	}
	ctx := context.Background()
	vector, err := d.Embedder.EmbedText(ctx, query)
	if err != nil {
		d.Logger.Errorf("query embedding failed: %v", err)
		return mcp.NewToolResultError(err.Error()), nil
	}

	resp := d.Engine.SearchVector(ctx, query, vector, intArg(arguments, "top_n"), filters)
	d.saveSearch(query, resp)
	return jsonResult(resp)
}

func (d *Dependencies) searchHybridHandler(arguments map[string]interface{}) (*mcp.CallToolResult, error) {
	query, ok := arguments["query"].(string)
	if !ok || strings.TrimSpace(query) == "" {
		return mcp.NewToolResultError("query must be a non-empty string"), nil
	}
	filters, err := filtersArg(arguments)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if d.Embedder == nil {
		return mcp.NewToolResultError("embeddings not configured, set OPENAI_API_KEY"), nil
	}
	ctx := context.Background()
	vector, err := d.Embedder.EmbedText(ctx, query)
	if err != nil {
		d.Logger.Errorf("query embedding failed: %v", err)
		return mcp.NewToolResultError(err.Error()), nil
	}

	resp := d.Engine.SearchHybrid(ctx, query, vector, search.HybridParams{
		TopKStage1: intArg(arguments, "top_k_stage1"),
		TopNFinal:  intArg(arguments, "top_n_final"),
		RRFK:       intArg(arguments, "rrf_k"),
		Filters:    filters,
	})
	d.saveSearch(query, resp)
	return jsonResult(resp)
}

// saveSearch publishes the candidate set for the knowledge tools. Failed
// searches leave the previous working set intact so a transient backend error
// does not wipe an agent's session.
func (d *Dependencies) saveSearch(query string, resp *search.Response) {
	if resp.Status == search.StatusError {
		return
	}
	d.State.Set(state.KeySearchResults, resp)
	d.State.Set(state.KeySearchMetadata, resp.SearchMetadata)
	d.State.Touch(query)
}

func intArg(arguments map[string]interface{}, key string) int {
	if v, ok := arguments[key].(float64); ok {
		return int(v)
	}
	return 0
}

func filtersArg(arguments map[string]interface{}) (map[string]float64, error) {
	raw, ok := arguments["filters"].(string)
	if !ok || strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	filters := map[string]float64{}
	if err := json.Unmarshal([]byte(raw), &filters); err != nil {
		return nil, fmt.Errorf("filters must be a JSON object of label to value: %v", err)
	}
	return filters, nil
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
