package tools

import (
	"context"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/athapong/radgraph-mcp/pkg/radgraph"
	"github.com/athapong/radgraph-mcp/pkg/report"
	"github.com/athapong/radgraph-mcp/pkg/search"
	"github.com/athapong/radgraph-mcp/pkg/state"
)

type stubLexical struct {
	hits []search.Hit
	err  error
}

func (s *stubLexical) Search(_ context.Context, _ string, _ int) ([]search.Hit, error) {
	return s.hits, s.err
}

type stubVector struct {
	hits []search.Hit
	err  error
}

func (s *stubVector) SearchKNN(_ context.Context, _ []float32, _, _ int) ([]search.Hit, error) {
	return s.hits, s.err
}

type stubEmbedder struct {
	vector []float32
	err    error
}

func (s *stubEmbedder) EmbedText(_ context.Context, _ string) ([]float32, error) {
	return s.vector, s.err
}

func newTestDeps(lexical *stubLexical, vector *stubVector) *Dependencies {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return &Dependencies{
		Engine:   search.NewEngine(lexical, vector, logger),
		Embedder: &stubEmbedder{vector: []float32{0.1, 0.2}},
		Parser:   radgraph.NewParser(logger),
		State:    state.NewStore(),
		Logger:   logger,
	}
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")
	return text.Text
}

func sampleHits() []search.Hit {
	return []search.Hit{
		{DocID: "rpt-1", Score: 9.1, Report: &report.Report{
			ID:   "rpt-1",
			Text: "Small right pleural effusion.",
		}},
		{DocID: "rpt-2", Score: 4.2, Report: &report.Report{
			ID:   "rpt-2",
			Text: "No acute findings.",
		}},
	}
}

func TestSearchBM25HandlerSavesState(t *testing.T) {
	deps := newTestDeps(&stubLexical{hits: sampleHits()}, &stubVector{})

	res, err := deps.searchBM25Handler(map[string]interface{}{"query": "effusion", "top_n": 5.0})
	require.NoError(t, err)

	body := resultText(t, res)
	assert.Equal(t, "success", gjson.Get(body, "status").String())
	assert.Equal(t, "bm25", gjson.Get(body, "search_metadata.strategy").String())
	assert.Equal(t, int64(2), gjson.Get(body, "search_metadata.result_count").Int())
	assert.Equal(t, "rpt-1", gjson.Get(body, "results.0.report_id").String())

	stored, ok := deps.State.Get(state.KeySearchResults)
	require.True(t, ok)
	resp, ok := stored.(*search.Response)
	require.True(t, ok)
	assert.Len(t, resp.Results, 2)

	query, ok := deps.State.Get(state.KeyLastSearchQuery)
	require.True(t, ok)
	assert.Equal(t, "effusion", query)
}

func TestSearchHandlerRequiresQuery(t *testing.T) {
	deps := newTestDeps(&stubLexical{}, &stubVector{})

	res, err := deps.searchBM25Handler(map[string]interface{}{})
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestSearchHandlerErrorKeepsPreviousState(t *testing.T) {
	deps := newTestDeps(&stubLexical{err: errors.New("connection refused")}, &stubVector{})
	deps.State.Set(state.KeySearchResults, &search.Response{Status: search.StatusSuccess})

	res, err := deps.searchBM25Handler(map[string]interface{}{"query": "effusion"})
	require.NoError(t, err)

	body := resultText(t, res)
	assert.Equal(t, "error", gjson.Get(body, "status").String())

	stored, ok := deps.State.Get(state.KeySearchResults)
	require.True(t, ok)
	assert.Equal(t, search.StatusSuccess, stored.(*search.Response).Status)
}

func TestSearchHybridHandler(t *testing.T) {
	deps := newTestDeps(
		&stubLexical{hits: sampleHits()},
		&stubVector{hits: []search.Hit{{DocID: "rpt-2", Score: 0.9}}},
	)

	res, err := deps.searchHybridHandler(map[string]interface{}{
		"query": "effusion",
		"rrf_k": 60.0,
	})
	require.NoError(t, err)

	body := resultText(t, res)
	assert.Equal(t, "success", gjson.Get(body, "status").String())
	assert.Equal(t, "hybrid_rrf", gjson.Get(body, "search_metadata.strategy").String())
	// rpt-2 ranks first: it appears in both retrievers.
	assert.Equal(t, "rpt-2", gjson.Get(body, "results.0.report_id").String())
}

func TestSearchKNNHandlerEmbeddingFailure(t *testing.T) {
	deps := newTestDeps(&stubLexical{}, &stubVector{hits: sampleHits()})
	deps.Embedder = &stubEmbedder{err: errors.New("embedding unavailable: api down")}

	res, err := deps.searchKNNHandler(map[string]interface{}{"query": "effusion"})
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestSearchKNNHandlerNoEmbedder(t *testing.T) {
	deps := newTestDeps(&stubLexical{}, &stubVector{})
	deps.Embedder = nil

	res, err := deps.searchKNNHandler(map[string]interface{}{"query": "effusion"})
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestSearchHandlerBadFilters(t *testing.T) {
	deps := newTestDeps(&stubLexical{}, &stubVector{})

	res, err := deps.searchBM25Handler(map[string]interface{}{
		"query":   "effusion",
		"filters": "not json",
	})
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestSearchHandlerFiltersReportedAsIgnored(t *testing.T) {
	deps := newTestDeps(&stubLexical{hits: sampleHits()}, &stubVector{})

	res, err := deps.searchBM25Handler(map[string]interface{}{
		"query":   "effusion",
		"filters": `{"Pneumonia": 1.0}`,
	})
	require.NoError(t, err)

	body := resultText(t, res)
	assert.True(t, gjson.Get(body, "search_metadata.filters_ignored").Bool())
}
