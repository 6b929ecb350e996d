// Package search implements hybrid report retrieval: independent lexical and
// vector retrievers merged with manual Reciprocal Rank Fusion. Fusion is done
// client-side because no native fused-ranking primitive is assumed available
// from the retrieval backend.
package search

import (
	"context"

	"github.com/athapong/radgraph-mcp/pkg/report"
)

// Hit is one ordered result from a single retriever. Retrievers that have the
// document source at hand attach it so fusion does not need a second fetch.
type Hit struct {
	DocID  string
	Score  float64
	Report *report.Report
}

// LexicalRetriever ranks documents by term relevance (BM25 or any monotonic
// scoring function), best first.
type LexicalRetriever interface {
	Search(ctx context.Context, query string, topK int) ([]Hit, error)
}

// VectorRetriever ranks documents by embedding similarity, best first. The
// query vector is produced externally; this package never computes embeddings.
type VectorRetriever interface {
	SearchKNN(ctx context.Context, queryVector []float32, k, numCandidates int) ([]Hit, error)
}

// DocumentFetcher retrieves one stored report by id.
type DocumentFetcher interface {
	GetReport(ctx context.Context, id string) (*report.Report, error)
}

// Candidate is one fused result. It lives for the duration of a single
// retrieval request and is never persisted. Score holds the fused RRF score
// (or the raw retriever score on single-retriever strategies); the per-
// retriever ranks record where each retriever placed the document, 0 when the
// retriever did not return it.
type Candidate struct {
	report.Report
	Score        float64 `json:"score"`
	LexicalRank  int     `json:"lexical_rank,omitempty"`
	LexicalScore float64 `json:"lexical_score,omitempty"`
	VectorRank   int     `json:"vector_rank,omitempty"`
	VectorScore  float64 `json:"vector_score,omitempty"`
}

// Response statuses. "no_results" is a valid outcome distinct from "error";
// "no_input" is reported by batch analytics when no candidate set exists yet.
const (
	StatusSuccess   = "success"
	StatusNoResults = "no_results"
	StatusError     = "error"
	StatusNoInput   = "no_input"
)

// ScoreRange summarizes the returned scores.
type ScoreRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
}

// Metadata describes one search execution.
type Metadata struct {
	Query          string                 `json:"query"`
	Strategy       string                 `json:"strategy"`
	Parameters     map[string]interface{} `json:"parameters"`
	ResultCount    int                    `json:"result_count"`
	Stage1Count    int                    `json:"stage1_count,omitempty"`
	ScoreRange     ScoreRange             `json:"score_range"`
	FiltersIgnored bool                   `json:"filters_ignored,omitempty"`
	Error          string                 `json:"error,omitempty"`
}

// Response is a tagged search result. No search path returns a Go error to
// the caller; backend failures surface as StatusError with the underlying
// message so the orchestration layer owns any retry policy.
type Response struct {
	Status         string      `json:"status"`
	SearchMetadata Metadata    `json:"search_metadata"`
	Results        []Candidate `json:"results"`
}
