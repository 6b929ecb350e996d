package search

import (
	"context"
	"sort"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/athapong/radgraph-mcp/pkg/metrics"
)

// Defaults for hybrid retrieval. RRF k=60 is the conventional rank constant.
const (
	DefaultRRFK       = 60
	DefaultTopKStage1 = 100
	DefaultTopNFinal  = 10
)

// Engine fuses a lexical and a vector retriever. Both retrievers are
// injected so tests can substitute fakes; the engine holds no other state and
// is safe for concurrent use.
type Engine struct {
	lexical LexicalRetriever
	vector  VectorRetriever
	logger  *logrus.Logger
}

// NewEngine builds a fusion engine. A nil logger falls back to the logrus
// default.
func NewEngine(lexical LexicalRetriever, vector VectorRetriever, logger *logrus.Logger) *Engine {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Engine{lexical: lexical, vector: vector, logger: logger}
}

// HybridParams configures one hybrid retrieval.
type HybridParams struct {
	// TopKStage1 is the per-retriever candidate count before fusion.
	TopKStage1 int
	// TopNFinal is the returned result count after fusion.
	TopNFinal int
	// RRFK is the RRF rank constant.
	RRFK int
	// Filters restricts candidates by CheXbert label value. Label filtering
	// is not implemented yet; a non-empty map is reported as ignored in the
	// response metadata, never silently dropped.
	Filters map[string]float64
}

func (p *HybridParams) applyDefaults() {
	if p.TopKStage1 <= 0 {
		p.TopKStage1 = DefaultTopKStage1
	}
	if p.TopNFinal <= 0 {
		p.TopNFinal = DefaultTopNFinal
	}
	if p.RRFK <= 0 {
		p.RRFK = DefaultRRFK
	}
}

// SearchHybrid runs the lexical and vector retrievers concurrently and merges
// their rankings with Reciprocal Rank Fusion:
//
//	fused(doc) = Σ 1/(k + rank_in_retriever)
//
// over the retrievers that returned the document. Candidates sort by fused
// score descending; equal scores keep insertion order (lexical results are
// merged first, then vector), which is deterministic but not semantically
// meaningful. An empty result from one retriever degrades to single-retriever
// ranking; both empty yields StatusNoResults.
func (e *Engine) SearchHybrid(ctx context.Context, query string, queryVector []float32, params HybridParams) *Response {
	params.applyDefaults()
	const strategy = "hybrid_rrf"

	parameters := map[string]interface{}{
		"top_k_stage1": params.TopKStage1,
		"top_n_final":  params.TopNFinal,
		"rrf_k":        params.RRFK,
		"filters":      params.Filters,
	}
	filtersIgnored := e.warnOnFilters(params.Filters)

	var lexHits, vecHits []Hit
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hits, err := e.lexical.Search(gctx, query, params.TopKStage1)
		if err != nil {
			return errors.Wrap(err, "lexical retrieval failed")
		}
		lexHits = hits
		return nil
	})
	g.Go(func() error {
		hits, err := e.vector.SearchKNN(gctx, queryVector, params.TopKStage1, params.TopKStage1*2)
		if err != nil {
			return errors.Wrap(err, "vector retrieval failed")
		}
		vecHits = hits
		return nil
	})
	if err := g.Wait(); err != nil {
		metrics.SearchErrors.WithLabelValues(strategy).Inc()
		e.logger.Errorf("hybrid search failed: %v", err)
		return errorResponse(query, strategy, parameters, err)
	}

	// Merge both rankings into insertion-ordered candidates. Lexical first:
	// the tie-break order depends on which retriever is processed first.
	candidates := make(map[string]*Candidate)
	var order []string
	merge := func(hits []Hit, isLexical bool) {
		for i, hit := range hits {
			rank := i + 1
			c, ok := candidates[hit.DocID]
			if !ok {
				c = &Candidate{}
				c.Report.ID = hit.DocID
				candidates[hit.DocID] = c
				order = append(order, hit.DocID)
			}
			if c.Report.Text == "" && hit.Report != nil {
				c.Report = *hit.Report
			}
			if isLexical {
				c.LexicalRank = rank
				c.LexicalScore = hit.Score
			} else {
				c.VectorRank = rank
				c.VectorScore = hit.Score
			}
			c.Score += 1.0 / float64(params.RRFK+rank)
		}
	}
	merge(lexHits, true)
	merge(vecHits, false)

	sort.SliceStable(order, func(i, j int) bool {
		return candidates[order[i]].Score > candidates[order[j]].Score
	})
	if len(order) > params.TopKStage1 {
		order = order[:params.TopKStage1]
	}
	stage1Count := len(order)
	if len(order) > params.TopNFinal {
		order = order[:params.TopNFinal]
	}

	results := make([]Candidate, 0, len(order))
	for _, id := range order {
		results = append(results, *candidates[id])
	}

	e.logger.Infof("hybrid RRF combined %d lexical + %d vector hits into %d candidates",
		len(lexHits), len(vecHits), stage1Count)
	metrics.SearchesTotal.WithLabelValues(strategy).Inc()

	resp := successResponse(query, strategy, parameters, results)
	resp.SearchMetadata.Stage1Count = stage1Count
	resp.SearchMetadata.FiltersIgnored = filtersIgnored
	return resp
}

// SearchLexical runs the lexical retriever alone, with the same response
// shape as hybrid retrieval.
func (e *Engine) SearchLexical(ctx context.Context, query string, topN int, filters map[string]float64) *Response {
	const strategy = "bm25"
	if topN <= 0 {
		topN = DefaultTopNFinal
	}
	parameters := map[string]interface{}{"top_n": topN, "filters": filters}
	filtersIgnored := e.warnOnFilters(filters)

	hits, err := e.lexical.Search(ctx, query, topN)
	if err != nil {
		metrics.SearchErrors.WithLabelValues(strategy).Inc()
		e.logger.Errorf("BM25 search failed: %v", err)
		return errorResponse(query, strategy, parameters, err)
	}

	metrics.SearchesTotal.WithLabelValues(strategy).Inc()
	resp := successResponse(query, strategy, parameters, singleRetrieverResults(hits, true))
	resp.SearchMetadata.FiltersIgnored = filtersIgnored
	return resp
}

// SearchVector runs the vector retriever alone, with the same response shape
// as hybrid retrieval. The query string is carried for metadata only.
func (e *Engine) SearchVector(ctx context.Context, query string, queryVector []float32, topN int, filters map[string]float64) *Response {
	const strategy = "knn_semantic"
	if topN <= 0 {
		topN = DefaultTopNFinal
	}
	parameters := map[string]interface{}{"top_n": topN, "filters": filters}
	filtersIgnored := e.warnOnFilters(filters)

	hits, err := e.vector.SearchKNN(ctx, queryVector, topN, topN*2)
	if err != nil {
		metrics.SearchErrors.WithLabelValues(strategy).Inc()
		e.logger.Errorf("kNN search failed: %v", err)
		return errorResponse(query, strategy, parameters, err)
	}

	metrics.SearchesTotal.WithLabelValues(strategy).Inc()
	resp := successResponse(query, strategy, parameters, singleRetrieverResults(hits, false))
	resp.SearchMetadata.FiltersIgnored = filtersIgnored
	return resp
}

func singleRetrieverResults(hits []Hit, isLexical bool) []Candidate {
	results := make([]Candidate, 0, len(hits))
	for i, hit := range hits {
		c := Candidate{Score: hit.Score}
		if hit.Report != nil {
			c.Report = *hit.Report
		}
		c.Report.ID = hit.DocID
		if isLexical {
			c.LexicalRank = i + 1
			c.LexicalScore = hit.Score
		} else {
			c.VectorRank = i + 1
			c.VectorScore = hit.Score
		}
		results = append(results, c)
	}
	return results
}

func (e *Engine) warnOnFilters(filters map[string]float64) bool {
	if len(filters) == 0 {
		return false
	}
	e.logger.Warn("label filters not yet implemented, ignoring filters parameter")
	return true
}

func successResponse(query, strategy string, parameters map[string]interface{}, results []Candidate) *Response {
	status := StatusSuccess
	if len(results) == 0 {
		status = StatusNoResults
	}
	return &Response{
		Status: status,
		SearchMetadata: Metadata{
			Query:       query,
			Strategy:    strategy,
			Parameters:  parameters,
			ResultCount: len(results),
			ScoreRange:  scoreRange(results),
		},
		Results: results,
	}
}

func errorResponse(query, strategy string, parameters map[string]interface{}, err error) *Response {
	return &Response{
		Status: StatusError,
		SearchMetadata: Metadata{
			Query:      query,
			Strategy:   strategy,
			Parameters: parameters,
			Error:      err.Error(),
		},
		Results: []Candidate{},
	}
}

func scoreRange(results []Candidate) ScoreRange {
	if len(results) == 0 {
		return ScoreRange{}
	}
	r := ScoreRange{Min: results[0].Score, Max: results[0].Score}
	sum := 0.0
	for _, c := range results {
		if c.Score < r.Min {
			r.Min = c.Score
		}
		if c.Score > r.Max {
			r.Max = c.Score
		}
		sum += c.Score
	}
	r.Avg = sum / float64(len(results))
	return r
}
