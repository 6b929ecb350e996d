package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/athapong/radgraph-mcp/pkg/report"
	"github.com/athapong/radgraph-mcp/pkg/search"
)

// ElasticsearchConfig holds connection settings for the report index.
type ElasticsearchConfig struct {
	BaseURL string
	Index   string
	APIKey  string
	Timeout time.Duration
}

// ElasticsearchConfigFromEnv reads the standard environment variables,
// falling back to a local unauthenticated instance.
func ElasticsearchConfigFromEnv() ElasticsearchConfig {
	cfg := ElasticsearchConfig{
		BaseURL: os.Getenv("ELASTICSEARCH_URL"),
		Index:   os.Getenv("ELASTICSEARCH_INDEX"),
		APIKey:  os.Getenv("ELASTICSEARCH_API_KEY"),
		Timeout: 30 * time.Second,
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://127.0.0.1:9200"
	}
	if cfg.Index == "" {
		cfg.Index = "radiology_reports"
	}
	return cfg
}

// ElasticsearchClient is a thin REST client for the report index, covering
// the three primitives the core consumes: BM25 search, kNN search and
// fetch-by-id. It implements search.LexicalRetriever, search.VectorRetriever
// and search.DocumentFetcher.
type ElasticsearchClient struct {
	cfg        ElasticsearchConfig
	httpClient *http.Client
	logger     *logrus.Logger
}

var _ search.LexicalRetriever = (*ElasticsearchClient)(nil)
var _ search.VectorRetriever = (*ElasticsearchClient)(nil)
var _ search.DocumentFetcher = (*ElasticsearchClient)(nil)

// NewElasticsearchClient builds a client; a nil logger falls back to the
// logrus default. The HTTP timeout doubles as the externally enforced
// retrieval timeout: a hung backend surfaces as a retrieval error, never a
// stuck fusion.
func NewElasticsearchClient(cfg ElasticsearchConfig, logger *logrus.Logger) *ElasticsearchClient {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &ElasticsearchClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

// Search runs a BM25 multi_match query over the report text.
func (c *ElasticsearchClient) Search(ctx context.Context, query string, topK int) ([]search.Hit, error) {
	body := map[string]interface{}{
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  query,
				"fields": []string{"report_text"},
				"type":   "best_fields",
			},
		},
		"size": topK,
	}
	return c.executeSearch(ctx, body)
}

// SearchKNN runs an approximate kNN query against the text embedding field.
func (c *ElasticsearchClient) SearchKNN(ctx context.Context, queryVector []float32, k, numCandidates int) ([]search.Hit, error) {
	if numCandidates < k {
		numCandidates = k * 2
	}
	body := map[string]interface{}{
		"knn": map[string]interface{}{
			"field":          "text_vector",
			"query_vector":   queryVector,
			"k":              k,
			"num_candidates": numCandidates,
		},
		"size": k,
	}
	return c.executeSearch(ctx, body)
}

// GetReport fetches one stored report by document id.
func (c *ElasticsearchClient) GetReport(ctx context.Context, id string) (*report.Report, error) {
	url := fmt.Sprintf("%s/%s/_doc/%s", c.cfg.BaseURL, c.cfg.Index, id)
	raw, err := c.do(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	doc := gjson.ParseBytes(raw)
	if !doc.Get("found").Bool() {
		return nil, errors.Errorf("report %s not found", id)
	}
	rep := reportFromSource(doc.Get("_id").String(), doc.Get("_source"))
	return &rep, nil
}

func (c *ElasticsearchClient) executeSearch(ctx context.Context, body map[string]interface{}) ([]search.Hit, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode search body")
	}

	url := fmt.Sprintf("%s/%s/_search", c.cfg.BaseURL, c.cfg.Index)
	raw, err := c.do(ctx, http.MethodPost, url, payload)
	if err != nil {
		return nil, err
	}

	var hits []search.Hit
	gjson.GetBytes(raw, "hits.hits").ForEach(func(_, hit gjson.Result) bool {
		rep := reportFromSource(hit.Get("_id").String(), hit.Get("_source"))
		hits = append(hits, search.Hit{
			DocID:  rep.ID,
			Score:  hit.Get("_score").Float(),
			Report: &rep,
		})
		return true
	})
	return hits, nil
}

func (c *ElasticsearchClient) do(ctx context.Context, method, url string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "ApiKey "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "elasticsearch request failed")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read elasticsearch response")
	}
	if resp.StatusCode >= 400 {
		c.logger.Errorf("elasticsearch returned %d: %s", resp.StatusCode, truncateBody(raw))
		return nil, errors.Errorf("elasticsearch returned status %d", resp.StatusCode)
	}
	return raw, nil
}

// reportFromSource maps a stored document onto the report model. The
// RadGraph annotation fields keep their raw JSON so the parser can dispatch
// on whichever encoding the ingestion path produced.
func reportFromSource(id string, source gjson.Result) report.Report {
	rep := report.Report{
		ID:                 id,
		Text:               source.Get("report_text").String(),
		PatientID:          source.Get("deid_patient_id").String(),
		RadgraphFindings:   source.Get("radgraph_findings_entities").Raw,
		RadgraphImpression: source.Get("radgraph_impression_entities").Raw,
		ImageURL:           source.Get("image_url").String(),
	}

	labels := source.Get("chexbert_labels")
	if labels.IsObject() {
		rep.ChexbertLabels = make(report.LabelVector)
		labels.ForEach(func(key, value gjson.Result) bool {
			if value.Type == gjson.Null {
				rep.ChexbertLabels[key.String()] = nil
			} else {
				v := value.Float()
				rep.ChexbertLabels[key.String()] = &v
			}
			return true
		})
	}
	return rep
}

func truncateBody(raw []byte) string {
	const max = 200
	if len(raw) <= max {
		return string(raw)
	}
	return string(raw[:max]) + "..."
}
