package services

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

const searchResponse = `{
	"hits": {
		"hits": [
			{
				"_id": "rpt-1",
				"_score": 9.1,
				"_source": {
					"report_text": "Small right pleural effusion.",
					"deid_patient_id": "p-7",
					"radgraph_findings_entities": ["effusion:located_at:pleural space"],
					"chexbert_labels": {"Pleural Effusion": 1.0, "Pneumonia": null}
				}
			},
			{
				"_id": "rpt-2",
				"_score": 4.2,
				"_source": {"report_text": "No acute findings."}
			}
		]
	}
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *ElasticsearchClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewElasticsearchClient(ElasticsearchConfig{
		BaseURL: server.URL,
		Index:   "radiology_reports",
		APIKey:  "secret",
	}, nil)
}

func TestSearchParsesHits(t *testing.T) {
	var captured []byte
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/radiology_reports/_search", r.URL.Path)
		assert.Equal(t, "ApiKey secret", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		captured = body
		w.Write([]byte(searchResponse))
	})

	hits, err := client.Search(context.Background(), "effusion", 10)
	require.NoError(t, err)
	require.Len(t, hits, 2)

	assert.Equal(t, "rpt-1", hits[0].DocID)
	assert.Equal(t, 9.1, hits[0].Score)
	require.NotNil(t, hits[0].Report)
	assert.Equal(t, "Small right pleural effusion.", hits[0].Report.Text)
	assert.Equal(t, "p-7", hits[0].Report.PatientID)
	assert.JSONEq(t, `["effusion:located_at:pleural space"]`, hits[0].Report.RadgraphFindings)

	require.NotNil(t, hits[0].Report.ChexbertLabels)
	require.Contains(t, hits[0].Report.ChexbertLabels, "Pleural Effusion")
	assert.Equal(t, 1.0, *hits[0].Report.ChexbertLabels["Pleural Effusion"])
	assert.Nil(t, hits[0].Report.ChexbertLabels["Pneumonia"])

	query := gjson.GetBytes(captured, "query.multi_match.query").String()
	assert.Equal(t, "effusion", query)
	assert.Equal(t, int64(10), gjson.GetBytes(captured, "size").Int())
}

func TestSearchKNNBody(t *testing.T) {
	var captured []byte
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		captured = body
		w.Write([]byte(`{"hits": {"hits": []}}`))
	})

	hits, err := client.SearchKNN(context.Background(), []float32{0.1, 0.2}, 5, 0)
	require.NoError(t, err)
	assert.Empty(t, hits)

	knn := gjson.GetBytes(captured, "knn")
	assert.Equal(t, "text_vector", knn.Get("field").String())
	assert.Equal(t, int64(5), knn.Get("k").Int())
	// num_candidates below k is widened to k*2
	assert.Equal(t, int64(10), knn.Get("num_candidates").Int())
}

func TestSearchBackendError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "shard failure"}`))
	})

	_, err := client.Search(context.Background(), "effusion", 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestGetReport(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/radiology_reports/_doc/rpt-1", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"_id":   "rpt-1",
			"found": true,
			"_source": map[string]interface{}{
				"report_text": "Small right pleural effusion.",
			},
		})
	})

	rep, err := client.GetReport(context.Background(), "rpt-1")
	require.NoError(t, err)
	assert.Equal(t, "rpt-1", rep.ID)
	assert.Equal(t, "Small right pleural effusion.", rep.Text)
}

func TestGetReportNotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"_id": "missing", "found": false}`))
	})

	_, err := client.GetReport(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}
