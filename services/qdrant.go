package services

import (
	"context"
	"os"
	"strconv"

	"github.com/pkg/errors"
	"github.com/qdrant/go-client/qdrant"
	"github.com/sirupsen/logrus"

	"github.com/athapong/radgraph-mcp/pkg/search"
)

// QdrantConfig holds connection settings for a qdrant collection mirroring
// the report corpus embeddings.
type QdrantConfig struct {
	Host       string
	Port       int
	APIKey     string
	Collection string
	UseTLS     bool
}

// QdrantConfigFromEnv reads QDRANT_HOST, QDRANT_PORT, QDRANT_API_KEY and
// QDRANT_COLLECTION. Returns false when qdrant is not configured.
func QdrantConfigFromEnv() (QdrantConfig, bool) {
	host := os.Getenv("QDRANT_HOST")
	if host == "" {
		return QdrantConfig{}, false
	}
	port, err := strconv.Atoi(os.Getenv("QDRANT_PORT"))
	if err != nil {
		port = 6334
	}
	collection := os.Getenv("QDRANT_COLLECTION")
	if collection == "" {
		collection = "radiology_reports"
	}
	return QdrantConfig{
		Host:       host,
		Port:       port,
		APIKey:     os.Getenv("QDRANT_API_KEY"),
		Collection: collection,
		UseTLS:     os.Getenv("QDRANT_API_KEY") != "",
	}, true
}

// QdrantRetriever is a drop-in VectorRetriever for corpora whose embeddings
// are mirrored into a qdrant collection instead of the Elasticsearch kNN
// index. Point payloads carry the report id; stored fields are filled in
// through the document fetcher when one is provided.
type QdrantRetriever struct {
	client     *qdrant.Client
	collection string
	fetcher    search.DocumentFetcher
	logger     *logrus.Logger
}

var _ search.VectorRetriever = (*QdrantRetriever)(nil)

// NewQdrantRetriever connects to qdrant. The fetcher may be nil, in which
// case hits carry ids and scores only.
func NewQdrantRetriever(cfg QdrantConfig, fetcher search.DocumentFetcher, logger *logrus.Logger) (*QdrantRetriever, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to qdrant")
	}
	return &QdrantRetriever{
		client:     client,
		collection: cfg.Collection,
		fetcher:    fetcher,
		logger:     logger,
	}, nil
}

// SearchKNN queries the collection for the k nearest points.
func (r *QdrantRetriever) SearchKNN(ctx context.Context, queryVector []float32, k, numCandidates int) ([]search.Hit, error) {
	limit := uint64(k)
	points, err := r.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: r.collection,
		Query:          qdrant.NewQuery(queryVector...),
		Limit:          &limit,
		WithPayload: &qdrant.WithPayloadSelector{
			SelectorOptions: &qdrant.WithPayloadSelector_Enable{Enable: true},
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "qdrant query failed")
	}

	hits := make([]search.Hit, 0, len(points))
	for _, point := range points {
		docID := point.Payload["report_id"].GetStringValue()
		if docID == "" {
			docID = point.Id.GetUuid()
		}
		hit := search.Hit{DocID: docID, Score: float64(point.Score)}
		if r.fetcher != nil {
			rep, err := r.fetcher.GetReport(ctx, docID)
			if err != nil {
				r.logger.Warnf("failed to fetch report %s for qdrant hit: %v", docID, err)
			} else {
				hit.Report = rep
			}
		}
		hits = append(hits, hit)
	}
	return hits, nil
}
