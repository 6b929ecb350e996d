package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Search metrics
	SearchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "report_searches_total",
			Help: "Total number of report searches executed",
		},
		[]string{"strategy"},
	)

	SearchErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "report_search_errors_total",
			Help: "Total number of failed report searches",
		},
		[]string{"strategy"},
	)

	// Annotation metrics
	AnnotationParseErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "radgraph_parse_errors_total",
		Help: "Total number of annotation payloads that failed to parse",
	})

	EntitiesExtracted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "radgraph_entities_extracted_total",
			Help: "Total number of entities extracted from annotations",
		},
		[]string{"entity_type"},
	)

	TripletsExtracted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "radgraph_triplets_extracted_total",
		Help: "Total number of relationship triplets extracted",
	})
)
