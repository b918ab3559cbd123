package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	QueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "evidence_agent_query_duration_seconds",
			Help:    "End-to-end query processing duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
		},
		[]string{"domain"},
	)

	StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "evidence_agent_stage_duration_seconds",
			Help:    "Per-stage processing duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"stage"},
	)

	QueryTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evidence_agent_query_total",
			Help: "Total number of queries processed",
		},
		[]string{"status"},
	)

	AnswerStatusTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evidence_agent_answer_status_total",
			Help: "Answers emitted by terminal status",
		},
		[]string{"status"},
	)

	RetrievalResultsCount = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "evidence_agent_retrieval_results_count",
			Help:    "Number of passages retrieved per query",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
		},
	)

	ValidationApprovedRatio = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "evidence_agent_validation_approved_ratio",
			Help:    "Share of retrieved passages surviving validation",
			Buckets: []float64{0, 0.2, 0.4, 0.6, 0.8, 1.0},
		},
	)

	CitationsPerAnswer = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "evidence_agent_citations_per_answer",
			Help:    "Number of citations bound per complete answer",
			Buckets: []float64{0, 1, 2, 3, 5, 10, 20},
		},
	)

	ConfidenceScore = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "evidence_agent_confidence_score",
			Help:    "Answer confidence scores",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		},
	)

	ProhibitedContentDetected = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "evidence_agent_prohibited_content_detected_total",
			Help: "Total answers flagged for prohibited phrasing",
		},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evidence_agent_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evidence_agent_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)

	DocumentsProcessed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "evidence_agent_documents_processed_total",
			Help: "Total documents ingested",
		},
	)

	PassagesIndexed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "evidence_agent_passages_indexed_total",
			Help: "Total passages inserted into the vector index",
		},
	)
)

func Init() {
	prometheus.MustRegister(QueryDuration)
	prometheus.MustRegister(StageDuration)
	prometheus.MustRegister(QueryTotal)
	prometheus.MustRegister(AnswerStatusTotal)
	prometheus.MustRegister(RetrievalResultsCount)
	prometheus.MustRegister(ValidationApprovedRatio)
	prometheus.MustRegister(CitationsPerAnswer)
	prometheus.MustRegister(ConfidenceScore)
	prometheus.MustRegister(ProhibitedContentDetected)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
	prometheus.MustRegister(DocumentsProcessed)
	prometheus.MustRegister(PassagesIndexed)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
