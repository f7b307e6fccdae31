// Package metrics holds the Prometheus collectors for the question answering
// server and the instrumentation that feeds them.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// LLMBuckets covers hosted inference latencies from 100ms to 60s.
var LLMBuckets = []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60}

var (
	// RequestsTotal counts HTTP requests by route and status class.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rag_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rag_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: LLMBuckets,
		},
		[]string{"method", "route"},
	)

	// GenerationsTotal counts answer generation calls by model and outcome.
	GenerationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rag_generations_total",
			Help: "Answer generation calls",
		},
		[]string{"model", "status"},
	)

	GenerationLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rag_generation_latency_seconds",
			Help:    "Answer generation latency",
			Buckets: LLMBuckets,
		},
		[]string{"model"},
	)

	// RetrievedChunks records how many chunks each question was answered from.
	RetrievedChunks = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rag_retrieved_chunks",
			Help:    "Chunks passed to the model per question",
			Buckets: []float64{0, 1, 2, 4, 8, 16},
		},
	)

	// IndexChunks is the size of the loaded index.
	IndexChunks = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rag_index_chunks",
			Help: "Chunks in the loaded index",
		},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		GenerationsTotal,
		GenerationLatency,
		RetrievedChunks,
		IndexChunks,
	)
}
