// Package metrics exposes Prometheus collectors for the api and
// worker on dedicated registries.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "finrag"

// HTTPMetrics covers the api surface.
type HTTPMetrics struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func NewHTTPMetrics() *HTTPMetrics {
	registry := prometheus.NewRegistry()
	m := &HTTPMetrics{
		registry: registry,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
	registry.MustRegister(m.requests, m.duration)
	return m
}

func (m *HTTPMetrics) Observe(route, method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(route).Observe(elapsed.Seconds())
}

func (m *HTTPMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// WorkerMetrics covers the ingestion pipeline.
type WorkerMetrics struct {
	registry *prometheus.Registry
	filings  *prometheus.CounterVec
	elements prometheus.Counter
	chunks   prometheus.Counter
	duration prometheus.Histogram
}

func NewWorkerMetrics() *WorkerMetrics {
	registry := prometheus.NewRegistry()
	m := &WorkerMetrics{
		registry: registry,
		filings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "filings_processed_total",
			Help:      "Processed filings by outcome.",
		}, []string{"outcome"}),
		elements: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "elements_extracted_total",
			Help:      "Elements extracted from filings.",
		}),
		chunks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_indexed_total",
			Help:      "Chunks written to the index.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "filing_processing_duration_seconds",
			Help:      "End to end filing processing time.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
	}
	registry.MustRegister(m.filings, m.elements, m.chunks, m.duration)
	return m
}

func (m *WorkerMetrics) ObserveFiling(outcome string, elements, chunks int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.filings.WithLabelValues(outcome).Inc()
	m.elements.Add(float64(elements))
	m.chunks.Add(float64(chunks))
	m.duration.Observe(elapsed.Seconds())
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
