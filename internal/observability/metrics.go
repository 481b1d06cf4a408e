// Package observability holds the Prometheus metrics for the pipeline and
// the HTTP surface. A nil *Metrics is valid and records nothing.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "legalease"

type Metrics struct {
	documents          *prometheus.CounterVec
	stageDuration      *prometheus.HistogramVec
	generationFailures *prometheus.CounterVec
	rateLimitDenials   *prometheus.CounterVec
	questions          *prometheus.CounterVec
	httpRequests       *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		documents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_processed_total",
			Help:      "Documents that reached a terminal status.",
		}, []string{"status"}),
		stageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_stage_duration_seconds",
			Help:      "Duration of pipeline stages.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"stage"}),
		generationFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_failures_total",
			Help:      "Failed generation calls by operation and failure kind.",
		}, []string{"operation", "kind"}),
		rateLimitDenials: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_denials_total",
			Help:      "Requests rejected by the rate gate.",
		}, []string{"class"}),
		questions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "questions_total",
			Help:      "Questions handled, by result.",
		}, []string{"result"}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method and status code.",
		}, []string{"method", "code"}),
	}
}

func (m *Metrics) DocumentProcessed(status string) {
	if m == nil {
		return
	}
	m.documents.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (m *Metrics) GenerationFailed(operation, kind string) {
	if m == nil {
		return
	}
	m.generationFailures.WithLabelValues(operation, kind).Inc()
}

func (m *Metrics) RateLimited(class string) {
	if m == nil {
		return
	}
	m.rateLimitDenials.WithLabelValues(class).Inc()
}

func (m *Metrics) QuestionAnswered(ok bool) {
	if m == nil {
		return
	}
	result := "success"
	if !ok {
		result = "error"
	}
	m.questions.WithLabelValues(result).Inc()
}

func (m *Metrics) HTTPRequest(method string, code int) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, statusLabel(code)).Inc()
}

func statusLabel(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
