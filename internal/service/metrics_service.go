package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/teg-intake-api/pkg/retry"
)

// Submission outcomes recorded by intake_submissions_total.
const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
	OutcomeClosed   = "closed"
	OutcomeFailed   = "failed"
)

// MetricsService encapsulates Prometheus instrumentation.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	submissions     *prometheus.CounterVec
	dossierPages    prometheus.Histogram
	remoteDuration  *prometheus.HistogramVec
	remoteRetries   *prometheus.CounterVec
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	submissions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "intake_submissions_total",
		Help: "Submissions by procedure and outcome",
	}, []string{"procedure", "outcome"})

	dossierPages := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "intake_dossier_pages",
		Help:    "Pages per assembled dossier",
		Buckets: prometheus.LinearBuckets(0, 1, 12),
	})

	remoteDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "intake_remote_call_duration_seconds",
		Help:    "Duration of calls to Google APIs",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"operation", "result"})

	remoteRetries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "intake_remote_retries_total",
		Help: "Retried calls to Google APIs",
	}, []string{"operation"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, submissions, dossierPages, remoteDuration, remoteRetries, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:        registry,
		handler:         handler,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		submissions:     submissions,
		dossierPages:    dossierPages,
		remoteDuration:  remoteDuration,
		remoteRetries:   remoteRetries,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Registry exposes the collector registry, mainly for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// ObserveSubmission counts one submission outcome.
func (m *MetricsService) ObserveSubmission(procedure, outcome string) {
	if m == nil {
		return
	}
	if procedure == "" {
		procedure = "unknown"
	}
	m.submissions.WithLabelValues(procedure, outcome).Inc()
}

// ObserveDossierPages records the size of an assembled dossier.
func (m *MetricsService) ObserveDossierPages(pages int) {
	if m == nil {
		return
	}
	m.dossierPages.Observe(float64(pages))
}

// RetryHooks wires remote call instrumentation into a retry runner.
func (m *MetricsService) RetryHooks() retry.Hooks {
	if m == nil {
		return retry.Hooks{}
	}
	return retry.Hooks{
		OnAttempt: func(operation string, elapsed time.Duration, err error) {
			result := "ok"
			if err != nil {
				result = "error"
			}
			m.remoteDuration.WithLabelValues(operation, result).Observe(elapsed.Seconds())
		},
		OnRetry: func(operation string, _ int, _ error) {
			m.remoteRetries.WithLabelValues(operation).Inc()
		},
	}
}
