package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/joseph-ayodele/policy-extractor/constants"
	"github.com/joseph-ayodele/policy-extractor/internal/entity"
)

// ExtractionMetrics records per-tier attempts and final results. It
// satisfies pipeline.Recorder.
type ExtractionMetrics struct {
	registry *prometheus.Registry
	service  string

	attemptsTotal   *prometheus.CounterVec
	attemptDuration *prometheus.HistogramVec
	resultsTotal    *prometheus.CounterVec
	resultDuration  *prometheus.HistogramVec
	confidence      *prometheus.HistogramVec
	costTotal       *prometheus.CounterVec
	inFlight        prometheus.Gauge
}

func NewExtractionMetrics(service string) *ExtractionMetrics {
	registry := prometheus.NewRegistry()

	attemptsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "policy",
			Subsystem: "extraction",
			Name:      "attempts_total",
			Help:      "Provider attempts by method and status.",
		},
		[]string{"service", "method", "status"},
	)
	attemptDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "policy",
			Subsystem: "extraction",
			Name:      "attempt_duration_seconds",
			Help:      "Provider attempt duration in seconds by method.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"service", "method"},
	)
	resultsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "policy",
			Subsystem: "extraction",
			Name:      "results_total",
			Help:      "Finished extractions by accepted method and status.",
		},
		[]string{"service", "method", "status"},
	)
	resultDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "policy",
			Subsystem: "extraction",
			Name:      "duration_seconds",
			Help:      "End-to-end extraction duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "status"},
	)
	confidence := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "policy",
			Subsystem: "extraction",
			Name:      "confidence",
			Help:      "Confidence of accepted extractions.",
			Buckets:   []float64{0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 0.95, 1},
		},
		[]string{"service", "method"},
	)
	costTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "policy",
			Subsystem: "extraction",
			Name:      "cost_total",
			Help:      "Accumulated estimated processing cost.",
		},
		[]string{"service", "method"},
	)
	inFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "policy",
			Subsystem: "extraction",
			Name:      "in_flight",
			Help:      "Number of in-flight extraction requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)

	registry.MustRegister(attemptsTotal, attemptDuration, resultsTotal, resultDuration, confidence, costTotal, inFlight)

	return &ExtractionMetrics{
		registry:        registry,
		service:         service,
		attemptsTotal:   attemptsTotal,
		attemptDuration: attemptDuration,
		resultsTotal:    resultsTotal,
		resultDuration:  resultDuration,
		confidence:      confidence,
		costTotal:       costTotal,
		inFlight:        inFlight,
	}
}

func (m *ExtractionMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *ExtractionMetrics) ObserveAttempt(method constants.Method, success bool, d time.Duration) {
	m.attemptsTotal.WithLabelValues(m.service, string(method), status(success)).Inc()
	m.attemptDuration.WithLabelValues(m.service, string(method)).Observe(d.Seconds())
}

func (m *ExtractionMetrics) ObserveResult(res entity.ExtractionResult) {
	st := status(res.Success)
	m.resultsTotal.WithLabelValues(m.service, string(res.Method), st).Inc()
	m.resultDuration.WithLabelValues(m.service, st).Observe(res.ProcessingTime.Seconds())
	if !res.Success {
		return
	}
	m.confidence.WithLabelValues(m.service, string(res.Method)).Observe(res.Confidence)
	if res.Cost > 0 {
		m.costTotal.WithLabelValues(m.service, string(res.Method)).Add(res.Cost)
	}
}

// Start and Finish bracket a request for the in-flight gauge.
func (m *ExtractionMetrics) Start()  { m.inFlight.Inc() }
func (m *ExtractionMetrics) Finish() { m.inFlight.Dec() }

func status(ok bool) string {
	if ok {
		return "success"
	}
	return "error"
}
