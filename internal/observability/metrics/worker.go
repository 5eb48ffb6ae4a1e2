package metrics

import (
	"net/http"
	"time"

	"github.com/kirillkom/docuclean/internal/core/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// WorkerMetrics observes processing runs. It satisfies
// ports.ProcessingObserver.
type WorkerMetrics struct {
	service  string
	registry *prometheus.Registry

	runsTotal    *prometheus.CounterVec
	runDuration  *prometheus.HistogramVec
	runsInFlight prometheus.Gauge
	pagesTotal   *prometheus.CounterVec
	pageDuration *prometheus.HistogramVec
	breakerState *prometheus.GaugeVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	runsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "runs_total",
			Help:      "Total finished processing runs by resulting document status.",
		},
		[]string{"service", "status"},
	)
	runDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "run_duration_seconds",
			Help:      "Processing run duration in seconds by resulting document status.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200, 3600},
		},
		[]string{"service", "status"},
	)
	runsInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "runs_in_flight",
			Help:      "Number of processing runs currently active.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	pagesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "pages_total",
			Help:      "Total attempted pages by resulting page status.",
		},
		[]string{"service", "status"},
	)
	pageDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "ocr_duration_seconds",
			Help:      "Recognition time per page in seconds.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120, 300},
		},
		[]string{"service", "status"},
	)
	breakerState := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "resilience",
			Name:      "breaker_open",
			Help:      "1 while the circuit breaker of an operation is not closed.",
		},
		[]string{"service", "operation"},
	)

	registry.MustRegister(runsTotal, runDuration, runsInFlight, pagesTotal, pageDuration, breakerState)

	return &WorkerMetrics{
		service:      service,
		registry:     registry,
		runsTotal:    runsTotal,
		runDuration:  runDuration,
		runsInFlight: runsInFlight,
		pagesTotal:   pagesTotal,
		pageDuration: pageDuration,
		breakerState: breakerState,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) RunStarted(string) {
	m.runsInFlight.Inc()
}

func (m *WorkerMetrics) PageFinished(_ string, _ int, status domain.PageStatus, elapsed time.Duration) {
	m.pagesTotal.WithLabelValues(m.service, string(status)).Inc()
	m.pageDuration.WithLabelValues(m.service, string(status)).Observe(elapsed.Seconds())
}

func (m *WorkerMetrics) RunFinished(_ string, status domain.DocumentStatus, elapsed time.Duration) {
	m.runsInFlight.Dec()
	m.runsTotal.WithLabelValues(m.service, string(status)).Inc()
	m.runDuration.WithLabelValues(m.service, string(status)).Observe(elapsed.Seconds())
}

// BreakerStateChanged has the resilience.StateListener signature.
func (m *WorkerMetrics) BreakerStateChanged(operation, _, to string) {
	value := 0.0
	if to != "closed" {
		value = 1
	}
	m.breakerState.WithLabelValues(m.service, operation).Set(value)
}
