package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type WorkerMetrics struct {
	registry *prometheus.Registry

	ingestTotal     *prometheus.CounterVec
	ingestDuration  *prometheus.HistogramVec
	ingestInFlight  prometheus.Gauge
	ingestedCourses *prometheus.CounterVec
	reloadTotal     *prometheus.CounterVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	ingestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "arag",
			Subsystem: "worker",
			Name:      "ingest_total",
			Help:      "Total corpus ingest runs by status.",
		},
		[]string{"service", "status"},
	)
	ingestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "arag",
			Subsystem: "worker",
			Name:      "ingest_duration_seconds",
			Help:      "Corpus ingest duration in seconds by status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "status"},
	)
	ingestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "arag",
			Subsystem: "worker",
			Name:      "ingest_in_flight",
			Help:      "Number of in-flight ingest runs.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	ingestedCourses := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "arag",
			Subsystem: "worker",
			Name:      "ingested_courses_total",
			Help:      "Total courses written during ingest runs.",
		},
		[]string{"service"},
	)
	reloadTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "arag",
			Subsystem: "worker",
			Name:      "catalog_reload_total",
			Help:      "Total catalog reloads triggered by corpus updates.",
		},
		[]string{"service", "status"},
	)

	registry.MustRegister(ingestTotal, ingestDuration, ingestInFlight, ingestedCourses, reloadTotal)

	return &WorkerMetrics{
		registry:        registry,
		ingestTotal:     ingestTotal,
		ingestDuration:  ingestDuration,
		ingestInFlight:  ingestInFlight,
		ingestedCourses: ingestedCourses,
		reloadTotal:     reloadTotal,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartIngest() {
	m.ingestInFlight.Inc()
}

func (m *WorkerMetrics) FinishIngest(service string, courses int, duration time.Duration, err error) {
	m.ingestInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}

	m.ingestTotal.WithLabelValues(service, status).Inc()
	m.ingestDuration.WithLabelValues(service, status).Observe(duration.Seconds())
	if courses > 0 {
		m.ingestedCourses.WithLabelValues(service).Add(float64(courses))
	}
}

func (m *WorkerMetrics) RecordCatalogReload(service string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.reloadTotal.WithLabelValues(service, status).Inc()
}
