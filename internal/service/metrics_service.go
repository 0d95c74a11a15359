package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/wifi-presence-api/internal/models"
)

// Classifier call outcomes.
const (
	ClassifierOutcomeOK           = "ok"
	ClassifierOutcomeFallback     = "fallback"
	ClassifierOutcomeShortCircuit = "short_circuit"
)

// MetricsService encapsulates Prometheus instrumentation for the capture pipeline.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheOps        *prometheus.CounterVec
	cacheLatency    prometheus.Observer

	sightingsIngested  *prometheus.CounterVec
	finalizeRuns       *prometheus.CounterVec
	finalizeDuration   prometheus.Observer
	attendanceRecords  *prometheus.CounterVec
	classifierRequests *prometheus.CounterVec
	classifierLatency  prometheus.Observer
	liveDevices        prometheus.Gauge
	pendingSightings   prometheus.Gauge
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

	cacheOps := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_operations_total",
		Help: "Cache lookups by cache name and result",
	}, []string{"cache", "result"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache operations",
		Buckets: prometheus.DefBuckets,
	})

	sightingsIngested := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sightings_ingested_total",
		Help: "Raw sightings accepted or rejected by capture ingest",
	}, []string{"result"})

	finalizeRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "finalize_runs_total",
		Help: "Session finalization runs by result",
	}, []string{"result"})

	finalizeDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "finalize_run_duration_seconds",
		Help:    "Wall time of a finalization run",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	})

	attendanceRecords := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_records_total",
		Help: "Finalized attendance records by status",
	}, []string{"status"})

	classifierRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "classifier_requests_total",
		Help: "Anomaly classifier calls by outcome",
	}, []string{"outcome"})

	classifierLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "classifier_request_duration_seconds",
		Help:    "Latency of anomaly classifier calls",
		Buckets: prometheus.DefBuckets,
	})

	liveDevices := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "live_devices",
		Help: "Devices currently tracked by the live aggregator",
	})

	pendingSightings := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pending_sightings",
		Help: "Pending sightings observed at the last finalization read",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheOps, cacheLatency, sightingsIngested, finalizeRuns,
		finalizeDuration, attendanceRecords, classifierRequests, classifierLatency, liveDevices, pendingSightings, goroutines)

	return &MetricsService{
		registry:           registry,
		handler:            promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:    requestDuration,
		requestTotal:       requestTotal,
		cacheOps:           cacheOps,
		cacheLatency:       cacheLatency,
		sightingsIngested:  sightingsIngested,
		finalizeRuns:       finalizeRuns,
		finalizeDuration:   finalizeDuration,
		attendanceRecords:  attendanceRecords,
		classifierRequests: classifierRequests,
		classifierLatency:  classifierLatency,
		liveDevices:        liveDevices,
		pendingSightings:   pendingSightings,
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
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

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records a cache hit, miss or error.
func (m *MetricsService) RecordCacheOperation(cache, result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheOps.WithLabelValues(cache, result).Inc()
	m.cacheLatency.Observe(duration.Seconds())
}

// RecordIngest counts one ingest attempt.
func (m *MetricsService) RecordIngest(accepted bool) {
	if m == nil {
		return
	}
	result := "accepted"
	if !accepted {
		result = "rejected"
	}
	m.sightingsIngested.WithLabelValues(result).Inc()
}

// RecordFinalizeRun records the outcome and duration of a finalization run.
func (m *MetricsService) RecordFinalizeRun(result string, pending int, duration time.Duration) {
	if m == nil {
		return
	}
	m.finalizeRuns.WithLabelValues(result).Inc()
	m.finalizeDuration.Observe(duration.Seconds())
	m.pendingSightings.Set(float64(pending))
}

// RecordAttendance counts emitted records by status.
func (m *MetricsService) RecordAttendance(status models.AttendanceStatus) {
	if m == nil {
		return
	}
	m.attendanceRecords.WithLabelValues(string(status)).Inc()
}

// RecordClassifierCall records the outcome of one classifier invocation.
func (m *MetricsService) RecordClassifierCall(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.classifierRequests.WithLabelValues(outcome).Inc()
	if outcome != ClassifierOutcomeShortCircuit {
		m.classifierLatency.Observe(duration.Seconds())
	}
}

// SetLiveDevices updates the live aggregator gauge.
func (m *MetricsService) SetLiveDevices(n int) {
	if m == nil {
		return
	}
	m.liveDevices.Set(float64(n))
}
