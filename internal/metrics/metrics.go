// Package metrics provides Prometheus metrics for monitoring the extractor.
package metrics

import (
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ExtractionsTotal counts completed extractions by outcome and error type.
	ExtractionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "extractor_extractions_total",
			Help: "Total number of extraction attempts",
		},
		[]string{"status", "error_type"},
	)

	// ExtractionDuration tracks end-to-end extraction duration by outcome.
	ExtractionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "extractor_extraction_duration_seconds",
			Help:    "Extraction duration in seconds, from submission to completion (includes queue wait)",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10), // 0.25s to ~128s
		},
		[]string{"status"},
	)

	// QueueWaitDuration tracks time spent waiting for admission into the pipeline.
	QueueWaitDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "extractor_queue_wait_seconds",
			Help:    "Time a task spent queued before being admitted",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
		},
	)

	// ContextCreationDuration tracks time to obtain a browser context/page for a task.
	ContextCreationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "extractor_context_creation_seconds",
			Help:    "Time to create an isolated browser context for a task",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
	)

	// ManifestDetectionDuration tracks time from browser context acquisition to manifest capture.
	ManifestDetectionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "extractor_manifest_detection_seconds",
			Help:    "Time from browser context acquisition until an m3u8 manifest request is observed",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
	)

	// QueueDepth shows the number of tasks currently waiting for admission.
	QueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "extractor_queue_depth",
			Help: "Number of tasks currently queued, waiting for admission",
		},
	)

	// ActiveExtractions shows the number of tasks currently admitted and running.
	ActiveExtractions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "extractor_active_extractions",
			Help: "Number of tasks currently admitted and running",
		},
	)

	// CircuitState reports the circuit breaker state: 0 closed, 1 open.
	CircuitState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "extractor_circuit_state",
			Help: "Circuit breaker state (0=closed, 1=open)",
		},
	)

	// CircuitTrips counts the number of times the circuit breaker has opened.
	CircuitTrips = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "extractor_circuit_trips_total",
			Help: "Total number of times the circuit breaker tripped open",
		},
	)

	// BrowserLaunches counts browser launch attempts.
	BrowserLaunches = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "extractor_browser_launches_total",
			Help: "Total number of browser launch attempts",
		},
	)

	// BrowserLaunchFailures counts failed browser launch attempts.
	BrowserLaunchFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "extractor_browser_launch_failures_total",
			Help: "Total number of failed browser launch attempts",
		},
	)

	// BrowserDisconnects counts unexpected browser disconnects.
	BrowserDisconnects = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "extractor_browser_disconnects_total",
			Help: "Total number of unexpected browser disconnects",
		},
	)

	// BrowserRestarts counts deliberate browser restarts by reason.
	BrowserRestarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "extractor_browser_restarts_total",
			Help: "Total number of browser restarts by reason",
		},
		[]string{"reason"},
	)

	// MemoryUsageBytes shows current memory usage.
	MemoryUsageBytes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "extractor_memory_usage_bytes",
			Help: "Current memory usage in bytes (alloc)",
		},
	)

	// MemorySysBytes shows system memory obtained.
	MemorySysBytes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "extractor_memory_sys_bytes",
			Help: "Total memory obtained from system",
		},
	)

	// GoroutineCount shows current goroutine count.
	GoroutineCount = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "extractor_goroutines",
			Help: "Current number of goroutines",
		},
	)

	// BuildInfo provides build information as labels.
	BuildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "extractor_build_info",
			Help: "Build information",
		},
		[]string{"version", "go_version"},
	)
)

func init() {
	prometheus.MustRegister(
		ExtractionsTotal,
		ExtractionDuration,
		QueueWaitDuration,
		ContextCreationDuration,
		ManifestDetectionDuration,
		QueueDepth,
		ActiveExtractions,
		CircuitState,
		CircuitTrips,
		BrowserLaunches,
		BrowserLaunchFailures,
		BrowserDisconnects,
		BrowserRestarts,
		MemoryUsageBytes,
		MemorySysBytes,
		GoroutineCount,
		BuildInfo,
	)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// SetBuildInfo sets the build info metric.
func SetBuildInfo(version, goVersion string) {
	BuildInfo.WithLabelValues(version, goVersion).Set(1)
}

// StartMemoryCollector starts a goroutine that periodically updates memory metrics.
func StartMemoryCollector(interval time.Duration, stopCh <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			updateMemoryMetrics()
		case <-stopCh:
			return
		}
	}
}

func updateMemoryMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	MemoryUsageBytes.Set(float64(m.Alloc))
	MemorySysBytes.Set(float64(m.Sys))
	GoroutineCount.Set(float64(runtime.NumGoroutine()))
}

// RecordExtraction records metrics for a completed extraction.
func RecordExtraction(status, errorType string, duration time.Duration) {
	ExtractionsTotal.WithLabelValues(status, errorType).Inc()
	ExtractionDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordQueueWait records how long a task waited before admission.
func RecordQueueWait(d time.Duration) {
	QueueWaitDuration.Observe(d.Seconds())
}

// RecordContextCreation records how long context creation took.
func RecordContextCreation(d time.Duration) {
	ContextCreationDuration.Observe(d.Seconds())
}

// RecordManifestDetection records how long manifest detection took.
func RecordManifestDetection(d time.Duration) {
	ManifestDetectionDuration.Observe(d.Seconds())
}

// SetCircuitOpen reports the circuit breaker state.
func SetCircuitOpen(open bool) {
	if open {
		CircuitState.Set(1)
		return
	}
	CircuitState.Set(0)
}

// RecordCircuitTrip records a circuit breaker trip.
func RecordCircuitTrip() {
	CircuitTrips.Inc()
}

// RecordBrowserLaunch records a browser launch attempt and its outcome.
func RecordBrowserLaunch(success bool) {
	BrowserLaunches.Inc()
	if !success {
		BrowserLaunchFailures.Inc()
	}
}

// RecordBrowserDisconnect records an unexpected browser disconnect.
func RecordBrowserDisconnect() {
	BrowserDisconnects.Inc()
}

// RecordBrowserRestart records a deliberate browser restart.
func RecordBrowserRestart(reason string) {
	BrowserRestarts.WithLabelValues(reason).Inc()
}

// UpdateQueueMetrics updates queue depth and active extraction gauges.
func UpdateQueueMetrics(depth, active int) {
	QueueDepth.Set(float64(depth))
	ActiveExtractions.Set(float64(active))
}
