// Package metrics exposes prometheus metrics for record I/O, indexing and
// the HTTP API.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ssargent/recordfile/pkg/feature"
	"github.com/ssargent/recordfile/pkg/recordio"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// Failure kinds used as the "kind" label of recordfile_record_failures_total.
const (
	KindCorruptLength  = "corrupt_length"
	KindCorruptPayload = "corrupt_payload"
	KindTruncated      = "truncated"
	KindTooLarge       = "too_large"
	KindMalformed      = "malformed_payload"
	KindIO             = "io"
	KindOther          = "other"
)

// Metrics holds all Prometheus metrics. It implements recordio.Observer.
type Metrics struct {
	registry *prometheus.Registry

	// Record I/O metrics
	recordsWritten prometheus.Counter
	bytesWritten   prometheus.Counter
	recordsRead    prometheus.Counter
	bytesRead      prometheus.Counter
	recordFailures *prometheus.CounterVec

	// Index and verify metrics
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec

	// Data directory metrics
	filesTotal    prometheus.Gauge
	dataSizeBytes prometheus.Gauge

	// HTTP request metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight *prometheus.GaugeVec

	// API key authentication metrics
	authRequestsTotal *prometheus.CounterVec

	// Health check metrics
	healthChecksTotal *prometheus.CounterVec
}

var _ recordio.Observer = (*Metrics)(nil)

// New creates and registers all metrics on a private registry that also
// carries the Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		recordsWritten: factory.NewCounter(prometheus.CounterOpts{
			Name: "recordfile_records_written_total",
			Help: "Total number of records written",
		}),
		bytesWritten: factory.NewCounter(prometheus.CounterOpts{
			Name: "recordfile_payload_bytes_written_total",
			Help: "Total payload bytes written, excluding framing",
		}),
		recordsRead: factory.NewCounter(prometheus.CounterOpts{
			Name: "recordfile_records_read_total",
			Help: "Total number of records read and verified",
		}),
		bytesRead: factory.NewCounter(prometheus.CounterOpts{
			Name: "recordfile_payload_bytes_read_total",
			Help: "Total payload bytes read, excluding framing",
		}),
		recordFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "recordfile_record_failures_total",
			Help: "Total number of record failures by operation and kind",
		}, []string{"op", "kind"}),

		operationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "recordfile_operations_total",
			Help: "Total number of file-level operations such as verify and index builds",
		}, []string{"operation", "status"}),
		operationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "recordfile_operation_duration_seconds",
			Help:    "File-level operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),

		filesTotal: factory.NewGauge(prometheus.GaugeOpts{
			Name: "recordfile_files_total",
			Help: "Number of record files in the data directory",
		}),
		dataSizeBytes: factory.NewGauge(prometheus.GaugeOpts{
			Name: "recordfile_data_size_bytes",
			Help: "Total size of record files in the data directory in bytes",
		}),

		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "recordfile_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		httpRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "recordfile_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		httpRequestsInFlight: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "recordfile_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		}, []string{"method", "endpoint"}),

		authRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "recordfile_auth_requests_total",
			Help: "Total number of authentication requests",
		}, []string{"status"}),

		healthChecksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "recordfile_health_checks_total",
			Help: "Total number of health checks",
		}, []string{"status"}),
	}
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordWritten implements recordio.Observer.
func (m *Metrics) RecordWritten(payloadBytes int) {
	m.recordsWritten.Inc()
	m.bytesWritten.Add(float64(payloadBytes))
}

// RecordRead implements recordio.Observer.
func (m *Metrics) RecordRead(payloadBytes int) {
	m.recordsRead.Inc()
	m.bytesRead.Add(float64(payloadBytes))
}

// RecordFailed implements recordio.Observer.
func (m *Metrics) RecordFailed(op string, err error) {
	m.recordFailures.WithLabelValues(op, FailureKind(err)).Inc()
}

// FailureKind classifies a record error for the "kind" label.
func FailureKind(err error) string {
	switch {
	case errors.Is(err, recordio.ErrCorruptLength):
		return KindCorruptLength
	case errors.Is(err, recordio.ErrCorruptPayload):
		return KindCorruptPayload
	case errors.Is(err, recordio.ErrTruncated):
		return KindTruncated
	case errors.Is(err, recordio.ErrRecordTooLarge):
		return KindTooLarge
	case errors.Is(err, feature.ErrMalformedPayload):
		return KindMalformed
	case errors.Is(err, recordio.ErrIO):
		return KindIO
	default:
		return KindOther
	}
}

// RecordOperation records a file-level operation
func (m *Metrics) RecordOperation(operation string, success bool, duration time.Duration) {
	status := statusSuccess
	if !success {
		status = statusError
	}

	m.operationsTotal.WithLabelValues(operation, status).Inc()
	m.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// UpdateDataStats updates data directory statistics
func (m *Metrics) UpdateDataStats(files int, dataSize int64) {
	m.filesTotal.Set(float64(files))
	m.dataSizeBytes.Set(float64(dataSize))
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	statusCodeStr := strconv.Itoa(statusCode)

	m.httpRequestsTotal.WithLabelValues(method, endpoint, statusCodeStr).Inc()
	m.httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordAuthRequest records an authentication request
func (m *Metrics) RecordAuthRequest(success bool) {
	status := statusSuccess
	if !success {
		status = statusError
	}
	m.authRequestsTotal.WithLabelValues(status).Inc()
}

// RecordHealthCheck records a health check
func (m *Metrics) RecordHealthCheck(success bool) {
	status := statusSuccess
	if !success {
		status = statusError
	}
	m.healthChecksTotal.WithLabelValues(status).Inc()
}

// InstrumentHandler instruments an HTTP handler with metrics
func (m *Metrics) InstrumentHandler(method, endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Record request in flight
		gauge := m.httpRequestsInFlight.WithLabelValues(method, endpoint)
		gauge.Inc()
		defer gauge.Dec()

		// Capture the status code
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		handler(rw, r)

		m.RecordHTTPRequest(method, endpoint, rw.statusCode, time.Since(start))
	}
}

// InstrumentAuthMiddleware counts authentication outcomes of requests that
// carried an API key.
func (m *Metrics) InstrumentAuthMiddleware(next func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hasAPIKey := r.Header.Get("X-API-Key") != ""

			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next(h).ServeHTTP(rw, r)

			if hasAPIKey {
				m.RecordAuthRequest(rw.statusCode != http.StatusUnauthorized)
			}
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
