package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "groundtrack_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "groundtrack_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	operationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "groundtrack_operations_total",
			Help: "Fetch and refresh operations by outcome.",
		},
		[]string{"operation", "result"},
	)

	operationDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "groundtrack_operation_duration_seconds",
			Help:    "Duration of fetch and refresh operations in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"operation"},
	)

	samplingDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "groundtrack_sampling_duration_seconds",
			Help:    "Time spent sampling the offset window.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
	)

	propagationErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "groundtrack_propagation_errors_total",
			Help: "Element parse and propagation failures.",
		},
	)

	storeWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "groundtrack_store_writes_total",
			Help: "Key-value store write calls by mode and outcome.",
		},
		[]string{"mode", "result"},
	)

	storeFieldsWritten = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "groundtrack_store_fields_written_total",
			Help: "Fields written to the key-value store.",
		},
	)

	streamConnectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "groundtrack_stream_connections_total",
			Help: "State stream connects and disconnects.",
		},
		[]string{"event"},
	)

	streamsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "groundtrack_streams_active",
		Help: "Open state stream connections.",
	})

	streamMessagesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "groundtrack_stream_messages_total",
		Help: "Messages sent on state streams.",
	})

	streamBytesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "groundtrack_stream_bytes_total",
		Help: "Bytes sent on state streams.",
	})

	streamErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "groundtrack_stream_errors_total",
			Help: "State stream errors by reason.",
		},
		[]string{"reason"},
	)

	satelliteLatitude = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "groundtrack_satellite_latitude_degrees",
		Help: "Latitude of the most recent snapshot.",
	})
	satelliteLongitude = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "groundtrack_satellite_longitude_degrees",
		Help: "Longitude of the most recent snapshot.",
	})
	satelliteAltitude = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "groundtrack_satellite_altitude_km",
		Help: "Altitude of the most recent snapshot.",
	})
	satelliteElevation = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "groundtrack_ground_station_elevation_degrees",
		Help: "Elevation of the satellite seen from the ground station.",
	})
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpDurationSeconds,
		operationsTotal,
		operationDurationSeconds,
		samplingDurationSeconds,
		propagationErrorsTotal,
		storeWritesTotal,
		storeFieldsWritten,
		streamConnectionsTotal,
		streamsActive,
		streamMessagesTotal,
		streamBytesTotal,
		streamErrorsTotal,
		satelliteLatitude,
		satelliteLongitude,
		satelliteAltitude,
		satelliteElevation,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordOperation records the outcome and duration of a session operation.
func RecordOperation(op string, d time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	operationsTotal.WithLabelValues(op, result).Inc()
	operationDurationSeconds.WithLabelValues(op).Observe(d.Seconds())
}

// RecordSampling records one pass of the offset sampling loop.
func RecordSampling(d time.Duration) {
	samplingDurationSeconds.Observe(d.Seconds())
}

// RecordPropagationError counts a failed parse or propagation.
func RecordPropagationError() {
	propagationErrorsTotal.Inc()
}

// RecordStoreWrite records a store write call and how many fields it carried.
func RecordStoreWrite(mode string, fields int, err error) {
	if err != nil {
		storeWritesTotal.WithLabelValues(mode, "error").Inc()
		return
	}
	storeWritesTotal.WithLabelValues(mode, "ok").Inc()
	storeFieldsWritten.Add(float64(fields))
}

// SetSnapshot publishes the latest position and elevation in degrees/km.
func SetSnapshot(latDeg, lonDeg, altKm, elDeg float64) {
	satelliteLatitude.Set(latDeg)
	satelliteLongitude.Set(lonDeg)
	satelliteAltitude.Set(altKm)
	satelliteElevation.Set(elDeg)
}

// IncStreamConnections counts a stream "connect" or "disconnect" event.
func IncStreamConnections(event string) {
	streamConnectionsTotal.WithLabelValues(event).Inc()
}

func IncStreamsActive() { streamsActive.Inc() }
func DecStreamsActive() { streamsActive.Dec() }

func IncStreamMessages() { streamMessagesTotal.Inc() }

func AddStreamBytes(n int64) { streamBytesTotal.Add(float64(n)) }

// IncStreamErrors counts a stream error; reason is one of rate_limit,
// send_error, marshal_error or dropped.
func IncStreamErrors(reason string) {
	streamErrorsTotal.WithLabelValues(reason).Inc()
}

// knownRoutes are reported verbatim; everything else is bucketed to keep
// label cardinality bounded.
var knownRoutes = map[string]bool{
	"/healthz":                 true,
	"/readyz":                  true,
	"/metrics":                 true,
	"/api/v1/state":            true,
	"/api/v1/fetch":            true,
	"/api/v1/refresh/snapshot": true,
	"/api/v1/refresh/series":   true,
	"/api/v1/passes":           true,
	"/api/v1/stream/state":     true,
}

func normalizeRoute(path string) string {
	if knownRoutes[path] {
		return path
	}
	if rest, ok := strings.CutPrefix(path, "/api/v1/state/"); ok && rest != "" && !strings.Contains(rest, "/") {
		return "/api/v1/state/{key}"
	}
	return "other"
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush forwards to the underlying writer so streamed responses still flush.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		code := strconv.Itoa(rw.statusCode)
		path := normalizeRoute(r.URL.Path)

		httpRequestsTotal.WithLabelValues(path, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(path, r.Method).Observe(duration)
	})
}
