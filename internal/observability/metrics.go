package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "edgelink",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total admin HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "edgelink",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Admin HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
	framesDecoded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "edgelink",
			Name:      "frames_decoded_total",
			Help:      "Request frames decoded from the transport.",
		},
		[]string{"request"},
	)
	decodeErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "edgelink",
			Name:      "decode_errors_total",
			Help:      "Request frames dropped because they failed to decode.",
		},
		[]string{"reason"},
	)
	responses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "edgelink",
			Name:      "responses_total",
			Help:      "Responses produced by the dispatcher.",
		},
		[]string{"kind", "origin"},
	)
	operationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "edgelink",
			Subsystem: "dispatch",
			Name:      "operation_duration_seconds",
			Help:      "Time from slot placement to completion.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"request", "success"},
	)
	queueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "edgelink",
			Subsystem: "dispatch",
			Name:      "queue_depth",
			Help:      "Requests waiting for the in-flight slot.",
		},
	)
	inFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "edgelink",
			Subsystem: "dispatch",
			Name:      "in_flight",
			Help:      "1 while the in-flight slot is occupied.",
		},
	)
	protocolViolations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "edgelink",
			Subsystem: "dispatch",
			Name:      "protocol_violations_total",
			Help:      "Requests the catalog could not resolve.",
		},
	)
	shortWrites = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "edgelink",
			Name:      "short_writes_total",
			Help:      "Response frames only partially written to the transport.",
		},
	)
	transportOpens = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "edgelink",
			Subsystem: "transport",
			Name:      "opens_total",
			Help:      "Transport open attempts.",
		},
		[]string{"kind", "success"},
	)
	netcallRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "edgelink",
			Subsystem: "netcall",
			Name:      "requests_total",
			Help:      "Outbound network calls.",
		},
		[]string{"method", "code"},
	)
	netcallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "edgelink",
			Subsystem: "netcall",
			Name:      "request_duration_seconds",
			Help:      "Outbound network call duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "code"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests, httpDuration,
			framesDecoded, decodeErrors, responses,
			operationDuration, queueDepth, inFlight, protocolViolations,
			shortWrites, transportOpens,
			netcallRequests, netcallDuration,
		)
	})
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}

func RecordFrameDecoded(request string) {
	RegisterMetrics()
	framesDecoded.WithLabelValues(request).Inc()
}

func RecordDecodeError(reason string) {
	RegisterMetrics()
	decodeErrors.WithLabelValues(reason).Inc()
}

func RecordResponse(kind, origin string) {
	RegisterMetrics()
	responses.WithLabelValues(kind, origin).Inc()
}

func RecordOperation(request string, duration time.Duration, success bool) {
	RegisterMetrics()
	operationDuration.WithLabelValues(request, strconv.FormatBool(success)).Observe(duration.Seconds())
}

// SetDispatchState publishes the queue depth and slot occupancy.
func SetDispatchState(depth int, busy bool) {
	RegisterMetrics()
	queueDepth.Set(float64(depth))
	if busy {
		inFlight.Set(1)
		return
	}
	inFlight.Set(0)
}

func RecordProtocolViolation() {
	RegisterMetrics()
	protocolViolations.Inc()
}

func RecordShortWrite() {
	RegisterMetrics()
	shortWrites.Inc()
}

func RecordTransportOpen(kind string, success bool) {
	RegisterMetrics()
	transportOpens.WithLabelValues(kind, strconv.FormatBool(success)).Inc()
}

func RecordNetCall(method string, code int32, duration time.Duration) {
	RegisterMetrics()
	codeLabel := strconv.FormatInt(int64(code), 10)
	netcallRequests.WithLabelValues(method, codeLabel).Inc()
	netcallDuration.WithLabelValues(method, codeLabel).Observe(duration.Seconds())
}
