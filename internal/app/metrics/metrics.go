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
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "aidgrid",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aidgrid",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "aidgrid",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	syncItems = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aidgrid",
			Subsystem: "sync",
			Name:      "batch_items_total",
			Help:      "Total offline sync batch items by outcome.",
		},
		[]string{"outcome"},
	)

	verifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aidgrid",
			Subsystem: "verification",
			Name:      "decisions_total",
			Help:      "Total verification decisions by record kind and decision.",
		},
		[]string{"kind", "decision"},
	)

	gapComputations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aidgrid",
			Subsystem: "gaps",
			Name:      "computations_total",
			Help:      "Total gap report computations.",
		},
		[]string{"success"},
	)

	gapDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "aidgrid",
			Subsystem: "gaps",
			Name:      "computation_duration_seconds",
			Help:      "Duration of gap report computations.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		syncItems,
		verifications,
		gapComputations,
		gapDuration,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler with HTTP metrics collection.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		path := canonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)

		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	})
}

// RecordSyncItem counts one processed sync batch item.
func RecordSyncItem(outcome string) {
	if outcome == "" {
		outcome = "unknown"
	}
	syncItems.WithLabelValues(outcome).Inc()
}

// RecordVerification counts one verification decision. kind is "assessment"
// or "response"; decision is "verified" or "rejected".
func RecordVerification(kind, decision string) {
	verifications.WithLabelValues(kind, decision).Inc()
}

// RecordGapComputation records one gap report computation.
func RecordGapComputation(duration time.Duration, success bool) {
	if duration <= 0 {
		duration = time.Millisecond
	}
	result := "false"
	if success {
		result = "true"
	}
	gapComputations.WithLabelValues(result).Inc()
	gapDuration.Observe(duration.Seconds())
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// canonicalPath collapses IDs out of paths so label cardinality stays
// bounded.
func canonicalPath(raw string) string {
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	// Versioned API paths look like /v1/<resource>/<id>/<sub>.
	if parts[0] == "v1" && len(parts) >= 2 {
		if len(parts) == 2 {
			return "/v1/" + parts[1]
		}
		if len(parts) == 3 {
			return "/v1/" + parts[1] + "/:id"
		}
		return "/v1/" + parts[1] + "/:id/" + parts[3]
	}
	return "/" + parts[0]
}
