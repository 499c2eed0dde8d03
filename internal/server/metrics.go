package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/54b3r/terracoder/internal/generator"
)

// Generation outcome label values for generate_requests_total.
const (
	// outcomeOK is a fresh, accepted generation.
	outcomeOK = "ok"
	// outcomeCached is a request served from the response cache.
	outcomeCached = "cached"
	// outcomeRejected is a request turned away by the input gate.
	outcomeRejected = "rejected"
	// outcomeBadRequest is a request that failed wire-level validation.
	outcomeBadRequest = "bad_request"
	// outcomeUpstreamError is a model backend failure.
	outcomeUpstreamError = "upstream_error"
	// outcomeError is any other pipeline failure.
	outcomeError = "error"
)

// serverMetrics holds all Prometheus metrics owned by the HTTP server.
// A single instance is created in New and stored on Server so that tests can
// inject a fresh prometheus.Registry without polluting the default one.
type serverMetrics struct {
	// generateRequestsTotal counts completed /api/generate requests,
	// partitioned by outcome.
	generateRequestsTotal *prometheus.CounterVec

	// generateDurationSeconds records the wall-clock duration of each
	// /api/generate request, partitioned by outcome. Cache hits land in the
	// lowest buckets; fresh generations are dominated by the model call.
	generateDurationSeconds *prometheus.HistogramVec

	// generateActive is the number of /api/generate requests currently
	// waiting on the pipeline.
	generateActive prometheus.Gauge

	// generateDegradationsTotal counts the recovery paths taken by completed
	// generations, partitioned by kind. A single request can raise several.
	generateDegradationsTotal *prometheus.CounterVec

	// httpRequestsTotal counts all HTTP requests handled by the mux,
	// partitioned by method, handler, and status code.
	httpRequestsTotal *prometheus.CounterVec

	// httpDurationSeconds records the latency of all HTTP requests.
	httpDurationSeconds *prometheus.HistogramVec
}

// newServerMetrics registers all server metrics against reg and returns the
// populated serverMetrics. promauto.With(reg) is used so that each call
// registers into the provided registry rather than the global default —
// this keeps unit tests hermetic.
func newServerMetrics(reg prometheus.Registerer) *serverMetrics {
	factory := promauto.With(reg)

	return &serverMetrics{
		generateRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "terracoder",
			Subsystem: "generate",
			Name:      "requests_total",
			Help:      "Total number of /api/generate requests completed, partitioned by outcome.",
		}, []string{"outcome"}),

		generateDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "terracoder",
			Subsystem: "generate",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of /api/generate requests.",
			Buckets:   []float64{0.05, 0.25, 1, 5, 15, 30, 60, 120},
		}, []string{"outcome"}),

		generateActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "terracoder",
			Subsystem: "generate",
			Name:      "active",
			Help:      "Number of /api/generate requests currently in flight.",
		}),

		generateDegradationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "terracoder",
			Subsystem: "generate",
			Name:      "degradations_total",
			Help:      "Total number of recovered degradations in generation results, partitioned by kind.",
		}, []string{"kind"}),

		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "terracoder",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled by the server, partitioned by method, handler, and status code.",
		}, []string{"method", "handler", "code"}),

		httpDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "terracoder",
			Subsystem: "http",
			Name:      "duration_seconds",
			Help:      "Latency of HTTP requests handled by the server.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "handler"}),
	}
}

// observeGenerate records one completed generation with its outcome.
func (m *serverMetrics) observeGenerate(outcome string, elapsed time.Duration) {
	m.generateRequestsTotal.WithLabelValues(outcome).Inc()
	m.generateDurationSeconds.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// observeDiagnostics records the recovery paths a generation took.
func (m *serverMetrics) observeDiagnostics(d generator.Diagnostics) {
	if d.ParserFallback {
		m.generateDegradationsTotal.WithLabelValues("parser_fallback").Inc()
	}
	if d.MetadataMissing {
		m.generateDegradationsTotal.WithLabelValues("metadata_missing").Inc()
	}
	if d.MetadataInvalid {
		m.generateDegradationsTotal.WithLabelValues("metadata_invalid").Inc()
	}
	if d.DiagramFallback {
		m.generateDegradationsTotal.WithLabelValues("diagram_fallback").Inc()
	}
	if len(d.ValidationIssues) > 0 {
		m.generateDegradationsTotal.WithLabelValues("validation_issues").Inc()
	}
}

// instrument is an [http.Handler] middleware that records request counts and
// latency for every route, labeled by the logical handler name rather than
// the raw path to keep cardinality bounded.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		start := time.Now()
		next.ServeHTTP(rw, r)
		elapsed := time.Since(start)

		handler := routeLabel(r.URL.Path)
		s.metrics.httpRequestsTotal.WithLabelValues(r.Method, handler, strconv.Itoa(rw.status)).Inc()
		s.metrics.httpDurationSeconds.WithLabelValues(r.Method, handler).Observe(elapsed.Seconds())
	})
}

// routeLabel maps a request path to its bounded "handler" label value.
func routeLabel(path string) string {
	switch {
	case path == "/":
		return "root"
	case path == "/metrics":
		return "metrics"
	case strings.HasPrefix(path, "/api/generate"):
		return "generate"
	case strings.HasPrefix(path, "/api/history"):
		return "history"
	case strings.HasPrefix(path, "/api/health"):
		return "health"
	case strings.HasPrefix(path, "/api/ready"):
		return "ready"
	default:
		return "other"
	}
}
