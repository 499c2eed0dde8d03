package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/terracoder/internal/generator"
	"github.com/54b3r/terracoder/internal/store"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response. It must
	// be long enough to cover a full model round-trip, since handlers hold
	// the connection open while generating.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on /api/generate and /api/history.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// MetricsRegistry receives all metric registrations. Defaults to
	// prometheus.DefaultRegisterer. Tests inject a fresh registry.
	MetricsRegistry prometheus.Registerer
	// MetricsGatherer backs GET /metrics. Defaults to prometheus.DefaultGatherer.
	MetricsGatherer prometheus.Gatherer
}

// generatorService is the interface handleGenerate calls to produce a result.
// *generator.Service satisfies it; tests inject a fake.
type generatorService interface {
	Generate(ctx context.Context, req generator.Request) (*generator.Result, error)
}

// Server is the HTTP server that exposes the generation pipeline.
type Server struct {
	// gen produces generation results; set to the real pipeline in
	// production, overridden by a fake in tests.
	gen generatorService
	// store persists generation history. Nil disables GET /api/history.
	store store.GenerationStore
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds all Prometheus instruments owned by this server.
	metrics *serverMetrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// generateRequest is the JSON body for POST /api/generate.
type generateRequest struct {
	// Description is the natural-language statement of what to build.
	Description string `json:"description"`
	// Provider is the target cloud provider. Empty selects the default.
	Provider string `json:"provider"`
	// IncludeDiagram asks for the architecture diagram. A pointer so the
	// handler can tell "absent" (defaults to true) from an explicit false.
	IncludeDiagram *bool `json:"include_diagram"`
}

// historyResponse is the JSON response for GET /api/history.
type historyResponse struct {
	// Records is the caller's generation history, newest first.
	Records []store.Record `json:"records"`
	// Count is len(Records), for clients that page.
	Count int `json:"count"`
}

// healthResponse is the JSON response for GET /api/health.
type healthResponse struct {
	// Status is always "healthy" — this endpoint reports process liveness only.
	Status string `json:"status"`
	// Timestamp is the RFC 3339 time the probe was answered.
	Timestamp string `json:"timestamp"`
}
