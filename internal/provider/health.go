package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// healthTimeout bounds a single probe when the caller's context carries no
// deadline of its own.
const healthTimeout = 10 * time.Second

// HealthCheck probes an LLM backend's HTTP API without consuming model
// tokens. Each backend exposes a cheap listing or tags endpoint that also
// exercises the configured credentials, so a passing probe means the service
// can actually generate. HealthCheck satisfies the readiness Pinger shape
// used by the HTTP server.
type HealthCheck struct {
	// backend identifies the probed provider in readiness responses.
	backend Backend
	// url is the resolved probe endpoint.
	url string
	// header carries the backend's auth header(s).
	header http.Header
	// client issues the probe requests.
	client *http.Client
}

// NewHealthCheck resolves the probe endpoint and credentials for the
// configured backend. The config is not validated here — a missing API key
// simply surfaces as a 401 from Ping.
func NewHealthCheck(cfg *Config) (*HealthCheck, error) {
	hc := &HealthCheck{
		backend: cfg.Backend,
		header:  make(http.Header),
		client:  &http.Client{Timeout: healthTimeout},
	}

	switch cfg.Backend {
	case BackendMistral:
		hc.url = joinURL(cfg.Mistral.BaseURL, "/models")
		hc.header.Set("Authorization", "Bearer "+cfg.Mistral.APIKey)
	case BackendOpenAI:
		base := cfg.OpenAI.BaseURL
		if base == "" {
			base = "https://api.openai.com/v1"
		}
		hc.url = joinURL(base, "/models")
		hc.header.Set("Authorization", "Bearer "+cfg.OpenAI.APIKey)
	case BackendAzure:
		hc.url = joinURL(cfg.AzureOpenAI.Endpoint, "/openai/models") + "?api-version=" + cfg.AzureOpenAI.APIVersion
		hc.header.Set("api-key", cfg.AzureOpenAI.APIKey)
	case BackendOllama:
		// Local daemon, no auth.
		hc.url = joinURL(cfg.Ollama.Host, "/api/tags")
	case BackendGemini:
		hc.url = "https://generativelanguage.googleapis.com/v1beta/models"
		hc.header.Set("x-goog-api-key", cfg.Gemini.APIKey)
	case BackendArk:
		base := cfg.Ark.BaseURL
		if base == "" {
			base = "https://ark.cn-beijing.volces.com/api/v3"
		}
		hc.url = joinURL(base, "/models")
		hc.header.Set("Authorization", "Bearer "+cfg.Ark.APIKey)
	default:
		return nil, fmt.Errorf("provider: unknown backend %q — valid values: mistral, openai, azure, ollama, gemini, ark", cfg.Backend)
	}

	return hc, nil
}

// Name returns the backend label used in readiness responses.
func (hc *HealthCheck) Name() string { return string(hc.backend) }

// Ping issues one GET against the backend's probe endpoint. Any 4xx counts
// as a failure too: a reachable endpoint that rejects the configured
// credentials cannot serve generations either.
func (hc *HealthCheck) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, hc.url, nil)
	if err != nil {
		return fmt.Errorf("provider: %s health probe: %w", hc.backend, err)
	}
	for k, vs := range hc.header {
		req.Header[k] = vs
	}

	resp, err := hc.client.Do(req)
	if err != nil {
		return fmt.Errorf("provider: %s endpoint unreachable: %w", hc.backend, err)
	}
	defer resp.Body.Close()
	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("provider: %s health endpoint returned %s", hc.backend, resp.Status)
	}
	return nil
}

// joinURL appends path to base without doubling the separating slash.
func joinURL(base, path string) string {
	return strings.TrimSuffix(base, "/") + path
}
