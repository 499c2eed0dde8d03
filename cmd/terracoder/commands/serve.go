package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloudwego/eino/callbacks"
	"github.com/spf13/cobra"

	"github.com/54b3r/terracoder/internal/logging"
	"github.com/54b3r/terracoder/internal/provider"
	"github.com/54b3r/terracoder/internal/server"
	"github.com/54b3r/terracoder/internal/store"
	"github.com/54b3r/terracoder/internal/tracing"
)

// NewServeCmd constructs the `terracoder serve` command, which starts the
// HTTP generation API.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the terracoder HTTP generation API",
		Long: `Start the terracoder HTTP server on localhost.

The server exposes the JSON generation API (POST /api/generate), per-caller
generation history (GET /api/history), health and readiness probes, and
Prometheus metrics under /metrics.

Examples:
  terracoder serve
  terracoder serve --port 9090
  MODEL_PROVIDER=azure terracoder serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			log.Info("serve starting", slog.String("provider", os.Getenv("MODEL_PROVIDER")))

			// Setup Langfuse tracing — opt-in, no-op if keys are absent.
			handler, flush, ok := tracing.Setup()
			if ok {
				callbacks.AppendGlobalHandlers(handler)
				defer flush()
				log.Info("langfuse tracing enabled")
			} else {
				log.Info("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY not set"))
			}

			p, err := buildPipeline(ctx, log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer p.close()

			// Open the generation history store. TERRACODER_DB overrides the
			// default path (~/.terracoder/history.db); set to "disabled" to
			// turn history off entirely.
			var historyStore store.GenerationStore
			dbPath := os.Getenv("TERRACODER_DB")
			if dbPath != "disabled" {
				if dbPath == "" {
					dbPath, err = store.DefaultDBPath()
					if err != nil {
						log.Warn("history: could not resolve default DB path, disabling", slog.Any("error", err))
					}
				}
				if dbPath != "" {
					hs, hsErr := store.Open(dbPath)
					if hsErr != nil {
						log.Warn("history: failed to open store, disabling", slog.Any("error", hsErr))
					} else {
						historyStore = hs
						defer func() { _ = hs.Close() }()
						log.Info("history: store opened", slog.String("path", dbPath))
					}
				}
			} else {
				log.Info("history: disabled via TERRACODER_DB=disabled")
			}

			var pingers []server.Pinger
			if hc, hcErr := provider.NewHealthCheck(p.providerCfg); hcErr != nil {
				log.Warn("llm readiness probe unavailable", slog.Any("error", hcErr))
			} else {
				pingers = append(pingers, hc)
			}
			if p.qdrant != nil {
				pingers = append(pingers, server.NewQdrantPinger(p.qdrant))
			}
			if historyStore != nil {
				pingers = append(pingers, server.NewStorePinger(historyStore))
			}

			// Flags win over env; the server applies its own defaults
			// (127.0.0.1:8080) when both are unset.
			if host == "" {
				host = os.Getenv("SERVER_HOST")
			}
			if port == 0 {
				port = getEnvInt("SERVER_PORT", 0)
			}

			srv, err := server.New(p.svc, historyStore, &server.Config{
				Host:    host,
				Port:    port,
				Logger:  log,
				Pingers: pingers,
				APIKey:  os.Getenv("TERRACODER_API_KEY"),
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "Host address to bind to (default 127.0.0.1, or SERVER_HOST)")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "TCP port to listen on (default 8080, or SERVER_PORT)")

	return cmd
}
