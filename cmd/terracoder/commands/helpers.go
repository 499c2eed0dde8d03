package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/54b3r/terracoder/internal/cache"
	"github.com/54b3r/terracoder/internal/embedder"
	"github.com/54b3r/terracoder/internal/generator"
	"github.com/54b3r/terracoder/internal/provider"
	"github.com/54b3r/terracoder/internal/retrieval"
)

// pipeline bundles everything a command wires up around the generation
// service: the resolved provider config (needed for readiness probes), the
// optional vector store, and a cleanup function for held connections.
type pipeline struct {
	svc         *generator.Service
	providerCfg *provider.Config
	qdrant      *retrieval.QdrantStore
	close       func()
}

// buildPipeline constructs the full generation pipeline from environment
// configuration: model provider, response cache, and — when RETRIEVAL_ENABLED
// is set — the documentation retriever backed by Qdrant.
func buildPipeline(ctx context.Context, log *slog.Logger) (*pipeline, error) {
	providerCfg := provider.ConfigFromEnv()
	chatModel, err := provider.New(ctx, providerCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise model provider: %w", err)
	}
	log.Info("provider initialised", slog.String("provider", string(providerCfg.Backend)))

	responses, err := buildCache()
	if err != nil {
		return nil, err
	}

	searcher, qdrant, closeRetrieval, err := buildRetriever(ctx, log)
	if err != nil {
		return nil, err
	}

	svc, err := generator.New(chatModel, responses, searcher, generator.Config{
		Backend:          string(providerCfg.Backend),
		HierarchySource:  os.Getenv("HIERARCHY_SOURCE"),
		RetrievalTopK:    getEnvInt("RETRIEVAL_TOP_K", 0),
		ContextMaxTokens: getEnvInt("CONTEXT_MAX_TOKENS", 0),
	})
	if err != nil {
		closeRetrieval()
		return nil, fmt.Errorf("failed to initialise generator: %w", err)
	}

	return &pipeline{
		svc:         svc,
		providerCfg: providerCfg,
		qdrant:      qdrant,
		close:       closeRetrieval,
	}, nil
}

// buildCache selects the response cache implementation. CACHE_SIZE > 0
// selects a bounded LRU; otherwise an unbounded in-memory map is used.
func buildCache() (cache.Cache[*generator.Result], error) {
	if size := getEnvInt("CACHE_SIZE", 0); size > 0 {
		lru, err := cache.NewLRU[*generator.Result](size)
		if err != nil {
			return nil, fmt.Errorf("failed to initialise response cache: %w", err)
		}
		return lru, nil
	}
	return cache.NewMemory[*generator.Result](), nil
}

// buildRetriever constructs the documentation retriever when RETRIEVAL_ENABLED
// is "true". When retrieval is off all returns are nil and the generator runs
// without reference context. The returned cleanup function releases the Qdrant
// connection and is safe to call in every case.
func buildRetriever(ctx context.Context, log *slog.Logger) (retrieval.Searcher, *retrieval.QdrantStore, func(), error) {
	noop := func() {}

	if os.Getenv("RETRIEVAL_ENABLED") != "true" {
		return nil, nil, noop, nil
	}

	if err := embedder.ValidateForRetrieval(log); err != nil {
		return nil, nil, noop, err
	}

	emb, err := embedder.NewFromEnv()
	if err != nil {
		return nil, nil, noop, fmt.Errorf("failed to initialise embedder: %w", err)
	}

	embBackend := getEnvOrDefault("EMBEDDING_PROVIDER", getEnvOrDefault("MODEL_PROVIDER", "mistral"))
	host := getEnvOrDefault("QDRANT_HOST", "localhost")
	port := getEnvInt("QDRANT_PORT", 6334)
	collection := getEnvOrDefault("QDRANT_COLLECTION", "terracoder-docs")

	qdrant, err := retrieval.NewQdrantStore(ctx, &retrieval.QdrantConfig{
		Host:       host,
		Port:       port,
		Collection: collection,
		VectorSize: uint64(embedder.DefaultDimensions(embBackend)), //nolint:gosec // dimensions are bounded
		APIKey:     os.Getenv("QDRANT_API_KEY"),
		UseTLS:     os.Getenv("QDRANT_TLS") == "true",
	})
	if err != nil {
		return nil, nil, noop, fmt.Errorf("failed to connect to Qdrant at %s:%d: %w", host, port, err)
	}

	retr, err := retrieval.NewRetriever(emb, qdrant, getEnvInt("RETRIEVAL_TOP_K", 0))
	if err != nil {
		_ = qdrant.Close()
		return nil, nil, noop, fmt.Errorf("failed to initialise retriever: %w", err)
	}

	log.Info("retrieval enabled",
		slog.String("collection", collection),
		slog.String("embedding_backend", embBackend),
	)

	return retr, qdrant, func() { _ = qdrant.Close() }, nil
}

// getEnvOrDefault returns the value of the named environment variable, or
// fallback if the variable is unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the integer value of the named environment variable, or
// fallback if the variable is unset, empty, or not parseable.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
