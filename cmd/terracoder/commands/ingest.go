package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/54b3r/terracoder/internal/embedder"
	"github.com/54b3r/terracoder/internal/ingestion"
	"github.com/54b3r/terracoder/internal/logging"
	"github.com/54b3r/terracoder/internal/retrieval"
)

// NewIngestCmd constructs the `terracoder ingest` command, which runs the
// documentation ingestion pipeline to populate the retrieval vector store.
func NewIngestCmd() *cobra.Command {
	var providerLabel string
	var resourceType string
	var docType string
	var urls []string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest Terraform documentation into the retrieval vector store",
		Long: `Fetch and index Terraform provider documentation into the Qdrant vector store.

Ingested documentation is retrieved at generation time to give the model
accurate, provider-specific reference context, reducing hallucinated resource
arguments and improving code quality.

Required environment variables:
  QDRANT_HOST          Qdrant server hostname (default: localhost)
  QDRANT_PORT          Qdrant gRPC port (default: 6334)
  QDRANT_COLLECTION    Collection name (default: terracoder-docs)
  QDRANT_API_KEY       Optional API key for authenticated clusters
  MODEL_PROVIDER       Embedding backend: mistral, openai, azure, ollama (default: mistral)
  EMBEDDING_*          Provider-specific overrides

Metadata flags (--provider, --resource-type, --doc-type) are optional. When
omitted, metadata is auto-inferred from the URL pattern (registry.terraform.io
URLs resolve the provider and resource type automatically). Explicit flags
override inference.

Examples:
  terracoder ingest --url https://registry.terraform.io/providers/hashicorp/aws/latest/docs/resources/eks_cluster
  terracoder ingest --url https://developer.hashicorp.com/terraform/language/modules
  terracoder ingest --provider aws --resource-type aws_s3_bucket --url https://example.com/custom-aws-doc`,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New()
			ctx := logging.WithLogger(cmd.Context(), log)

			if len(urls) == 0 {
				return fmt.Errorf("ingest: at least one --url is required")
			}

			emb, err := embedder.NewFromEnv()
			if err != nil {
				return fmt.Errorf("ingest: failed to initialise embedder: %w", err)
			}
			embBackend := getEnvOrDefault("EMBEDDING_PROVIDER", getEnvOrDefault("MODEL_PROVIDER", "mistral"))
			log.Info("embedder initialised", slog.String("provider", embBackend))

			qdrantHost := getEnvOrDefault("QDRANT_HOST", "localhost")
			qdrantPort := getEnvInt("QDRANT_PORT", 6334)
			collection := getEnvOrDefault("QDRANT_COLLECTION", "terracoder-docs")

			store, err := retrieval.NewQdrantStore(ctx, &retrieval.QdrantConfig{
				Host:       qdrantHost,
				Port:       qdrantPort,
				Collection: collection,
				VectorSize: uint64(embedder.DefaultDimensions(embBackend)), //nolint:gosec // dimensions are bounded
				APIKey:     os.Getenv("QDRANT_API_KEY"),
				UseTLS:     os.Getenv("QDRANT_TLS") == "true",
			})
			if err != nil {
				return fmt.Errorf("ingest: failed to connect to Qdrant at %s:%d: %w", qdrantHost, qdrantPort, err)
			}
			defer store.Close()
			log.Info("qdrant store ready", slog.String("host", qdrantHost), slog.Int("port", qdrantPort), slog.String("collection", collection))

			pipe, err := ingestion.NewPipeline(emb, store, nil)
			if err != nil {
				return fmt.Errorf("ingest: failed to create pipeline: %w", err)
			}

			providerSet := cmd.Flags().Changed("provider")
			resourceTypeSet := cmd.Flags().Changed("resource-type")
			docTypeSet := cmd.Flags().Changed("doc-type")

			sources := make([]ingestion.Source, 0, len(urls))
			for _, u := range urls {
				inferred := ingestion.InferMetadata(u)

				src := ingestion.Source{URL: u}
				if providerSet {
					src.Provider = providerLabel
				} else {
					src.Provider = inferred.Provider
				}
				if resourceTypeSet {
					src.ResourceType = resourceType
				} else {
					src.ResourceType = inferred.ResourceType
				}
				if docTypeSet {
					src.DocType = docType
				} else {
					src.DocType = inferred.DocType
				}

				log.Info("source metadata",
					slog.String("url", u),
					slog.String("provider", src.Provider),
					slog.String("resource_type", src.ResourceType),
					slog.String("doc_type", src.DocType),
				)
				sources = append(sources, src)
			}

			log.Info("starting ingestion", slog.Int("sources", len(sources)))

			if err := pipe.Ingest(ctx, sources, func(msg string) {
				log.Info(msg)
			}); err != nil {
				return fmt.Errorf("ingest: pipeline failed: %w", err)
			}

			log.Info("ingestion complete", slog.Int("sources", len(sources)))
			return nil
		},
	}

	cmd.Flags().StringVarP(&providerLabel, "provider", "p", "generic", "Cloud provider label (aws, azure, gcp, generic)")
	cmd.Flags().StringVarP(&resourceType, "resource-type", "r", "", "Terraform resource type the pages document (e.g. aws_eks_cluster)")
	cmd.Flags().StringVarP(&docType, "doc-type", "d", "reference", "Documentation type (reference, tutorial, guide, api)")
	cmd.Flags().StringArrayVarP(&urls, "url", "u", nil, "Documentation URL to ingest (repeatable)")

	return cmd
}
