package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/54b3r/calai-go/internal/embedder"
	"github.com/54b3r/calai-go/internal/ingestion"
	"github.com/54b3r/calai-go/internal/rag"
)

// NewIngestCmd constructs the `calai ingest` command, which runs the
// knowledge base ingestion pipeline to populate the chunk store.
func NewIngestCmd() *cobra.Command {
	var category string
	var locations []string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest policy and handbook documents into the knowledge base",
		Long: `Fetch and index knowledge documents into the Qdrant chunk store.

Ingested documents give the assistant grounded context for policy questions
("according to the booking policy..."), so answers can cite real chunks
instead of guessing.

Required environment variables:
  QDRANT_HOST          Qdrant server hostname (default: localhost)
  QDRANT_PORT          Qdrant gRPC port (default: 6334)
  QDRANT_COLLECTION    Collection name (default: calai-knowledge)
  QDRANT_API_KEY       Optional API key for authenticated clusters
  MODEL_PROVIDER       Embedding backend: ollama, openai, azure (default: ollama)
  EMBEDDING_*          Provider-specific overrides (see README)

The --category flag is optional. When omitted, the category is inferred from
the location's path segments (e.g. /policies/ resolves to "policy").

Examples:
  calai ingest --source https://intranet.example.com/policies/meeting-room-booking
  calai ingest --source ./docs/handbook/working-hours.md
  calai ingest --category faq --source https://example.com/help/calendar`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := slog.Default()

			if len(locations) == 0 {
				return fmt.Errorf("ingest: at least one --source is required")
			}

			if err := embedder.ValidateForRAG(log); err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			emb, err := embedder.NewFromEnv()
			if err != nil {
				return fmt.Errorf("ingest: failed to initialise embedder: %w", err)
			}
			log.Info("embedder initialised", slog.String("provider", getEnvOrDefault("EMBEDDING_PROVIDER", getEnvOrDefault("MODEL_PROVIDER", "ollama"))))

			qdrantHost := getEnvOrDefault("QDRANT_HOST", "localhost")
			qdrantPort := getEnvInt("QDRANT_PORT", 6334)
			collection := getEnvOrDefault("QDRANT_COLLECTION", "calai-knowledge")
			embBackend := getEnvOrDefault("EMBEDDING_PROVIDER", getEnvOrDefault("MODEL_PROVIDER", "ollama"))
			vectorSize := uint64(embedder.DefaultDimensions(embBackend)) //nolint:gosec // dimensions are bounded

			store, err := rag.NewQdrantStore(ctx, &rag.QdrantConfig{
				Host:       qdrantHost,
				Port:       qdrantPort,
				Collection: collection,
				VectorSize: vectorSize,
				APIKey:     os.Getenv("QDRANT_API_KEY"),
				UseTLS:     os.Getenv("QDRANT_TLS") == "true",
			})
			if err != nil {
				return fmt.Errorf("ingest: failed to connect to Qdrant at %s:%d: %w", qdrantHost, qdrantPort, err)
			}
			defer store.Close()
			log.Info("qdrant store ready", slog.String("host", qdrantHost), slog.Int("port", qdrantPort), slog.String("collection", collection))

			pipeline, err := ingestion.NewPipeline(emb, store, nil)
			if err != nil {
				return fmt.Errorf("ingest: failed to create pipeline: %w", err)
			}

			categorySet := cmd.Flags().Changed("category")

			sources := make([]ingestion.Source, 0, len(locations))
			for _, loc := range locations {
				inferred := ingestion.InferMetadata(loc)

				src := ingestion.Source{Location: loc}
				if categorySet {
					src.Category = category
				} else {
					src.Category = inferred.Category
				}

				log.Info("source metadata",
					slog.String("location", loc),
					slog.String("category", src.Category),
					slog.String("title", inferred.Title),
				)
				sources = append(sources, src)
			}

			log.Info("starting ingestion", slog.Int("sources", len(sources)))

			if err := pipeline.Ingest(ctx, sources, func(msg string) {
				log.Info(msg)
			}); err != nil {
				return fmt.Errorf("ingest: pipeline failed: %w", err)
			}

			log.Info("ingestion complete", slog.Int("sources", len(sources)))
			return nil
		},
	}

	cmd.Flags().StringVarP(&category, "category", "c", "reference", "Document category (policy, handbook, faq, guide, reference)")
	cmd.Flags().StringArrayVarP(&locations, "source", "s", nil, "Document URL or file path to ingest (repeatable)")

	return cmd
}
