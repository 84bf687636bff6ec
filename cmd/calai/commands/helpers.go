package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/cloudwego/eino/components/model"

	"github.com/54b3r/calai-go/internal/agent"
	"github.com/54b3r/calai-go/internal/calendar"
	"github.com/54b3r/calai-go/internal/completion"
	"github.com/54b3r/calai-go/internal/embedder"
	"github.com/54b3r/calai-go/internal/provider"
	"github.com/54b3r/calai-go/internal/rag"
	"github.com/54b3r/calai-go/internal/server"
)

// buildCalendar constructs the calendar backend. When MCP_URL is set, calls
// go to the remote tool server; otherwise an in-process calendar is used,
// optionally seeded from the JSON file named by CALENDAR_SEED.
func buildCalendar(log *slog.Logger) (calendar.Service, error) {
	if mcpURL := os.Getenv("MCP_URL"); mcpURL != "" {
		client, err := calendar.NewClient(&calendar.ClientConfig{BaseURL: mcpURL})
		if err != nil {
			return nil, fmt.Errorf("calendar client: %w", err)
		}
		log.Info("calendar: using MCP tool server", slog.String("url", mcpURL))
		return client, nil
	}
	return buildMemoryCalendar(log)
}

// buildMemoryCalendar constructs the in-process calendar backend, optionally
// seeded from the JSON file named by CALENDAR_SEED. Shared between the
// pipeline's local mode and the `tools` command that hosts this backend for
// other processes.
func buildMemoryCalendar(log *slog.Logger) (*calendar.MemoryService, error) {
	loc := time.UTC
	tz := getEnvOrDefault("CALENDAR_TIMEZONE", "Asia/Kolkata")
	if l, err := time.LoadLocation(tz); err == nil {
		loc = l
	} else {
		log.Warn("calendar: invalid CALENDAR_TIMEZONE, falling back to UTC", slog.String("timezone", tz))
	}

	svc := calendar.NewMemoryService(loc)
	if seedPath := os.Getenv("CALENDAR_SEED"); seedPath != "" {
		events, err := loadSeedEvents(seedPath)
		if err != nil {
			return nil, fmt.Errorf("calendar seed: %w", err)
		}
		svc.Seed(events...)
		log.Info("calendar: seeded in-memory backend",
			slog.String("path", seedPath),
			slog.Int("events", len(events)),
		)
	}
	return svc, nil
}

// loadSeedEvents reads a JSON array of events from path.
func loadSeedEvents(path string) ([]calendar.Event, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var events []calendar.Event
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return events, nil
}

// buildRetriever connects to Qdrant and wraps it in a retriever. Retrieval
// is optional: when the embedder or Qdrant cannot be initialised the agent
// runs in tools-only mode, so failures here return a nil retriever and a
// warning rather than an error. The store is returned alongside the
// retriever for readiness probes.
func buildRetriever(ctx context.Context, log *slog.Logger) (rag.Retriever, *rag.QdrantStore) {
	emb, err := embedder.NewFromEnv()
	if err != nil {
		log.Warn("retrieval disabled: embedder unavailable", slog.Any("error", err))
		return nil, nil
	}

	embBackend := getEnvOrDefault("EMBEDDING_PROVIDER", getEnvOrDefault("MODEL_PROVIDER", "ollama"))
	store, err := rag.NewQdrantStore(ctx, &rag.QdrantConfig{
		Host:       getEnvOrDefault("QDRANT_HOST", "localhost"),
		Port:       getEnvInt("QDRANT_PORT", 6334),
		Collection: getEnvOrDefault("QDRANT_COLLECTION", "calai-knowledge"),
		VectorSize: uint64(embedder.DefaultDimensions(embBackend)), //nolint:gosec // dimensions are bounded
		APIKey:     os.Getenv("QDRANT_API_KEY"),
		UseTLS:     os.Getenv("QDRANT_TLS") == "true",
	})
	if err != nil {
		log.Warn("retrieval disabled: qdrant unavailable", slog.Any("error", err))
		return nil, nil
	}

	retriever, err := rag.NewRetriever(emb, store, getEnvInt("RETRIEVAL_TOP_K", 0), getEnvFloat32("RETRIEVAL_MIN_SCORE", 0))
	if err != nil {
		_ = store.Close()
		log.Warn("retrieval disabled", slog.Any("error", err))
		return nil, nil
	}

	log.Info("retrieval enabled", slog.String("collection", getEnvOrDefault("QDRANT_COLLECTION", "calai-knowledge")))
	return retriever, store
}

// pipeline bundles the fully wired answer pipeline and its dependencies so
// both `ask` and `serve` can construct it the same way.
type pipeline struct {
	// ctrl is the agent controller that runs queries end to end.
	ctrl *agent.Controller
	// chatModel is the underlying LLM, exposed for readiness probes.
	chatModel model.ToolCallingChatModel
	// calendar is the calendar backend, exposed for readiness probes.
	calendar calendar.Service
	// retriever is the knowledge retriever, nil when retrieval is disabled.
	retriever rag.Retriever
	// qdrant is the chunk store, nil when retrieval is disabled.
	qdrant *rag.QdrantStore
}

// close releases the pipeline's external connections.
func (p *pipeline) close() {
	if p.qdrant != nil {
		_ = p.qdrant.Close()
	}
}

// buildPipeline assembles the full answer pipeline from environment
// configuration: model provider, generator, retriever, and calendar backend.
func buildPipeline(ctx context.Context, log *slog.Logger) (*pipeline, error) {
	chatModel, err := provider.NewFromEnv(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise model provider: %w", err)
	}

	completer, err := completion.NewModelCompleter(chatModel, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise completer: %w", err)
	}
	generator, err := agent.NewGenerator(completer)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise generator: %w", err)
	}

	calendarSvc, err := buildCalendar(log)
	if err != nil {
		return nil, err
	}

	retriever, qdrantStore := buildRetriever(ctx, log)

	ctrl, err := agent.NewController(&agent.Config{
		Retriever: retriever,
		Calendar:  calendarSvc,
		Generator: generator,
		TopK:      getEnvInt("RETRIEVAL_TOP_K", 0),
		MinScore:  getEnvFloat32("RETRIEVAL_MIN_SCORE", 0),
		Timezone:  os.Getenv("CALENDAR_TIMEZONE"),
	})
	if err != nil {
		if qdrantStore != nil {
			_ = qdrantStore.Close()
		}
		return nil, fmt.Errorf("failed to initialise controller: %w", err)
	}

	return &pipeline{
		ctrl:      ctrl,
		chatModel: chatModel,
		calendar:  calendarSvc,
		retriever: retriever,
		qdrant:    qdrantStore,
	}, nil
}

// buildPingers assembles the readiness probes for the HTTP server.
func (p *pipeline) buildPingers() []server.Pinger {
	pingers := []server.Pinger{
		server.NewLLMPinger(p.chatModel, getEnvOrDefault("MODEL_PROVIDER", "ollama")),
		server.NewCalendarPinger(p.calendar),
	}
	if p.qdrant != nil {
		pingers = append(pingers, server.NewQdrantPinger(p.qdrant.Client()))
	}
	return pingers
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

// getEnvFloat32 returns the float32 value of the named environment variable,
// or fallback if the variable is unset, empty, or not parseable.
func getEnvFloat32(key string, fallback float32) float32 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 32); err == nil {
			return float32(f)
		}
	}
	return fallback
}
