package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloudwego/eino/callbacks"
	"github.com/spf13/cobra"

	"github.com/54b3r/calai-go/internal/logging"
	"github.com/54b3r/calai-go/internal/server"
	"github.com/54b3r/calai-go/internal/store"
	"github.com/54b3r/calai-go/internal/tracing"
)

// NewServeCmd constructs the `calai serve` command, which starts the HTTP
// server exposing the answer pipeline as a JSON API.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the calai HTTP server",
		Long: `Start the calai HTTP server on localhost.

The server exposes POST /api/query, which runs a question through the full
pipeline and returns the answer together with the evaluator's verdict, plus
/api/history, /api/health, /api/ready, and /metrics.

Examples:
  calai serve
  calai serve --port 9090
  MODEL_PROVIDER=azure calai serve`,
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

			// Open query history store. CALAI_HISTORY_DB overrides the
			// default path (~/.calai/history.db). Set to "disabled" to disable.
			var historyStore store.HistoryStore
			dbPath := os.Getenv("CALAI_HISTORY_DB")
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
				log.Info("history: disabled via CALAI_HISTORY_DB=disabled")
			}

			srv, err := server.New(p.ctrl, &server.Config{
				Host:    host,
				Port:    port,
				Logger:  log,
				Pingers: p.buildPingers(),
				APIKey:  os.Getenv("CALAI_API_KEY"),
				History: historyStore,
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on")

	return cmd
}
