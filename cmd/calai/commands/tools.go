package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/54b3r/calai-go/internal/calendar"
	"github.com/54b3r/calai-go/internal/logging"
)

// NewToolsCmd constructs the `calai tools` command, which hosts the in-memory
// calendar backend over the HTTP tool protocol. Another calai process (or any
// other client of the protocol) can then reach it via MCP_URL.
func NewToolsCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Host the calendar tool server",
		Long: `Host the in-memory calendar backend over the HTTP tool protocol.

Each of the four operations is served as POST /{tool_name}:
/list_events, /get_event_details, /search_events, /create_event.

Seed events can be loaded from a JSON file via CALENDAR_SEED, and the
timezone for date/time inputs comes from CALENDAR_TIMEZONE.

Examples:
  calai tools
  calai tools --port 9000
  CALENDAR_SEED=./seed.json calai tools`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			svc, err := buildMemoryCalendar(log)
			if err != nil {
				return fmt.Errorf("tools: %w", err)
			}
			ts, err := calendar.NewToolServer(svc)
			if err != nil {
				return fmt.Errorf("tools: %w", err)
			}

			addr := net.JoinHostPort(host, strconv.Itoa(port))
			srv := &http.Server{
				Addr:         addr,
				Handler:      ts.Handler(),
				ReadTimeout:  15 * time.Second,
				WriteTimeout: 15 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				log.Info("tool server listening", slog.String("addr", addr))
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return fmt.Errorf("tools: server failed: %w", err)
			case <-ctx.Done():
				log.Info("tool server shutting down")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			}
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 9000, "TCP port to listen on")

	return cmd
}
