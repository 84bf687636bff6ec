package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/calai-go/internal/agent"
	"github.com/54b3r/calai-go/internal/eval"
	"github.com/54b3r/calai-go/internal/store"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// QueryTimeout bounds the end-to-end processing of a single /api/query
	// request, including retrieval, tool calls, and generation.
	QueryTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [slog.Default] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all protected /api/* routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// History receives one entry per completed query. Nil disables persistence
	// and the /api/history endpoint returns an empty list.
	History store.HistoryStore
	// MetricsRegistry is where server metrics are registered. Defaults to
	// prometheus.DefaultRegisterer.
	MetricsRegistry prometheus.Registerer
	// MetricsGatherer backs the GET /metrics endpoint. Defaults to
	// prometheus.DefaultGatherer.
	MetricsGatherer prometheus.Gatherer
}

// queryRunner is the interface handleQuery calls to run the answer pipeline.
// *agent.Controller satisfies it; tests inject a fake.
type queryRunner interface {
	// Process runs one query end to end and returns the full result,
	// including the evidence bundle the evaluator audits.
	Process(ctx context.Context, query string) (*agent.Result, error)
}

// Server is the HTTP server that exposes the answer pipeline.
type Server struct {
	// runner executes queries; set to the agent controller in production,
	// overridden by a fake in tests.
	runner queryRunner
	// history persists completed queries. Nil disables persistence.
	history store.HistoryStore
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds all Prometheus metrics owned by this server instance.
	metrics *serverMetrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// queryRequest is the JSON body for POST /api/query.
type queryRequest struct {
	// Query is the user's natural language question.
	Query string `json:"query"`
}

// queryResponse is the JSON response for POST /api/query. It merges the
// generated answer with the evaluator's verdict so a single round trip gives
// the caller both the text and how much to trust it.
type queryResponse struct {
	// Answer is the generated answer text, clarification request, or decline.
	Answer string `json:"answer"`
	// Status is the answer status: answered, clarification_requested, or
	// invalid_query.
	Status agent.Status `json:"status"`
	// CitedChunkIDs lists the knowledge chunk IDs the answer cites.
	CitedChunkIDs []string `json:"cited_chunk_ids"`
	// CitedToolCalls lists the tool log indices the answer cites.
	CitedToolCalls []int `json:"cited_tool_calls"`
	// Confidence is the evaluator's aggregate score in [0, 1].
	Confidence float64 `json:"confidence"`
	// Result is the evaluator's pass/fail verdict.
	Result eval.Outcome `json:"result"`
	// Explanation summarises the evaluator's findings.
	Explanation string `json:"explanation"`
	// References lists every citation the answer actually used.
	References []eval.Reference `json:"references"`
}

// historyEntry is one element of the GET /api/history response.
type historyEntry struct {
	// Query is the original user question.
	Query string `json:"query"`
	// Answer is the answer text that was returned.
	Answer string `json:"answer"`
	// Status is the answer status at the time.
	Status string `json:"status"`
	// Result is the evaluator verdict at the time.
	Result string `json:"result"`
	// Confidence is the evaluator confidence at the time.
	Confidence float64 `json:"confidence"`
	// CreatedAt is when the query was processed.
	CreatedAt time.Time `json:"created_at"`
}
