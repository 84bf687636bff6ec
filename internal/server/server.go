// Package server implements the HTTP server that exposes the calendar
// answer pipeline via a JSON REST API.
// The server is started by the `calai serve` CLI command.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/54b3r/calai-go/internal/eval"
	"github.com/54b3r/calai-go/internal/logging"
	"github.com/54b3r/calai-go/internal/store"
)

// New constructs a Server from the provided query runner and config.
func New(runner queryRunner, cfg *Config) (*Server, error) {
	if runner == nil {
		return nil, fmt.Errorf("server: query runner must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		// WriteTimeout must cover the slowest full pipeline run.
		cfg.WriteTimeout = 5 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.QueryTimeout == 0 {
		cfg.QueryTimeout = 2 * time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = defaultRateBurst
	}
	if cfg.MetricsRegistry == nil {
		cfg.MetricsRegistry = prometheus.DefaultRegisterer
	}
	if cfg.MetricsGatherer == nil {
		cfg.MetricsGatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		runner:  runner,
		history: cfg.History,
		cfg:     cfg,
		log:     cfg.Logger,
		pingers: cfg.Pingers,
		metrics: newServerMetrics(cfg.MetricsRegistry),
	}

	rl, stopRL := newRateLimiter(cfg.RateLimit, cfg.RateBurst, cfg.Logger)
	s.stopRL = stopRL

	// Protected routes require the API key and count against the per-IP
	// rate limit. Health, readiness, and metrics stay open for probes.
	protect := func(name string, h http.Handler) http.Handler {
		return s.instrument(name, authMiddleware(cfg.APIKey, rl.middleware(h)))
	}

	mux := http.NewServeMux()
	mux.Handle("POST /api/query", protect("query", http.HandlerFunc(s.handleQuery)))
	mux.Handle("GET /api/history", protect("history", http.HandlerFunc(s.handleHistory)))
	mux.Handle("GET /api/health", s.instrument("health", http.HandlerFunc(s.handleHealth)))
	mux.Handle("GET /api/ready", s.instrument("ready", http.HandlerFunc(s.handleReady)))
	mux.Handle("GET /metrics", promhttp.HandlerFor(cfg.MetricsGatherer, promhttp.HandlerOpts{}))

	if cfg.APIKey == "" {
		s.log.Warn("server: CALAI_API_KEY not set — API authentication is disabled")
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      requestLogger(cfg.Logger, mux),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.log.Info("server: listening", slog.String("addr", "http://"+s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		s.stopRL()
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		s.stopRL()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		return nil
	}
}

// handleQuery handles POST /api/query. It runs the full pipeline — classify,
// gather evidence, generate, evaluate — and returns the answer together with
// the evaluator's verdict in a single JSON response.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.metrics.queryRequestsTotal.WithLabelValues(outcomeInvalid).Inc()
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Query == "" {
		s.metrics.queryRequestsTotal.WithLabelValues(outcomeInvalid).Inc()
		http.Error(w, "query is required", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.QueryTimeout)
	defer cancel()

	s.metrics.queryActiveRequests.Inc()
	defer s.metrics.queryActiveRequests.Dec()

	start := time.Now()
	res, err := s.runner.Process(ctx, req.Query)
	if err != nil {
		s.metrics.queryRequestsTotal.WithLabelValues(outcomeError).Inc()
		s.metrics.queryDurationSeconds.WithLabelValues(outcomeError).Observe(time.Since(start).Seconds())
		log.Error("query failed", slog.Any("error", err))
		http.Error(w, "query processing failed", http.StatusInternalServerError)
		return
	}

	verdict, err := eval.Evaluate(res)
	if err != nil {
		s.metrics.queryRequestsTotal.WithLabelValues(outcomeError).Inc()
		s.metrics.queryDurationSeconds.WithLabelValues(outcomeError).Observe(time.Since(start).Seconds())
		log.Error("evaluation failed", slog.Any("error", err))
		http.Error(w, "answer evaluation failed", http.StatusInternalServerError)
		return
	}

	s.appendHistory(ctx, log, req.Query, res.Answer.Text, string(res.Answer.Status), verdict)

	s.metrics.queryRequestsTotal.WithLabelValues(outcomeOK).Inc()
	s.metrics.queryDurationSeconds.WithLabelValues(outcomeOK).Observe(time.Since(start).Seconds())

	resp := queryResponse{
		Answer:         res.Answer.Text,
		Status:         res.Answer.Status,
		CitedChunkIDs:  res.Answer.CitedChunkIDs,
		CitedToolCalls: res.Answer.CitedToolCalls,
		Confidence:     verdict.Confidence,
		Result:         verdict.Result,
		Explanation:    verdict.Explanation,
		References:     verdict.References,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Error("query encode error", slog.Any("error", err))
	}
}

// appendHistory persists a completed query. Persistence failures are logged
// and never fail the request.
func (s *Server) appendHistory(ctx context.Context, log *slog.Logger, query, answer, status string, verdict *eval.Verdict) {
	if s.history == nil {
		return
	}
	err := s.history.Append(ctx, store.Entry{
		Query:      query,
		Answer:     answer,
		Status:     status,
		Result:     string(verdict.Result),
		Confidence: verdict.Confidence,
	})
	if err != nil {
		log.Warn("history append failed", slog.Any("error", err))
	}
}

// handleHistory handles GET /api/history?n=<count>. It returns the most
// recent queries, newest first. Without a history store it returns an empty
// list rather than an error so the endpoint is always safe to call.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	n := 20
	if raw := r.URL.Query().Get("n"); raw != "" {
		if _, err := fmt.Sscanf(raw, "%d", &n); err != nil || n < 1 || n > 500 {
			http.Error(w, "n must be an integer between 1 and 500", http.StatusBadRequest)
			return
		}
	}

	out := []historyEntry{}
	if s.history != nil {
		entries, err := s.history.Recent(r.Context(), n)
		if err != nil {
			log.Error("history read failed", slog.Any("error", err))
			http.Error(w, "failed to read history", http.StatusInternalServerError)
			return
		}
		for _, e := range entries {
			out = append(out, historyEntry{
				Query:      e.Query,
				Answer:     e.Answer,
				Status:     e.Status,
				Result:     e.Result,
				Confidence: e.Confidence,
				CreatedAt:  e.CreatedAt,
			})
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(out); err != nil {
		log.Error("history encode error", slog.Any("error", err))
	}
}

// handleHealth handles GET /api/health for liveness checks.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
