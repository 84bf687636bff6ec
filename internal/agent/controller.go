package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/54b3r/calai-go/internal/calendar"
	"github.com/54b3r/calai-go/internal/logging"
	"github.com/54b3r/calai-go/internal/rag"
)

// Config holds the dependencies required to construct a Controller.
type Config struct {
	// Retriever is the knowledge-base retriever. May be nil when no
	// knowledge base is configured; retrieval routes then yield no chunks.
	Retriever rag.Retriever

	// Calendar is the calendar backend reached through a per-query Gateway.
	Calendar calendar.Service

	// Generator produces the final answer from the assembled bundle.
	Generator *Generator

	// TopK is the retrieval result size. Defaults to 5 if zero.
	TopK int

	// MinScore is the retrieval relevance cutoff. Defaults to 0.2 if zero.
	MinScore float32

	// Timezone is the IANA timezone name all tool call times are interpreted
	// in. Recorded on every bundle. Defaults to Asia/Kolkata if empty.
	Timezone string

	// Now supplies the reference time for relative dates and default
	// windows. Defaults to time.Now.
	Now func() time.Time
}

// Controller runs the per-query state machine: Classify, MissingInfo check,
// Gather, Handoff. Terminal states are answered, clarification_requested,
// and invalid_query; no state is re-entered for the same query.
type Controller struct {
	// retriever is the knowledge-base retriever, nil when unconfigured.
	retriever rag.Retriever

	// service is the calendar backend.
	service calendar.Service

	// generator produces the final answer.
	generator *Generator

	// topK is the retrieval result size.
	topK int

	// minScore is the retrieval relevance cutoff.
	minScore float32

	// timezone is the timezone assumption recorded on every bundle.
	timezone string

	// now supplies the reference time for relative dates.
	now func() time.Time
}

// NewController constructs a Controller from the provided Config.
func NewController(cfg *Config) (*Controller, error) {
	if cfg.Calendar == nil {
		return nil, fmt.Errorf("agent: Calendar must not be nil")
	}
	if cfg.Generator == nil {
		return nil, fmt.Errorf("agent: Generator must not be nil")
	}

	topK := cfg.TopK
	if topK <= 0 {
		topK = 5
	}
	minScore := cfg.MinScore
	if minScore == 0 {
		minScore = 0.2
	}
	tz := cfg.Timezone
	if tz == "" {
		tz = "Asia/Kolkata"
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Controller{
		retriever: cfg.Retriever,
		service:   cfg.Calendar,
		generator: cfg.Generator,
		topK:      topK,
		minScore:  minScore,
		timezone:  tz,
		now:       now,
	}, nil
}

// Process answers one query. The returned Result carries the answer, the
// evidence bundle it was derived from, and the routing decision, so the
// evaluator can re-check support independently.
func (c *Controller) Process(ctx context.Context, query string) (*Result, error) {
	log := logging.FromContext(ctx)

	if strings.TrimSpace(query) == "" {
		return &Result{
			Answer: Answer{
				Text:   "The query is empty. Please ask a question.",
				Status: StatusInvalidQuery,
			},
			Bundle: ContextBundle{TimezoneAssumption: c.timezone},
		}, nil
	}

	decision := Classify(query, c.now())
	log.Debug("query classified",
		slog.String("route", decision.Route.String()),
		slog.String("intent", decision.Intent.String()),
	)

	// Missing mandatory arguments short-circuit before any tool call is
	// issued; the tool log stays empty.
	if decision.Route == RouteMissingInfo || decision.Route == RouteAmbiguousQuery {
		return &Result{
			Answer: Answer{
				Text: fmt.Sprintf("The query is ambiguous. Please provide the following details: %s.",
					strings.Join(decision.Missing, ", ")),
				Status: StatusClarification,
			},
			Bundle:   ContextBundle{TimezoneAssumption: c.timezone},
			Decision: decision,
		}, nil
	}

	bundle := c.gather(ctx, query, &decision)

	answer, err := c.generator.Generate(ctx, query, &bundle)
	if err != nil {
		return nil, fmt.Errorf("agent: answer generation failed: %w", err)
	}

	return &Result{Answer: answer, Bundle: bundle, Decision: decision}, nil
}

// gather issues the retrieval and tool calls the decision asks for and
// assembles the context bundle. Evidence gathering is fail-soft: a failed
// retrieval degrades to an empty result, a failed tool call lands in the log
// as a recorded failure. Tool calls are issued sequentially in the order the
// query implies.
func (c *Controller) gather(ctx context.Context, query string, d *Decision) ContextBundle {
	log := logging.FromContext(ctx)
	bundle := ContextBundle{TimezoneAssumption: c.timezone}

	if d.NeedsRetrieval() && c.retriever != nil {
		retrieved, err := c.retriever.Retrieve(ctx, query, c.topK, c.minScore)
		if err != nil {
			log.Warn("retrieval failed, continuing without knowledge context", slog.Any("error", err))
		} else {
			bundle.Retrieved = retrieved
		}
	}

	if d.NeedsTools() {
		gw := calendar.NewGateway(c.service)
		c.callTools(ctx, gw, d)
		bundle.ToolRecords = gw.Records()
	}

	return bundle
}

// callTools runs the calendar operations for the classified intent. Errors
// are not propagated here: the gateway has already recorded each outcome and
// the records are the evidence the generator reasons over.
func (c *Controller) callTools(ctx context.Context, gw *calendar.Gateway, d *Decision) {
	switch d.Intent {
	case IntentList:
		_, _ = gw.ListEvents(ctx, d.List)
	case IntentDetails:
		_, _ = gw.GetEventDetails(ctx, d.Details)
	case IntentSearch:
		_, _ = gw.SearchEvents(ctx, d.Search)
	case IntentCreate:
		// Check for same-named events first so the answer can mention naming
		// collisions; the overlap check itself happens inside create_event.
		_, _ = gw.SearchEvents(ctx, calendar.SearchEventsInput{Keyword: d.Create.Title})
		_, _ = gw.CreateEvent(ctx, d.Create)
	}
}
