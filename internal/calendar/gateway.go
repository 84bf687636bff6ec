package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/54b3r/calai-go/internal/logging"
)

// Tool names as they appear on the protocol surface and in the call log.
const (
	ToolListEvents      = "list_events"
	ToolGetEventDetails = "get_event_details"
	ToolSearchEvents    = "search_events"
	ToolCreateEvent     = "create_event"
)

// Record is one entry in the append-only tool call log. Every call made
// through the Gateway — successful or not — produces exactly one Record,
// captured verbatim: the log is evidence, not a side channel.
type Record struct {
	// Tool is the operation name (list_events, get_event_details,
	// search_events, create_event).
	Tool string `json:"tool"`

	// Arguments is the JSON-encoded input the tool was called with.
	Arguments json.RawMessage `json:"arguments"`

	// Events holds the success payload. Single-event operations store a
	// one-element slice. Nil on failure.
	Events []Event `json:"events,omitempty"`

	// Failure holds the typed failure. Nil on success.
	Failure *ToolError `json:"failure,omitempty"`

	// Timestamp is when the call completed.
	Timestamp time.Time `json:"timestamp"`
}

// OK reports whether the call succeeded.
func (r *Record) OK() bool { return r.Failure == nil }

// Gateway wraps a Service with per-query call recording and a single-writer
// discipline for create_event. One Gateway is created per query; its log is
// discarded with the query. The Gateway is the only path the controller uses
// to reach the calendar, so the log is complete by construction.
type Gateway struct {
	// service is the underlying calendar backend.
	service Service

	// createMu serialises create_event calls so the backend's
	// check-then-insert sequence never races another create issued through
	// this process.
	createMu *sync.Mutex

	// mu protects records.
	mu sync.Mutex

	// records is the append-only call log for this query.
	records []Record
}

// sharedCreateMu is the process-wide create_event serialisation lock.
// Gateways are per-query, so the lock must outlive any single Gateway.
var sharedCreateMu sync.Mutex

// NewGateway constructs a Gateway over the given Service.
func NewGateway(service Service) *Gateway {
	return &Gateway{service: service, createMu: &sharedCreateMu}
}

// Records returns a copy of the call log in call order.
func (g *Gateway) Records() []Record {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Record, len(g.records))
	copy(out, g.records)
	return out
}

// ListEvents invokes list_events and records the outcome.
func (g *Gateway) ListEvents(ctx context.Context, in ListEventsInput) ([]Event, error) {
	events, err := g.service.ListEvents(ctx, in)
	g.record(ctx, ToolListEvents, in, events, err)
	return events, err
}

// GetEventDetails invokes get_event_details and records the outcome.
func (g *Gateway) GetEventDetails(ctx context.Context, in GetEventDetailsInput) (Event, error) {
	event, err := g.service.GetEventDetails(ctx, in)
	var payload []Event
	if err == nil {
		payload = []Event{event}
	}
	g.record(ctx, ToolGetEventDetails, in, payload, err)
	return event, err
}

// SearchEvents invokes search_events and records the outcome.
func (g *Gateway) SearchEvents(ctx context.Context, in SearchEventsInput) ([]Event, error) {
	events, err := g.service.SearchEvents(ctx, in)
	g.record(ctx, ToolSearchEvents, in, events, err)
	return events, err
}

// CreateEvent invokes create_event under the single-writer lock and records
// the outcome. A Conflict failure is recorded like any other — the answer
// surfaces it to the user, the evaluator sees it as evidence.
func (g *Gateway) CreateEvent(ctx context.Context, in CreateEventInput) (Event, error) {
	g.createMu.Lock()
	event, err := g.service.CreateEvent(ctx, in)
	g.createMu.Unlock()

	var payload []Event
	if err == nil {
		payload = []Event{event}
	}
	g.record(ctx, ToolCreateEvent, in, payload, err)
	return event, err
}

// record appends one Record for a completed call. Failures that are not
// ToolErrors (programming errors, cancelled contexts) are coerced to Timeout
// so the log never silently drops an outcome.
func (g *Gateway) record(ctx context.Context, tool string, args any, events []Event, err error) {
	raw, marshalErr := json.Marshal(args)
	if marshalErr != nil {
		raw = json.RawMessage(`{}`)
	}

	rec := Record{
		Tool:      tool,
		Arguments: raw,
		Events:    events,
		Timestamp: time.Now(),
	}
	if err != nil {
		var te *ToolError
		if errors.As(err, &te) {
			rec.Failure = te
		} else {
			rec.Failure = &ToolError{Kind: ErrTimeout, Message: err.Error()}
		}
		logging.FromContext(ctx).Warn("calendar tool call failed",
			slog.String("tool", tool),
			slog.String("kind", string(rec.Failure.Kind)),
			slog.String("message", rec.Failure.Message),
		)
	}

	g.mu.Lock()
	g.records = append(g.records, rec)
	g.mu.Unlock()
}
