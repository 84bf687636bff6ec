package server

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/qdrant/go-client/qdrant"

	"github.com/54b3r/calai-go/internal/calendar"
)

// LLMPinger probes an LLM backend by sending a minimal single-message
// generate request. It satisfies the Pinger interface and is used by
// GET /api/ready.
type LLMPinger struct {
	// model is the chat model to probe.
	model model.ToolCallingChatModel
	// name identifies the backend in readiness responses (e.g. "ollama").
	name string
}

// NewLLMPinger constructs an LLMPinger for the given model and backend name.
func NewLLMPinger(m model.ToolCallingChatModel, name string) *LLMPinger {
	return &LLMPinger{model: m, name: name}
}

// Name returns the backend label used in readiness responses.
func (p *LLMPinger) Name() string { return p.name }

// Ping sends a single-word generate request to the backend. This consumes a
// handful of tokens, so /api/ready should not be polled aggressively.
func (p *LLMPinger) Ping(ctx context.Context) error {
	resp, err := p.model.Generate(ctx, []*schema.Message{schema.UserMessage("ping")})
	if err != nil {
		return fmt.Errorf("generate failed: %w", err)
	}
	if resp == nil {
		return fmt.Errorf("generate returned nil response")
	}
	return nil
}

// QdrantPinger probes a Qdrant instance using its native HealthCheck RPC.
// It satisfies the Pinger interface and is used by GET /api/ready.
type QdrantPinger struct {
	// client is the Qdrant gRPC client to probe.
	client *qdrant.Client
}

// NewQdrantPinger constructs a QdrantPinger for the given Qdrant client.
func NewQdrantPinger(client *qdrant.Client) *QdrantPinger {
	return &QdrantPinger{client: client}
}

// Name returns the dependency label used in readiness responses.
func (p *QdrantPinger) Name() string { return "qdrant" }

// Ping calls the Qdrant HealthCheck RPC.
// Returns nil if Qdrant is reachable, or a descriptive error otherwise.
func (p *QdrantPinger) Ping(ctx context.Context) error {
	_, err := p.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}

// CalendarPinger probes the calendar backend with a one-day list query,
// which exercises the full request path without mutating any state.
type CalendarPinger struct {
	// svc is the calendar backend to probe.
	svc calendar.Service
	// now supplies the probe window's anchor date.
	now func() time.Time
}

// NewCalendarPinger constructs a CalendarPinger for the given backend.
func NewCalendarPinger(svc calendar.Service) *CalendarPinger {
	return &CalendarPinger{svc: svc, now: time.Now}
}

// Name returns the dependency label used in readiness responses.
func (p *CalendarPinger) Name() string { return "calendar" }

// Ping lists events for the current day and discards the result.
func (p *CalendarPinger) Ping(ctx context.Context) error {
	day := p.now().Format("2006-01-02")
	_, err := p.svc.ListEvents(ctx, calendar.ListEventsInput{
		StartDate: day,
		EndDate:   day,
	})
	if err != nil {
		return fmt.Errorf("list probe failed: %w", err)
	}
	return nil
}
