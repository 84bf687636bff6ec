package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/calai-go/internal/calendar"
)

// listEventsTool exposes list_events.
type listEventsTool struct {
	// gateway records and routes the call.
	gateway *calendar.Gateway
}

// Name returns the tool name registered with the agent.
func (t *listEventsTool) Name() string { return calendar.ToolListEvents }

// Description returns the LLM-facing description of this tool.
func (t *listEventsTool) Description() string {
	return "Lists calendar events between two dates (inclusive), sorted by start time ascending. " +
		"Use this to answer questions about what is on the calendar in a date range."
}

// Info returns the Eino tool metadata including the JSON input schema.
func (t *listEventsTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: t.Name(),
		Desc: t.Description(),
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"start_date": {
				Type:     schema.String,
				Desc:     "Window start date in YYYY-MM-DD format.",
				Required: true,
			},
			"end_date": {
				Type:     schema.String,
				Desc:     "Window end date in YYYY-MM-DD format. Must not be before start_date.",
				Required: true,
			},
		}),
	}, nil
}

// InvokableRun executes the tool given a JSON-encoded input string.
func (t *listEventsTool) InvokableRun(ctx context.Context, argumentsInJSON string, opts ...tool.Option) (string, error) {
	var in calendar.ListEventsInput
	if err := json.Unmarshal([]byte(argumentsInJSON), &in); err != nil {
		return "", fmt.Errorf("list_events: invalid input: %w", err)
	}
	events, err := t.gateway.ListEvents(ctx, in)
	return marshalToolResult(events, err)
}

// getEventDetailsTool exposes get_event_details.
type getEventDetailsTool struct {
	// gateway records and routes the call.
	gateway *calendar.Gateway
}

// Name returns the tool name registered with the agent.
func (t *getEventDetailsTool) Name() string { return calendar.ToolGetEventDetails }

// Description returns the LLM-facing description of this tool.
func (t *getEventDetailsTool) Description() string {
	return "Fetches the full record for a single calendar event by its ID. " +
		"Use this after list_events or search_events when the user asks for details."
}

// Info returns the Eino tool metadata including the JSON input schema.
func (t *getEventDetailsTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: t.Name(),
		Desc: t.Description(),
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"event_id": {
				Type:     schema.String,
				Desc:     "The event identifier as returned by list_events or search_events.",
				Required: true,
			},
		}),
	}, nil
}

// InvokableRun executes the tool given a JSON-encoded input string.
func (t *getEventDetailsTool) InvokableRun(ctx context.Context, argumentsInJSON string, opts ...tool.Option) (string, error) {
	var in calendar.GetEventDetailsInput
	if err := json.Unmarshal([]byte(argumentsInJSON), &in); err != nil {
		return "", fmt.Errorf("get_event_details: invalid input: %w", err)
	}
	event, err := t.gateway.GetEventDetails(ctx, in)
	return marshalToolResult(event, err)
}

// searchEventsTool exposes search_events.
type searchEventsTool struct {
	// gateway records and routes the call.
	gateway *calendar.Gateway
}

// Name returns the tool name registered with the agent.
func (t *searchEventsTool) Name() string { return calendar.ToolSearchEvents }

// Description returns the LLM-facing description of this tool.
func (t *searchEventsTool) Description() string {
	return "Searches calendar events by keyword, matched case-insensitively against title and " +
		"description, sorted by start time. Returns an empty list when nothing matches."
}

// Info returns the Eino tool metadata including the JSON input schema.
func (t *searchEventsTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: t.Name(),
		Desc: t.Description(),
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"keyword": {
				Type:     schema.String,
				Desc:     "Keyword to match against event titles and descriptions.",
				Required: true,
			},
		}),
	}, nil
}

// InvokableRun executes the tool given a JSON-encoded input string.
func (t *searchEventsTool) InvokableRun(ctx context.Context, argumentsInJSON string, opts ...tool.Option) (string, error) {
	var in calendar.SearchEventsInput
	if err := json.Unmarshal([]byte(argumentsInJSON), &in); err != nil {
		return "", fmt.Errorf("search_events: invalid input: %w", err)
	}
	events, err := t.gateway.SearchEvents(ctx, in)
	return marshalToolResult(events, err)
}

// createEventTool exposes create_event.
type createEventTool struct {
	// gateway records and routes the call.
	gateway *calendar.Gateway
}

// Name returns the tool name registered with the agent.
func (t *createEventTool) Name() string { return calendar.ToolCreateEvent }

// Description returns the LLM-facing description of this tool.
func (t *createEventTool) Description() string {
	return "Creates a calendar event after checking the requested window for overlaps. " +
		"If an overlapping event exists the call fails with a Conflict carrying the " +
		"conflicting event(s) and free alternative slots, and nothing is created."
}

// Info returns the Eino tool metadata including the JSON input schema.
func (t *createEventTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: t.Name(),
		Desc: t.Description(),
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"title": {
				Type:     schema.String,
				Desc:     "Event title.",
				Required: true,
			},
			"date": {
				Type:     schema.String,
				Desc:     "Event date in YYYY-MM-DD format.",
				Required: true,
			},
			"start_time": {
				Type:     schema.String,
				Desc:     "Start time in HH:MM format.",
				Required: true,
			},
			"end_time": {
				Type: schema.String,
				Desc: "End time in HH:MM format. Defaults to one hour after start_time.",
			},
			"description": {
				Type: schema.String,
				Desc: "Optional event description.",
			},
			"location": {
				Type: schema.String,
				Desc: "Optional event location.",
			},
		}),
	}, nil
}

// InvokableRun executes the tool given a JSON-encoded input string.
func (t *createEventTool) InvokableRun(ctx context.Context, argumentsInJSON string, opts ...tool.Option) (string, error) {
	var in calendar.CreateEventInput
	if err := json.Unmarshal([]byte(argumentsInJSON), &in); err != nil {
		return "", fmt.Errorf("create_event: invalid input: %w", err)
	}
	event, err := t.gateway.CreateEvent(ctx, in)
	return marshalToolResult(event, err)
}

// marshalToolResult renders a tool outcome as JSON text for the model.
// ToolErrors are rendered as a structured failure object rather than a Go
// error, so the model can read the failure kind and react; anything else is
// a genuine execution error.
func marshalToolResult(payload any, err error) (string, error) {
	if err != nil {
		var te *calendar.ToolError
		if !errors.As(err, &te) {
			return "", err
		}
		out, marshalErr := json.Marshal(map[string]any{
			"error":       string(te.Kind),
			"message":     te.Message,
			"conflicts":   te.Conflicts,
			"suggestions": te.Suggestions,
		})
		if marshalErr != nil {
			return "", fmt.Errorf("tools: marshal tool failure: %w", marshalErr)
		}
		return string(out), nil
	}

	out, marshalErr := json.Marshal(payload)
	if marshalErr != nil {
		return "", fmt.Errorf("tools: marshal tool result: %w", marshalErr)
	}
	return string(out), nil
}
