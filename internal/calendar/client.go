package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Client is a Service implementation that talks to an external calendar tool
// server over HTTP. Each operation is a POST /{tool_name} with a JSON body,
// mirroring the tool protocol surface. Transient failures (network errors,
// 5xx responses) are retried with bounded exponential backoff; exhausted
// retries surface as a Timeout ToolError so the failure lands in the tool
// call log instead of crashing the pipeline.
type Client struct {
	// baseURL is the tool server base URL (e.g. "http://localhost:9000").
	baseURL string

	// httpClient is the shared HTTP client carrying the per-call timeout.
	httpClient *http.Client

	// maxRetries bounds the number of retry attempts per call.
	maxRetries uint64
}

// ClientConfig holds the settings for constructing a Client.
type ClientConfig struct {
	// BaseURL is the tool server base URL. Required.
	BaseURL string

	// Timeout is the per-attempt HTTP timeout. Defaults to 15s, matching
	// the tool server's own request budget.
	Timeout time.Duration

	// MaxRetries bounds retry attempts for transient failures. Defaults to 3.
	MaxRetries uint64
}

// NewClient constructs a Client from the given config.
func NewClient(cfg *ClientConfig) (*Client, error) {
	if cfg == nil || cfg.BaseURL == "" {
		return nil, fmt.Errorf("calendar: client BaseURL must not be empty")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = 3
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: maxRetries,
	}, nil
}

// wireEvent is the JSON shape events travel in on the tool protocol.
type wireEvent struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Start       string `json:"start"`
	End         string `json:"end"`
	Description string `json:"description,omitempty"`
	Location    string `json:"location,omitempty"`
}

// wireError is the JSON failure body returned by the tool server.
type wireError struct {
	Kind        string      `json:"kind"`
	Message     string      `json:"message"`
	Conflicts   []wireEvent `json:"conflicts,omitempty"`
	Suggestions []Slot      `json:"suggestions,omitempty"`
}

// ListEvents calls POST /list_events.
func (c *Client) ListEvents(ctx context.Context, in ListEventsInput) ([]Event, error) {
	return c.callForEvents(ctx, "list_events", in)
}

// GetEventDetails calls POST /get_event_details.
func (c *Client) GetEventDetails(ctx context.Context, in GetEventDetailsInput) (Event, error) {
	var we wireEvent
	if err := c.call(ctx, "get_event_details", in, &we); err != nil {
		return Event{}, err
	}
	return decodeEvent(we)
}

// SearchEvents calls POST /search_events.
func (c *Client) SearchEvents(ctx context.Context, in SearchEventsInput) ([]Event, error) {
	return c.callForEvents(ctx, "search_events", in)
}

// CreateEvent calls POST /create_event.
func (c *Client) CreateEvent(ctx context.Context, in CreateEventInput) (Event, error) {
	var we wireEvent
	if err := c.call(ctx, "create_event", in, &we); err != nil {
		return Event{}, err
	}
	return decodeEvent(we)
}

// callForEvents performs a call whose success payload is a list of events.
func (c *Client) callForEvents(ctx context.Context, tool string, in any) ([]Event, error) {
	var wires []wireEvent
	if err := c.call(ctx, tool, in, &wires); err != nil {
		return nil, err
	}
	events := make([]Event, 0, len(wires))
	for _, we := range wires {
		e, err := decodeEvent(we)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, nil
}

// call POSTs the input to /{tool} and decodes the success payload into out.
// 4xx responses carry a typed wireError and are never retried; network errors
// and 5xx responses are retried with exponential backoff up to maxRetries.
func (c *Client) call(ctx context.Context, tool string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("calendar: marshal %s input: %w", tool, err)
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.maxRetries), ctx)

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			c.baseURL+"/"+tool, bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("calendar: create %s request: %w", tool, err))
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			// Network-level failure — retryable.
			return fmt.Errorf("calendar: %s request failed: %w", tool, err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return backoff.Permanent(fmt.Errorf("calendar: decode %s response: %w", tool, err))
			}
			return nil
		case resp.StatusCode >= 500:
			// Server-side failure — retryable.
			return fmt.Errorf("calendar: %s returned HTTP %d", tool, resp.StatusCode)
		default:
			// 4xx carries a typed failure. Never retried.
			var we wireError
			if err := json.NewDecoder(resp.Body).Decode(&we); err != nil {
				return backoff.Permanent(&ToolError{
					Kind:    ErrValidation,
					Message: fmt.Sprintf("%s returned HTTP %d with undecodable body", tool, resp.StatusCode),
				})
			}
			return backoff.Permanent(decodeError(&we))
		}
	}

	if err := backoff.Retry(operation, policy); err != nil {
		var te *ToolError
		if errors.As(err, &te) {
			return te
		}
		// Retries exhausted or context expired — surface as Timeout so the
		// failure is recorded as evidence rather than aborting the query.
		return &ToolError{Kind: ErrTimeout, Message: err.Error()}
	}
	return nil
}

// decodeEvent converts a wire event into the domain Event, parsing RFC 3339
// timestamps.
func decodeEvent(we wireEvent) (Event, error) {
	start, err := time.Parse(time.RFC3339, we.Start)
	if err != nil {
		return Event{}, fmt.Errorf("calendar: event %s has invalid start %q: %w", we.ID, we.Start, err)
	}
	end, err := time.Parse(time.RFC3339, we.End)
	if err != nil {
		return Event{}, fmt.Errorf("calendar: event %s has invalid end %q: %w", we.ID, we.End, err)
	}
	return Event{
		ID:          we.ID,
		Title:       we.Title,
		Start:       start,
		End:         end,
		Description: we.Description,
		Location:    we.Location,
	}, nil
}

// decodeError converts a wire failure into a ToolError, preserving conflict
// payloads. Unknown kinds map to ValidationError.
func decodeError(we *wireError) *ToolError {
	te := &ToolError{Message: we.Message, Suggestions: we.Suggestions}
	switch ErrorKind(we.Kind) {
	case ErrNotFound, ErrInvalidRange, ErrConflict, ErrTimeout, ErrValidation:
		te.Kind = ErrorKind(we.Kind)
	default:
		te.Kind = ErrValidation
	}
	for _, c := range we.Conflicts {
		if e, err := decodeEvent(c); err == nil {
			te.Conflicts = append(te.Conflicts, e)
		}
	}
	return te
}
