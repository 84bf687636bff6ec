// Package calendar implements the tool gateway for the four calendar
// operations the agent can invoke: list_events, get_event_details,
// search_events, and create_event. The gateway records every call and its
// outcome — success or failure — in an append-only per-query log that the
// evaluator later treats as evidence.
package calendar

import (
	"fmt"
	"time"
)

// Event is a single calendar event record as exchanged with the calendar
// backend. Start and End are wall-clock times in the configured calendar
// timezone unless the backend says otherwise.
type Event struct {
	// ID is the backend-assigned unique event identifier.
	ID string `json:"id"`

	// Title is the event summary line.
	Title string `json:"title"`

	// Start is the event start time.
	Start time.Time `json:"start"`

	// End is the event end time. Always after Start.
	End time.Time `json:"end"`

	// Description is the free-text event body. May be empty.
	Description string `json:"description,omitempty"`

	// Location is the event location. May be empty.
	Location string `json:"location,omitempty"`
}

// Overlaps reports whether the event occupies any part of the [start, end)
// window. Touching boundaries (end == other start) do not overlap.
func (e Event) Overlaps(start, end time.Time) bool {
	return e.Start.Before(end) && e.End.After(start)
}

// ErrorKind classifies a tool failure. The kind travels with the failure all
// the way into the tool call log so the evaluator and the answer can reason
// about what went wrong.
type ErrorKind string

const (
	// ErrValidation indicates a malformed or missing mandatory input.
	ErrValidation ErrorKind = "ValidationError"
	// ErrNotFound indicates the requested event does not exist.
	ErrNotFound ErrorKind = "NotFound"
	// ErrInvalidRange indicates start_date > end_date on list_events.
	ErrInvalidRange ErrorKind = "InvalidRange"
	// ErrConflict indicates create_event found overlapping events and did
	// not create anything.
	ErrConflict ErrorKind = "Conflict"
	// ErrTimeout indicates the call did not complete within the deadline,
	// including the case where bounded retries were exhausted.
	ErrTimeout ErrorKind = "Timeout"
)

// ToolError is the typed failure returned by calendar operations.
// Conflict errors additionally carry the conflicting events and any free
// alternative slots the backend suggested.
type ToolError struct {
	// Kind classifies the failure.
	Kind ErrorKind

	// Message is the human-readable failure description.
	Message string

	// Conflicts holds the events that overlap the requested window.
	// Populated only when Kind is ErrConflict.
	Conflicts []Event

	// Suggestions holds free alternative slots of the same duration.
	// Populated only when Kind is ErrConflict, at most three entries.
	Suggestions []Slot
}

// Error implements the error interface.
func (e *ToolError) Error() string {
	return fmt.Sprintf("calendar: %s: %s", e.Kind, e.Message)
}

// Slot is a candidate free time window suggested alongside a conflict.
type Slot struct {
	// Start is the suggested slot start time.
	Start time.Time `json:"start"`
	// End is the suggested slot end time.
	End time.Time `json:"end"`
}

// ListEventsInput is the request for the list_events operation.
type ListEventsInput struct {
	// StartDate is the inclusive lower bound of the window (YYYY-MM-DD).
	StartDate string `json:"start_date"`
	// EndDate is the inclusive upper bound of the window (YYYY-MM-DD).
	EndDate string `json:"end_date"`
}

// GetEventDetailsInput is the request for the get_event_details operation.
type GetEventDetailsInput struct {
	// EventID is the identifier of the event to fetch.
	EventID string `json:"event_id"`
}

// SearchEventsInput is the request for the search_events operation.
type SearchEventsInput struct {
	// Keyword is matched case-insensitively against title and description.
	Keyword string `json:"keyword"`
}

// CreateEventInput is the request for the create_event operation.
// Title, Date, and StartTime are mandatory; EndTime defaults to one hour
// after StartTime when empty; Description and Location may be empty.
type CreateEventInput struct {
	// Title is the event summary line. Mandatory.
	Title string `json:"title"`
	// Date is the event date (YYYY-MM-DD). Mandatory.
	Date string `json:"date"`
	// StartTime is the start wall-clock time (HH:MM). Mandatory.
	StartTime string `json:"start_time"`
	// EndTime is the end wall-clock time (HH:MM). Empty means start + 1h.
	EndTime string `json:"end_time"`
	// Description is the free-text event body.
	Description string `json:"description"`
	// Location is the event location.
	Location string `json:"location"`
}

// Validate checks the mandatory create_event fields and returns a
// ValidationError naming the first missing one. Field presence is checked
// here at the gateway boundary; callers are expected to have run their own
// missing-info detection before building the input.
func (in *CreateEventInput) Validate() error {
	switch {
	case in.Title == "":
		return &ToolError{Kind: ErrValidation, Message: "title is required"}
	case in.Date == "":
		return &ToolError{Kind: ErrValidation, Message: "date is required"}
	case in.StartTime == "":
		return &ToolError{Kind: ErrValidation, Message: "start_time is required"}
	}
	return nil
}

// Window resolves the concrete [start, end) time window for the input in the
// given location. EndTime defaults to one hour after StartTime.
func (in *CreateEventInput) Window(loc *time.Location) (time.Time, time.Time, error) {
	start, err := time.ParseInLocation("2006-01-02T15:04", in.Date+"T"+in.StartTime, loc)
	if err != nil {
		return time.Time{}, time.Time{}, &ToolError{
			Kind:    ErrValidation,
			Message: fmt.Sprintf("invalid date/start_time %q %q", in.Date, in.StartTime),
		}
	}
	end := start.Add(time.Hour)
	if in.EndTime != "" {
		end, err = time.ParseInLocation("2006-01-02T15:04", in.Date+"T"+in.EndTime, loc)
		if err != nil {
			return time.Time{}, time.Time{}, &ToolError{
				Kind:    ErrValidation,
				Message: fmt.Sprintf("invalid end_time %q", in.EndTime),
			}
		}
	}
	if !end.After(start) {
		return time.Time{}, time.Time{}, &ToolError{
			Kind:    ErrValidation,
			Message: fmt.Sprintf("end_time %s is not after start_time %s", in.EndTime, in.StartTime),
		}
	}
	return start, end, nil
}
