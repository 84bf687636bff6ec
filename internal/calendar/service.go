package calendar

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Service is the interface for a calendar backend exposing exactly the four
// tool operations. Implementations must be safe to call from multiple
// goroutines; CreateEvent implementations must serialise their
// check-for-overlap-then-insert sequence so two concurrent creates cannot
// both pass the overlap check against stale state.
type Service interface {
	// ListEvents returns events overlapping the [start_date, end_date]
	// window, sorted by start time ascending.
	ListEvents(ctx context.Context, in ListEventsInput) ([]Event, error)

	// GetEventDetails returns the full record for a single event.
	GetEventDetails(ctx context.Context, in GetEventDetailsInput) (Event, error)

	// SearchEvents returns events whose title or description contains the
	// keyword (case-insensitive), sorted by start time ascending. No match
	// is an empty list, not an error.
	SearchEvents(ctx context.Context, in SearchEventsInput) ([]Event, error)

	// CreateEvent checks the requested window for overlaps and either
	// creates the event and returns it, or returns a Conflict ToolError
	// carrying the conflicting events and up to three free alternatives.
	CreateEvent(ctx context.Context, in CreateEventInput) (Event, error)
}

// MemoryService is an in-process Service used for tests and local mode.
// All times are interpreted in the configured location.
type MemoryService struct {
	// mu serialises all access. Holding it across the overlap check and the
	// insert in CreateEvent is what makes check-then-act atomic.
	mu sync.Mutex

	// events holds all stored events keyed by ID.
	events map[string]Event

	// loc is the timezone all HH:MM / YYYY-MM-DD inputs are interpreted in.
	loc *time.Location
}

// NewMemoryService constructs an empty MemoryService interpreting inputs in
// the given location. A nil location means time.UTC.
func NewMemoryService(loc *time.Location) *MemoryService {
	if loc == nil {
		loc = time.UTC
	}
	return &MemoryService{
		events: make(map[string]Event),
		loc:    loc,
	}
}

// Seed inserts events directly, bypassing the overlap check. Test helper and
// local-mode bootstrap only.
func (s *MemoryService) Seed(events ...Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range events {
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		s.events[e.ID] = e
	}
}

// ListEvents returns events overlapping the requested date window, sorted by
// start time ascending.
func (s *MemoryService) ListEvents(ctx context.Context, in ListEventsInput) ([]Event, error) {
	start, err := time.ParseInLocation("2006-01-02", in.StartDate, s.loc)
	if err != nil {
		return nil, &ToolError{Kind: ErrValidation, Message: fmt.Sprintf("invalid start_date %q", in.StartDate)}
	}
	end, err := time.ParseInLocation("2006-01-02", in.EndDate, s.loc)
	if err != nil {
		return nil, &ToolError{Kind: ErrValidation, Message: fmt.Sprintf("invalid end_date %q", in.EndDate)}
	}
	if start.After(end) {
		return nil, &ToolError{
			Kind:    ErrInvalidRange,
			Message: fmt.Sprintf("start_date %s is after end_date %s", in.StartDate, in.EndDate),
		}
	}
	// The window is inclusive of the whole end date.
	end = end.Add(24 * time.Hour)

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Event
	for _, e := range s.events {
		if e.Overlaps(start, end) {
			out = append(out, e)
		}
	}
	sortByStart(out)
	return out, nil
}

// GetEventDetails returns the full record for the given event ID.
func (s *MemoryService) GetEventDetails(ctx context.Context, in GetEventDetailsInput) (Event, error) {
	if in.EventID == "" {
		return Event{}, &ToolError{Kind: ErrValidation, Message: "event_id is required"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.events[in.EventID]
	if !ok {
		return Event{}, &ToolError{Kind: ErrNotFound, Message: fmt.Sprintf("no event with id %q", in.EventID)}
	}
	return e, nil
}

// SearchEvents matches the keyword case-insensitively against title and
// description. An empty result is a valid outcome, not an error.
func (s *MemoryService) SearchEvents(ctx context.Context, in SearchEventsInput) ([]Event, error) {
	if in.Keyword == "" {
		return nil, &ToolError{Kind: ErrValidation, Message: "keyword is required"}
	}
	needle := strings.ToLower(in.Keyword)

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Event
	for _, e := range s.events {
		if strings.Contains(strings.ToLower(e.Title), needle) ||
			strings.Contains(strings.ToLower(e.Description), needle) {
			out = append(out, e)
		}
	}
	sortByStart(out)
	return out, nil
}

// CreateEvent validates the input, checks the requested window for overlaps
// under the service mutex, and inserts only when the window is free.
// On conflict it returns a ToolError carrying the overlapping events and up
// to three free same-duration slots in the following five hours.
func (s *MemoryService) CreateEvent(ctx context.Context, in CreateEventInput) (Event, error) {
	if err := in.Validate(); err != nil {
		return Event{}, err
	}
	start, end, err := in.Window(s.loc)
	if err != nil {
		return Event{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	conflicts := s.overlappingLocked(start, end)
	if len(conflicts) > 0 {
		return Event{}, &ToolError{
			Kind:        ErrConflict,
			Message:     fmt.Sprintf("%d event(s) overlap the requested window", len(conflicts)),
			Conflicts:   conflicts,
			Suggestions: s.suggestLocked(start, end),
		}
	}

	e := Event{
		ID:          uuid.NewString(),
		Title:       in.Title,
		Start:       start,
		End:         end,
		Description: in.Description,
		Location:    in.Location,
	}
	s.events[e.ID] = e
	return e, nil
}

// overlappingLocked returns all events overlapping [start, end), sorted by
// start time. Caller must hold mu.
func (s *MemoryService) overlappingLocked(start, end time.Time) []Event {
	var out []Event
	for _, e := range s.events {
		if e.Overlaps(start, end) {
			out = append(out, e)
		}
	}
	sortByStart(out)
	return out
}

// suggestLocked probes the next five hourly offsets for a free slot of the
// same duration and returns at most three. Caller must hold mu.
func (s *MemoryService) suggestLocked(start, end time.Time) []Slot {
	duration := end.Sub(start)
	var suggestions []Slot
	for i := 1; i <= 5 && len(suggestions) < 3; i++ {
		candStart := start.Add(time.Duration(i) * time.Hour)
		candEnd := candStart.Add(duration)
		if len(s.overlappingLocked(candStart, candEnd)) == 0 {
			suggestions = append(suggestions, Slot{Start: candStart, End: candEnd})
		}
	}
	return suggestions
}

// sortByStart orders events by start time ascending, breaking ties by ID so
// the order is deterministic.
func sortByStart(events []Event) {
	sort.Slice(events, func(i, j int) bool {
		if events[i].Start.Equal(events[j].Start) {
			return events[i].ID < events[j].ID
		}
		return events[i].Start.Before(events[j].Start)
	})
}
