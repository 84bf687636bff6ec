package calendar

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/54b3r/calai-go/internal/logging"
)

// ToolServer exposes a Service over the HTTP tool protocol that Client
// consumes: POST /{tool_name} with a JSON body, typed failures as 4xx
// responses with a wireError payload. It lets one calai process host the
// calendar that others reach via MCP_URL.
type ToolServer struct {
	// svc is the calendar backend handling all four operations.
	svc Service
}

// NewToolServer constructs a ToolServer for the given backend.
func NewToolServer(svc Service) (*ToolServer, error) {
	if svc == nil {
		return nil, errors.New("calendar: tool server service must not be nil")
	}
	return &ToolServer{svc: svc}, nil
}

// Handler returns the HTTP handler serving the four tool routes.
func (s *ToolServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /list_events", s.handleListEvents)
	mux.HandleFunc("POST /get_event_details", s.handleGetEventDetails)
	mux.HandleFunc("POST /search_events", s.handleSearchEvents)
	mux.HandleFunc("POST /create_event", s.handleCreateEvent)
	return mux
}

func (s *ToolServer) handleListEvents(w http.ResponseWriter, r *http.Request) {
	var in ListEventsInput
	if !decodeInput(w, r, &in) {
		return
	}
	events, err := s.svc.ListEvents(r.Context(), in)
	if err != nil {
		writeToolError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, encodeEvents(events))
}

func (s *ToolServer) handleGetEventDetails(w http.ResponseWriter, r *http.Request) {
	var in GetEventDetailsInput
	if !decodeInput(w, r, &in) {
		return
	}
	event, err := s.svc.GetEventDetails(r.Context(), in)
	if err != nil {
		writeToolError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, encodeEvent(event))
}

func (s *ToolServer) handleSearchEvents(w http.ResponseWriter, r *http.Request) {
	var in SearchEventsInput
	if !decodeInput(w, r, &in) {
		return
	}
	events, err := s.svc.SearchEvents(r.Context(), in)
	if err != nil {
		writeToolError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, encodeEvents(events))
}

func (s *ToolServer) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var in CreateEventInput
	if !decodeInput(w, r, &in) {
		return
	}
	event, err := s.svc.CreateEvent(r.Context(), in)
	if err != nil {
		writeToolError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, encodeEvent(event))
}

// decodeInput parses the request body into in, answering 400 with a typed
// failure on malformed JSON. Returns false if the request was rejected.
func decodeInput(w http.ResponseWriter, r *http.Request, in any) bool {
	if err := json.NewDecoder(r.Body).Decode(in); err != nil {
		writeToolError(w, r, &ToolError{
			Kind:    ErrValidation,
			Message: "request body is not valid JSON: " + err.Error(),
		})
		return false
	}
	return true
}

// statusForKind maps a failure kind to its HTTP status. Conflicts get 409 so
// callers can distinguish them without parsing the body; Timeout maps to 504
// since the backend, not this server, ran out of time.
func statusForKind(kind ErrorKind) int {
	switch kind {
	case ErrNotFound:
		return http.StatusNotFound
	case ErrConflict:
		return http.StatusConflict
	case ErrTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadRequest
	}
}

// writeToolError renders err on the wire. Typed failures keep their kind,
// conflicts, and suggestions; anything else becomes an opaque 500 so the
// client's retry policy treats it as transient.
func writeToolError(w http.ResponseWriter, r *http.Request, err error) {
	var te *ToolError
	if !errors.As(err, &te) {
		logging.FromContext(r.Context()).Error("tool server: internal error", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	body := wireError{
		Kind:        string(te.Kind),
		Message:     te.Message,
		Conflicts:   encodeEvents(te.Conflicts),
		Suggestions: te.Suggestions,
	}
	writeJSON(w, r, statusForKind(te.Kind), body)
}

// writeJSON renders v with the given status.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(r.Context()).Error("tool server: encode failed", "error", err)
	}
}

// encodeEvent converts a domain Event to its wire shape.
func encodeEvent(e Event) wireEvent {
	return wireEvent{
		ID:          e.ID,
		Title:       e.Title,
		Start:       e.Start.Format(time.RFC3339),
		End:         e.End.Format(time.RFC3339),
		Description: e.Description,
		Location:    e.Location,
	}
}

// encodeEvents converts a slice of events, keeping empty slices non-nil so
// they encode as [] rather than null.
func encodeEvents(events []Event) []wireEvent {
	out := make([]wireEvent, 0, len(events))
	for _, e := range events {
		out = append(out, encodeEvent(e))
	}
	return out
}
