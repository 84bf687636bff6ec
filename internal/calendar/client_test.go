package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

// newTestClient returns a Client pointed at the given handler.
func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewClient(&ClientConfig{BaseURL: srv.URL, MaxRetries: 2})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func Test_Client_ListEvents(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/list_events" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var in ListEventsInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			t.Errorf("decode input: %v", err)
		}
		json.NewEncoder(w).Encode([]wireEvent{
			{ID: "e1", Title: "Standup", Start: "2024-06-03T09:00:00Z", End: "2024-06-03T09:30:00Z"},
		})
	}))

	events, err := c.ListEvents(context.Background(), ListEventsInput{
		StartDate: "2024-06-01", EndDate: "2024-06-07",
	})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(events) != 1 || events[0].ID != "e1" {
		t.Fatalf("want [e1], got %v", events)
	}
}

func Test_Client_TypedFailureNotRetried(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(wireError{Kind: "NotFound", Message: "no such event"})
	}))

	_, err := c.GetEventDetails(context.Background(), GetEventDetailsInput{EventID: "x"})
	var te *ToolError
	if !errors.As(err, &te) || te.Kind != ErrNotFound {
		t.Fatalf("want NotFound ToolError, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("4xx must not be retried: got %d calls", calls.Load())
	}
}

func Test_Client_TransientFailureRetriedThenSucceeds(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode([]wireEvent{})
	}))

	events, err := c.SearchEvents(context.Background(), SearchEventsInput{Keyword: "sync"})
	if err != nil {
		t.Fatalf("want retry to succeed, got %v", err)
	}
	if len(events) != 0 {
		t.Errorf("want empty result, got %v", events)
	}
	if calls.Load() != 2 {
		t.Errorf("want 2 attempts, got %d", calls.Load())
	}
}

func Test_Client_ExhaustedRetriesSurfaceAsTimeout(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	_, err := c.ListEvents(context.Background(), ListEventsInput{
		StartDate: "2024-06-01", EndDate: "2024-06-07",
	})
	var te *ToolError
	if !errors.As(err, &te) || te.Kind != ErrTimeout {
		t.Fatalf("want Timeout ToolError after exhausted retries, got %v", err)
	}
}

func Test_Client_ConflictPayloadDecoded(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(wireError{
			Kind:    "Conflict",
			Message: "window occupied",
			Conflicts: []wireEvent{
				{ID: "busy", Title: "Review", Start: "2024-06-03T14:30:00Z", End: "2024-06-03T15:00:00Z"},
			},
		})
	}))

	_, err := c.CreateEvent(context.Background(), CreateEventInput{
		Title: "Sync", Date: "2024-06-03", StartTime: "14:00", EndTime: "15:00",
	})
	var te *ToolError
	if !errors.As(err, &te) || te.Kind != ErrConflict {
		t.Fatalf("want Conflict ToolError, got %v", err)
	}
	if len(te.Conflicts) != 1 || te.Conflicts[0].ID != "busy" {
		t.Errorf("conflict payload lost: %+v", te.Conflicts)
	}
}
