package agent

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/54b3r/calai-go/internal/calendar"
	"github.com/54b3r/calai-go/internal/rag"
)

// stubCompleter returns a canned reply and records every prompt it receives.
type stubCompleter struct {
	mu         sync.Mutex
	reply      string
	err        error
	calls      int
	lastPrompt string
}

func (s *stubCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.lastPrompt = prompt
	if s.err != nil {
		return "", s.err
	}
	return s.reply, nil
}

// stubRetriever serves a fixed retrieval result.
type stubRetriever struct {
	docs []rag.Retrieved
	err  error
}

func (s *stubRetriever) Retrieve(ctx context.Context, query string, k int, minScore float32) ([]rag.Retrieved, error) {
	return s.docs, s.err
}

func seededCalendar(t *testing.T) *calendar.MemoryService {
	t.Helper()
	svc := calendar.NewMemoryService(time.UTC)
	svc.Seed(
		calendar.Event{
			ID:          "ev-standup",
			Title:       "Standup",
			Start:       time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC),
			End:         time.Date(2024, 6, 3, 9, 30, 0, 0, time.UTC),
			Description: "daily sync",
		},
		calendar.Event{
			ID:          "ev-review",
			Title:       "Design Review",
			Start:       time.Date(2024, 6, 3, 14, 30, 0, 0, time.UTC),
			End:         time.Date(2024, 6, 3, 15, 0, 0, 0, time.UTC),
			Description: "review the proposal",
		},
	)
	return svc
}

func testController(t *testing.T, completer *stubCompleter, retriever rag.Retriever) (*Controller, *calendar.MemoryService) {
	t.Helper()
	svc := seededCalendar(t)
	gen, err := NewGenerator(completer)
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}
	ctl, err := NewController(&Config{
		Retriever: retriever,
		Calendar:  svc,
		Generator: gen,
		Timezone:  "UTC",
		Now:       func() time.Time { return time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	return ctl, svc
}

func Test_Controller_ListScenario(t *testing.T) {
	t.Parallel()
	completer := &stubCompleter{
		reply: `{"text":"You have Standup at 09:00 and Design Review at 14:30 on 2024-06-03.","cited_chunk_ids":[],"cited_tool_calls":[0],"status":"answered"}`,
	}
	ctl, _ := testController(t, completer, nil)

	res, err := ctl.Process(context.Background(), "What events do I have between 2024-06-01 and 2024-06-07?")
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if res.Decision.Route != RouteNeedsTools {
		t.Errorf("want needs_tools, got %s", res.Decision.Route)
	}
	if len(res.Bundle.ToolRecords) != 1 {
		t.Fatalf("want 1 tool record, got %d", len(res.Bundle.ToolRecords))
	}
	rec := res.Bundle.ToolRecords[0]
	if rec.Tool != calendar.ToolListEvents || !rec.OK() {
		t.Fatalf("want successful list_events, got %+v", rec)
	}
	if len(rec.Events) != 2 || rec.Events[0].ID != "ev-standup" || rec.Events[1].ID != "ev-review" {
		t.Errorf("events not sorted by start: %+v", rec.Events)
	}
	if res.Answer.Status != StatusAnswered || len(res.Answer.CitedToolCalls) != 1 || res.Answer.CitedToolCalls[0] != 0 {
		t.Errorf("unexpected answer: %+v", res.Answer)
	}
}

func Test_Controller_ConflictScenarioDoesNotCreate(t *testing.T) {
	t.Parallel()
	completer := &stubCompleter{
		reply: `{"text":"That slot conflicts with Design Review (14:30-15:00); nothing was created.","cited_chunk_ids":[],"cited_tool_calls":[1],"status":"answered"}`,
	}
	ctl, svc := testController(t, completer, nil)

	res, err := ctl.Process(context.Background(), "Schedule a meeting titled 'Sync' on 2024-06-03 14:00-15:00")
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	// search_events runs before create_event; both land in the log.
	if len(res.Bundle.ToolRecords) != 2 {
		t.Fatalf("want 2 tool records, got %d", len(res.Bundle.ToolRecords))
	}
	if res.Bundle.ToolRecords[0].Tool != calendar.ToolSearchEvents {
		t.Errorf("first call should be search_events, got %s", res.Bundle.ToolRecords[0].Tool)
	}
	create := res.Bundle.ToolRecords[1]
	if create.Tool != calendar.ToolCreateEvent || create.OK() {
		t.Fatalf("want failed create_event, got %+v", create)
	}
	if create.Failure.Kind != calendar.ErrConflict || len(create.Failure.Conflicts) != 1 {
		t.Errorf("want Conflict with 1 conflicting event, got %+v", create.Failure)
	}

	// The conflicting create must not have added anything.
	events, err := svc.ListEvents(context.Background(), calendar.ListEventsInput{StartDate: "2024-06-01", EndDate: "2024-06-07"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(events) != 2 {
		t.Errorf("event was created despite conflict: %d events", len(events))
	}
	if res.Answer.Status != StatusAnswered {
		t.Errorf("want answered, got %s", res.Answer.Status)
	}
}

func Test_Controller_MissingTitleShortCircuits(t *testing.T) {
	t.Parallel()
	completer := &stubCompleter{reply: `{"text":"unused","status":"answered"}`}
	ctl, _ := testController(t, completer, nil)

	res, err := ctl.Process(context.Background(), "Schedule a meeting on 2024-06-03 at 14:00")
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if res.Answer.Status != StatusClarification {
		t.Fatalf("want clarification_requested, got %s", res.Answer.Status)
	}
	if !strings.Contains(res.Answer.Text, "title") {
		t.Errorf("clarification should name the missing field: %q", res.Answer.Text)
	}
	if len(res.Bundle.ToolRecords) != 0 {
		t.Errorf("tool log must stay empty before clarification, got %d records", len(res.Bundle.ToolRecords))
	}
	if completer.calls != 0 {
		t.Errorf("model must not be called on short-circuit, got %d calls", completer.calls)
	}
}

func Test_Controller_EmptyQueryIsInvalid(t *testing.T) {
	t.Parallel()
	completer := &stubCompleter{}
	ctl, _ := testController(t, completer, nil)

	res, err := ctl.Process(context.Background(), "   ")
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if res.Answer.Status != StatusInvalidQuery {
		t.Errorf("want invalid_query, got %s", res.Answer.Status)
	}
	if completer.calls != 0 {
		t.Errorf("model must not be called for an empty query")
	}
}

func Test_Controller_EmptyRetrievalDeclines(t *testing.T) {
	t.Parallel()
	completer := &stubCompleter{reply: `{"text":"unused","status":"answered"}`}
	ctl, _ := testController(t, completer, &stubRetriever{})

	res, err := ctl.Process(context.Background(), "How many vacation days do I get per year?")
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if res.Answer.Status != StatusInvalidQuery {
		t.Fatalf("want invalid_query on empty evidence, got %s", res.Answer.Status)
	}
	if completer.calls != 0 {
		t.Errorf("model must not be called with an empty bundle")
	}
}

func Test_Controller_RetrievalEvidenceFlowsToPrompt(t *testing.T) {
	t.Parallel()
	completer := &stubCompleter{
		reply: `{"text":"You get 20 vacation days per year.","cited_chunk_ids":["hr-1"],"cited_tool_calls":[],"status":"answered"}`,
	}
	retriever := &stubRetriever{docs: []rag.Retrieved{
		{ChunkID: "hr-1", Score: 0.9, Text: "Employees get 20 vacation days per year.", SourceRef: "hr.md"},
	}}
	ctl, _ := testController(t, completer, retriever)

	res, err := ctl.Process(context.Background(), "How many vacation days do I get per year?")
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if res.Decision.Route != RouteNeedsRetrieval {
		t.Errorf("want needs_retrieval, got %s", res.Decision.Route)
	}
	if len(res.Bundle.Retrieved) != 1 {
		t.Fatalf("want 1 retrieved chunk, got %d", len(res.Bundle.Retrieved))
	}
	if !strings.Contains(completer.lastPrompt, "[chunk hr-1]") {
		t.Errorf("prompt missing chunk evidence tag")
	}
	if res.Answer.Status != StatusAnswered || len(res.Answer.CitedChunkIDs) != 1 {
		t.Errorf("unexpected answer: %+v", res.Answer)
	}
}

func Test_Controller_RetrievalFailureIsFailSoft(t *testing.T) {
	t.Parallel()
	completer := &stubCompleter{
		reply: `{"text":"You have 2 events that week.","cited_chunk_ids":[],"cited_tool_calls":[0],"status":"answered"}`,
	}
	retriever := &stubRetriever{err: errors.New("vector store down")}
	ctl, _ := testController(t, completer, retriever)

	res, err := ctl.Process(context.Background(), "According to the meeting policy, what events do I have between 2024-06-01 and 2024-06-07?")
	if err != nil {
		t.Fatalf("process must not fail when one evidence source degrades: %v", err)
	}
	if res.Decision.Route != RouteNeedsBoth {
		t.Errorf("want needs_both, got %s", res.Decision.Route)
	}
	if len(res.Bundle.Retrieved) != 0 {
		t.Errorf("failed retrieval should yield no chunks")
	}
	if len(res.Bundle.ToolRecords) != 1 || !res.Bundle.ToolRecords[0].OK() {
		t.Fatalf("tool evidence should survive retrieval failure: %+v", res.Bundle.ToolRecords)
	}
	if res.Answer.Status != StatusAnswered {
		t.Errorf("want answered, got %s", res.Answer.Status)
	}
}

func Test_Controller_TimezoneThreadedIntoBundle(t *testing.T) {
	t.Parallel()
	completer := &stubCompleter{
		reply: `{"text":"You have 2 events.","cited_tool_calls":[0],"status":"answered"}`,
	}
	ctl, _ := testController(t, completer, nil)

	res, err := ctl.Process(context.Background(), "list my upcoming events")
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if res.Bundle.TimezoneAssumption != "UTC" {
		t.Errorf("want UTC assumption, got %q", res.Bundle.TimezoneAssumption)
	}
	if !strings.Contains(completer.lastPrompt, "All times are in UTC") {
		t.Errorf("prompt missing timezone statement")
	}
}
