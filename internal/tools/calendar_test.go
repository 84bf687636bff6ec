package tools

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/54b3r/calai-go/internal/calendar"
)

func testGateway(t *testing.T) *calendar.Gateway {
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
			ID:    "ev-review",
			Title: "Design Review",
			Start: time.Date(2024, 6, 3, 14, 30, 0, 0, time.UTC),
			End:   time.Date(2024, 6, 3, 15, 0, 0, 0, time.UTC),
		},
	)
	return calendar.NewGateway(svc)
}

func Test_Tools_SchemasAreComplete(t *testing.T) {
	t.Parallel()
	gw := testGateway(t)

	all := All(gw)
	if len(all) != 4 {
		t.Fatalf("want 4 tools, got %d", len(all))
	}
	wantNames := map[string]bool{
		calendar.ToolListEvents:      true,
		calendar.ToolGetEventDetails: true,
		calendar.ToolSearchEvents:    true,
		calendar.ToolCreateEvent:     true,
	}
	for _, bt := range all {
		info, err := bt.Info(context.Background())
		if err != nil {
			t.Fatalf("Info: %v", err)
		}
		if !wantNames[info.Name] {
			t.Errorf("unexpected tool name %q", info.Name)
		}
		if info.Desc == "" {
			t.Errorf("tool %s has no description", info.Name)
		}
	}
}

func Test_Tools_SearchThenDetailsRoundTrip(t *testing.T) {
	t.Parallel()
	gw := testGateway(t)
	search := &searchEventsTool{gateway: gw}
	details := &getEventDetailsTool{gateway: gw}

	out, err := search.InvokableRun(context.Background(), `{"keyword":"STANDUP"}`)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	var found []calendar.Event
	if err := json.Unmarshal([]byte(out), &found); err != nil {
		t.Fatalf("unmarshal search result: %v", err)
	}
	if len(found) != 1 || found[0].ID != "ev-standup" {
		t.Fatalf("want ev-standup, got %+v", found)
	}

	out, err = details.InvokableRun(context.Background(), `{"event_id":"ev-standup"}`)
	if err != nil {
		t.Fatalf("details: %v", err)
	}
	var ev calendar.Event
	if err := json.Unmarshal([]byte(out), &ev); err != nil {
		t.Fatalf("unmarshal details result: %v", err)
	}
	if ev.Title != "Standup" || ev.Description != "daily sync" {
		t.Errorf("details do not match the searched keyword: %+v", ev)
	}
}

func Test_Tools_ConflictIsRenderedAsStructuredFailure(t *testing.T) {
	t.Parallel()
	gw := testGateway(t)
	create := &createEventTool{gateway: gw}

	out, err := create.InvokableRun(context.Background(),
		`{"title":"Sync","date":"2024-06-03","start_time":"14:00","end_time":"15:00"}`)
	if err != nil {
		t.Fatalf("conflict must surface as a structured result, not an error: %v", err)
	}

	var failure struct {
		Error     string           `json:"error"`
		Conflicts []calendar.Event `json:"conflicts"`
	}
	if err := json.Unmarshal([]byte(out), &failure); err != nil {
		t.Fatalf("unmarshal failure: %v", err)
	}
	if failure.Error != string(calendar.ErrConflict) {
		t.Errorf("want Conflict, got %q", failure.Error)
	}
	if len(failure.Conflicts) != 1 || failure.Conflicts[0].ID != "ev-review" {
		t.Errorf("conflicting event missing: %+v", failure.Conflicts)
	}
}

func Test_Tools_InvalidJSONInputIsRejected(t *testing.T) {
	t.Parallel()
	gw := testGateway(t)
	list := &listEventsTool{gateway: gw}

	if _, err := list.InvokableRun(context.Background(), "not json"); err == nil {
		t.Fatal("want error for malformed input")
	}
}

func Test_Tools_EveryCallLandsInGatewayLog(t *testing.T) {
	t.Parallel()
	gw := testGateway(t)
	list := &listEventsTool{gateway: gw}

	if _, err := list.InvokableRun(context.Background(), `{"start_date":"2024-06-01","end_date":"2024-06-07"}`); err != nil {
		t.Fatalf("list: %v", err)
	}
	recs := gw.Records()
	if len(recs) != 1 || recs[0].Tool != calendar.ToolListEvents || !recs[0].OK() {
		t.Fatalf("tool call not recorded: %+v", recs)
	}
}
