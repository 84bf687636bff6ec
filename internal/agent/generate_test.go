package agent

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/54b3r/calai-go/internal/calendar"
	"github.com/54b3r/calai-go/internal/rag"
)

func evidenceBundle(t *testing.T) ContextBundle {
	t.Helper()
	args, err := json.Marshal(calendar.ListEventsInput{StartDate: "2024-06-01", EndDate: "2024-06-07"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return ContextBundle{
		Retrieved: []rag.Retrieved{
			{ChunkID: "hr-1", Score: 0.9, Text: "Employees get 20 vacation days per year.", SourceRef: "hr.md"},
		},
		ToolRecords: []calendar.Record{
			{
				Tool:      calendar.ToolListEvents,
				Arguments: args,
				Events: []calendar.Event{
					{ID: "ev-standup", Title: "Standup", Start: time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC), End: time.Date(2024, 6, 3, 9, 30, 0, 0, time.UTC)},
				},
				Timestamp: time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC),
			},
		},
		TimezoneAssumption: "UTC",
	}
}

func Test_Generate_EmptyBundleDeclinesWithoutModelCall(t *testing.T) {
	t.Parallel()
	completer := &stubCompleter{reply: `{"text":"unused","status":"answered"}`}
	gen, err := NewGenerator(completer)
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}

	bundle := ContextBundle{TimezoneAssumption: "UTC"}
	ans, err := gen.Generate(context.Background(), "anything", &bundle)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if ans.Status != StatusInvalidQuery {
		t.Errorf("want invalid_query, got %s", ans.Status)
	}
	if len(ans.CitedChunkIDs) != 0 || len(ans.CitedToolCalls) != 0 {
		t.Errorf("decline must not carry citations: %+v", ans)
	}
	if completer.calls != 0 {
		t.Errorf("model must not be called with no evidence")
	}
}

func Test_Generate_PromptCarriesAllEvidence(t *testing.T) {
	t.Parallel()
	completer := &stubCompleter{
		reply: `{"text":"Standup on 2024-06-03 at 09:00.","cited_chunk_ids":[],"cited_tool_calls":[0],"status":"answered"}`,
	}
	gen, err := NewGenerator(completer)
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}

	bundle := evidenceBundle(t)
	ans, err := gen.Generate(context.Background(), "What events do I have?", &bundle)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	for _, want := range []string{"[chunk hr-1]", "[tool 0]", "list_events", "ev-standup", "All times are in UTC", "What events do I have?"} {
		if !strings.Contains(completer.lastPrompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	if ans.Status != StatusAnswered || len(ans.CitedToolCalls) != 1 {
		t.Errorf("unexpected answer: %+v", ans)
	}
}

func Test_Generate_FencedEnvelopeIsParsed(t *testing.T) {
	t.Parallel()
	completer := &stubCompleter{
		reply: "```json\n{\"text\":\"Standup at 09:00.\",\"cited_tool_calls\":[0],\"status\":\"answered\"}\n```",
	}
	gen, err := NewGenerator(completer)
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}

	bundle := evidenceBundle(t)
	ans, err := gen.Generate(context.Background(), "q", &bundle)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if ans.Text != "Standup at 09:00." {
		t.Errorf("fenced envelope not parsed: %+v", ans)
	}
}

func Test_ParseAnswer(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		input   string
		wantErr bool
		want    Status
	}{
		{
			name:  "full envelope",
			input: `{"text":"ok","cited_chunk_ids":["c1"],"cited_tool_calls":[0],"status":"answered"}`,
			want:  StatusAnswered,
		},
		{
			name:  "status defaults to answered",
			input: `{"text":"ok"}`,
			want:  StatusAnswered,
		},
		{
			name:  "clarification status",
			input: `{"text":"which date?","status":"clarification_requested"}`,
			want:  StatusClarification,
		},
		{
			name:    "unknown status",
			input:   `{"text":"ok","status":"maybe"}`,
			wantErr: true,
		},
		{
			name:    "empty text",
			input:   `{"text":"","status":"answered"}`,
			wantErr: true,
		},
		{
			name:    "not json",
			input:   "plain prose, no envelope",
			wantErr: true,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			ans, err := parseAnswer(tc.input)
			if tc.wantErr {
				if err == nil {
					t.Fatal("want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if ans.Status != tc.want {
				t.Errorf("want status %s, got %s", tc.want, ans.Status)
			}
		})
	}
}
