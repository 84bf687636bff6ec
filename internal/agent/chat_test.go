package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/54b3r/calai-go/internal/rag"
)

func Test_NewChatAgent_NilDependenciesRejected(t *testing.T) {
	t.Parallel()

	if _, err := NewChatAgent(context.Background(), nil); err == nil {
		t.Error("want error for nil config")
	}
	if _, err := NewChatAgent(context.Background(), &ChatConfig{}); err == nil {
		t.Error("want error for nil chat model")
	}
}

func Test_ChatAgent_WithKnowledge_AppendsPassages(t *testing.T) {
	t.Parallel()

	a := &ChatAgent{
		retriever: &stubRetriever{docs: []rag.Retrieved{
			{ChunkID: "pol-1", Score: 0.9, Text: "Rooms must be booked a day ahead.", SourceRef: "policy.md"},
		}},
		topK:             5,
		maxContextTokens: 6000,
	}

	got := a.withKnowledge(context.Background(), "what is the booking policy?")
	if !strings.Contains(got, "what is the booking policy?") {
		t.Error("original message lost")
	}
	if !strings.Contains(got, "Reference passages:") {
		t.Error("passages header missing")
	}
	if !strings.Contains(got, "pol-1") || !strings.Contains(got, "policy.md") {
		t.Errorf("chunk attribution missing: %q", got)
	}
}

func Test_ChatAgent_WithKnowledge_NoRetriever(t *testing.T) {
	t.Parallel()

	a := &ChatAgent{}
	got := a.withKnowledge(context.Background(), "hello")
	if got != "hello" {
		t.Errorf("want message unchanged, got %q", got)
	}
}

func Test_ChatAgent_WithKnowledge_RetrievalFailureDegrades(t *testing.T) {
	t.Parallel()

	a := &ChatAgent{
		retriever:        &stubRetriever{err: errors.New("qdrant down")},
		topK:             5,
		maxContextTokens: 6000,
	}
	got := a.withKnowledge(context.Background(), "what is on Friday?")
	if got != "what is on Friday?" {
		t.Errorf("want bare message on retrieval failure, got %q", got)
	}
}

func Test_ChatAgent_WithKnowledge_BudgetTrimsToNothing(t *testing.T) {
	t.Parallel()

	a := &ChatAgent{
		retriever: &stubRetriever{docs: []rag.Retrieved{
			{ChunkID: "big-1", Score: 0.9, Text: strings.Repeat("x", 4000), SourceRef: "doc.md"},
		}},
		topK: 5,
		// Budget too small for any chunk; the bare message must survive.
		maxContextTokens: 1,
	}
	got := a.withKnowledge(context.Background(), "short question")
	if got != "short question" {
		t.Errorf("want bare message when budget trims all chunks, got %q", got)
	}
}
