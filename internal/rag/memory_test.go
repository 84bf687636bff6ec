package rag

import (
	"context"
	"testing"
)

// seedChunks upserts three chunks with hand-picked embeddings so similarity
// ordering is predictable: c1 aligns with the x axis, c2 with y, c3 halfway.
func seedChunks(t *testing.T, s *MemoryStore) {
	t.Helper()
	err := s.Upsert(context.Background(), []Chunk{
		{ID: "c1", Text: "vacation policy allows 20 days", Embedding: []float32{1, 0}, SourceRef: "hr.md"},
		{ID: "c2", Text: "expense reports are due monthly", Embedding: []float32{0, 1}, SourceRef: "finance.md"},
		{ID: "c3", Text: "remote work needs manager approval", Embedding: []float32{1, 1}, SourceRef: "hr.md"},
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
}

func Test_MemorySearch_DescendingScoreWithCutoff(t *testing.T) {
	t.Parallel()
	s := NewMemoryStore()
	seedChunks(t, s)

	got, err := s.Search(context.Background(), []float32{1, 0}, 10, 0.5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	// c1 scores 1.0, c3 scores ~0.707, c2 scores 0 and is cut off.
	if len(got) != 2 {
		t.Fatalf("want 2 results, got %d", len(got))
	}
	if got[0].ChunkID != "c1" || got[1].ChunkID != "c3" {
		t.Errorf("want [c1 c3], got [%s %s]", got[0].ChunkID, got[1].ChunkID)
	}
	if got[0].Score < got[1].Score {
		t.Errorf("scores not descending: %v then %v", got[0].Score, got[1].Score)
	}
}

func Test_MemorySearch_TopKTruncates(t *testing.T) {
	t.Parallel()
	s := NewMemoryStore()
	seedChunks(t, s)

	got, err := s.Search(context.Background(), []float32{1, 0}, 1, -1)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 1 || got[0].ChunkID != "c1" {
		t.Fatalf("want [c1], got %v", got)
	}
}

func Test_MemorySearch_EmptyWhenNothingClearsCutoff(t *testing.T) {
	t.Parallel()
	s := NewMemoryStore()
	seedChunks(t, s)

	got, err := s.Search(context.Background(), []float32{-1, -1}, 10, 0.9)
	if err != nil {
		t.Fatalf("search must not error on empty result: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("want empty result, got %v", got)
	}
}

func Test_MemorySearch_TiesBreakByIngestionOrder(t *testing.T) {
	t.Parallel()
	s := NewMemoryStore()
	// Two chunks with identical embeddings score identically.
	err := s.Upsert(context.Background(), []Chunk{
		{ID: "first", Text: "a", Embedding: []float32{1, 0}},
		{ID: "second", Text: "b", Embedding: []float32{1, 0}},
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := s.Search(context.Background(), []float32{1, 0}, 10, 0)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 2 || got[0].ChunkID != "first" || got[1].ChunkID != "second" {
		t.Fatalf("tie-break by ingestion order violated: %v", got)
	}
}

func Test_MemoryDelete_ExcludesFromSearch(t *testing.T) {
	t.Parallel()
	s := NewMemoryStore()
	seedChunks(t, s)

	if err := s.Delete(context.Background(), []string{"c1"}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, err := s.Search(context.Background(), []float32{1, 0}, 10, -1)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	for _, r := range got {
		if r.ChunkID == "c1" {
			t.Fatal("deleted chunk still returned")
		}
	}
}

func Test_MemoryUpsert_UpdateKeepsPosition(t *testing.T) {
	t.Parallel()
	s := NewMemoryStore()
	seedChunks(t, s)

	// Re-upserting c1 with the same embedding must not move it behind c3 in
	// tie-break order.
	err := s.Upsert(context.Background(), []Chunk{
		{ID: "c1", Text: "updated text", Embedding: []float32{1, 1}},
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	got, err := s.Search(context.Background(), []float32{1, 1}, 10, 0.9)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	// c1 and c3 now tie at score 1.0; c1 was ingested first.
	if len(got) != 2 || got[0].ChunkID != "c1" {
		t.Fatalf("want c1 first after update, got %v", got)
	}
	if got[0].Text != "updated text" {
		t.Errorf("update not applied: %q", got[0].Text)
	}
}
