package store

import (
	"context"
	"testing"
	"time"
)

// openTestStore opens an in-memory SQLiteStore for use in tests.
func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open in-memory store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func Test_Store_AppendAndRecent(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	err := s.Append(ctx, Entry{
		Query:      "What events do I have this week?",
		Answer:     "You have Standup and Design Review.",
		Status:     "answered",
		Result:     "pass",
		Confidence: 1.0,
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}

	entries, err := s.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("want 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if e.Query != "What events do I have this week?" || e.Result != "pass" || e.Confidence != 1.0 {
		t.Errorf("entry round-trip mismatch: %+v", e)
	}
	if e.CreatedAt.IsZero() {
		t.Error("created_at not populated")
	}
}

func Test_Store_RecentLimitAndOrdering(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	for i, q := range []string{"first", "second", "third"} {
		err := s.Append(ctx, Entry{
			Query:      q,
			Answer:     "a",
			Status:     "answered",
			Result:     "pass",
			Confidence: 1.0,
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("append %q: %v", q, err)
		}
	}

	entries, err := s.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("want 2 entries, got %d", len(entries))
	}
	if entries[0].Query != "third" || entries[1].Query != "second" {
		t.Errorf("want newest-first [third second], got [%s %s]", entries[0].Query, entries[1].Query)
	}
}

func Test_Store_RejectsUnknownResult(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	err := s.Append(context.Background(), Entry{
		Query: "q", Answer: "a", Status: "answered", Result: "maybe", Confidence: 0.5,
	})
	if err == nil {
		t.Fatal("want error for result outside pass/fail")
	}
}

func Test_Store_EmptyHistoryReturnsNil(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	entries, err := s.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("want 0 entries, got %d", len(entries))
	}
}
