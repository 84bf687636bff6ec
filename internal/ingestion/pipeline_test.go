package ingestion

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/54b3r/calai-go/internal/rag"
)

// countEmbedder returns a fixed unit vector per text so Search finds
// everything with score 1.0.
type countEmbedder struct {
	calls int
}

func (e *countEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.calls++
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

func Test_Pipeline_IngestsLocalFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	doc := filepath.Join(dir, "booking-policy.md")
	content := strings.Repeat("Meetings must be booked one day ahead. ", 40)
	if err := os.WriteFile(doc, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	store := rag.NewMemoryStore()
	emb := &countEmbedder{}
	p, err := NewPipeline(emb, store, &Config{ChunkSize: 500, ChunkOverlap: 50})
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}

	var msgs []string
	err = p.Ingest(context.Background(), []Source{{Location: doc}}, func(m string) { msgs = append(msgs, m) })
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}

	got, err := store.Search(context.Background(), []float32{1, 0}, 50, 0.5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) < 2 {
		t.Fatalf("want multiple chunks stored, got %d", len(got))
	}
	for _, r := range got {
		if r.SourceRef != doc {
			t.Errorf("source ref: want %q, got %q", doc, r.SourceRef)
		}
	}
	if emb.calls != 1 {
		t.Errorf("want one batched embed call, got %d", emb.calls)
	}
	if len(msgs) == 0 {
		t.Error("progress callback never invoked")
	}
}

func Test_Pipeline_ReingestUpdatesInPlace(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	doc := filepath.Join(dir, "hours.md")
	if err := os.WriteFile(doc, []byte("Office hours are 9 to 5."), 0o644); err != nil {
		t.Fatal(err)
	}

	store := rag.NewMemoryStore()
	p, err := NewPipeline(&countEmbedder{}, store, nil)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}

	for range 2 {
		if err := p.Ingest(context.Background(), []Source{{Location: doc}}, nil); err != nil {
			t.Fatalf("ingest: %v", err)
		}
	}

	got, err := store.Search(context.Background(), []float32{1, 0}, 50, 0.5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("deterministic IDs should dedupe re-ingestion: want 1 chunk, got %d", len(got))
	}
}

func Test_Pipeline_ChunkOverlap(t *testing.T) {
	t.Parallel()

	p, err := NewPipeline(&countEmbedder{}, rag.NewMemoryStore(), &Config{ChunkSize: 10, ChunkOverlap: 2})
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}

	chunks := p.chunk("abcdefghijklmnop")
	if len(chunks) != 2 {
		t.Fatalf("want 2 chunks, got %d: %v", len(chunks), chunks)
	}
	if chunks[0] != "abcdefghij" || chunks[1] != "ijklmnop" {
		t.Errorf("unexpected chunks: %v", chunks)
	}
}

func Test_Pipeline_NilDependenciesRejected(t *testing.T) {
	t.Parallel()

	if _, err := NewPipeline(nil, rag.NewMemoryStore(), nil); err == nil {
		t.Error("want error for nil embedder")
	}
	if _, err := NewPipeline(&countEmbedder{}, nil, nil); err == nil {
		t.Error("want error for nil store")
	}
}
