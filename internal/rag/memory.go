package rag

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// MemoryStore is an in-process ChunkStore that ranks chunks by exact cosine
// similarity. It preserves ingestion order so equal-score ties resolve
// deterministically. Used for tests and for local mode where a Qdrant
// instance is not available.
type MemoryStore struct {
	// mu protects chunks and index.
	mu sync.RWMutex

	// chunks holds all stored chunks in ingestion order.
	chunks []Chunk

	// index maps chunk ID to its position in chunks, for upsert and delete.
	index map[string]int
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{index: make(map[string]int)}
}

// Upsert stores or updates a batch of chunks. Updated chunks keep their
// original ingestion position so tie-break ordering stays stable.
func (s *MemoryStore) Upsert(ctx context.Context, chunks []Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range chunks {
		if c.ID == "" {
			return fmt.Errorf("rag: chunk with empty ID")
		}
		if len(c.Embedding) == 0 {
			return fmt.Errorf("rag: chunk %s has no embedding", c.ID)
		}
		if pos, ok := s.index[c.ID]; ok {
			s.chunks[pos] = c
			continue
		}
		s.index[c.ID] = len(s.chunks)
		s.chunks = append(s.chunks, c)
	}
	return nil
}

// Search ranks all chunks by cosine similarity and returns at most k entries
// with score >= minScore, descending by score, ties broken by ingestion order.
func (s *MemoryStore) Search(ctx context.Context, queryEmbedding []float32, k int, minScore float32) ([]Retrieved, error) {
	if len(queryEmbedding) == 0 {
		return nil, fmt.Errorf("rag: empty query embedding")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	type scored struct {
		pos   int
		score float32
	}
	var candidates []scored
	for pos, c := range s.chunks {
		if len(c.Embedding) == 0 {
			// Deleted (tombstoned) slot.
			continue
		}
		score, err := Cosine(queryEmbedding, c.Embedding)
		if err != nil {
			return nil, fmt.Errorf("rag: chunk %s: %w", c.ID, err)
		}
		if score >= minScore {
			candidates = append(candidates, scored{pos: pos, score: score})
		}
	}

	// Stable ordering: descending score, then ingestion position.
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score == candidates[j].score {
			return candidates[i].pos < candidates[j].pos
		}
		return candidates[i].score > candidates[j].score
	})

	if k > 0 && len(candidates) > k {
		candidates = candidates[:k]
	}

	out := make([]Retrieved, 0, len(candidates))
	for _, cand := range candidates {
		c := s.chunks[cand.pos]
		out = append(out, Retrieved{
			ChunkID:   c.ID,
			Score:     cand.score,
			Text:      c.Text,
			SourceRef: c.SourceRef,
		})
	}
	return out, nil
}

// Delete removes chunks by ID. Positions of surviving chunks are preserved
// by tombstoning rather than compacting, keeping tie-break order stable.
func (s *MemoryStore) Delete(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		pos, ok := s.index[id]
		if !ok {
			continue
		}
		// Tombstone: empty embedding excludes the slot from every search.
		s.chunks[pos] = Chunk{}
		delete(s.index, id)
	}
	return nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error { return nil }

// Cosine returns the cosine similarity of two equal-length vectors.
func Cosine(a, b []float32) (float32, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("rag: dimension mismatch: %d vs %d", len(a), len(b))
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB))), nil
}
