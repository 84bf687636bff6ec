// Package rag defines the interfaces for the knowledge-base side of the
// pipeline: chunk storage, similarity search, and embedding. Concrete
// implementations (in-memory, Qdrant) satisfy these interfaces so the agent
// layer never depends on a specific backend.
package rag

import (
	"context"
)

// Chunk is a contiguous span of source text stored with its vector embedding.
// Chunks are created during ingestion and are immutable afterwards — the
// answer pipeline only ever reads them.
type Chunk struct {
	// ID is the unique identifier for this chunk.
	ID string

	// Text is the raw chunk text.
	Text string

	// Embedding is the dense vector computed from Text at ingestion time.
	Embedding []float32

	// SourceRef is the origin of the chunk (file path or URL).
	SourceRef string

	// CharStart and CharEnd delimit the chunk's character range within the
	// source document.
	CharStart int
	CharEnd   int
}

// Retrieved is one entry of a retrieval result: a chunk reference with the
// similarity score it earned for the current query.
type Retrieved struct {
	// ChunkID identifies the chunk in the store.
	ChunkID string

	// Score is the cosine similarity against the query embedding, in [-1, 1].
	Score float32

	// Text is the chunk text, carried along so downstream components never
	// need a second store lookup.
	Text string

	// SourceRef is the chunk's origin, for citations in answers.
	SourceRef string
}

// Embedder converts text into dense vector embeddings.
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	// The returned slice is parallel to the input slice.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// ChunkStore persists embedded chunks and answers nearest-neighbour queries.
// Implementations must be safe to call from multiple goroutines.
type ChunkStore interface {
	// Upsert stores or updates a batch of chunks. Each chunk must carry its
	// pre-computed embedding.
	Upsert(ctx context.Context, chunks []Chunk) error

	// Search returns up to k chunks with cosine similarity >= minScore
	// against the query embedding, ordered by descending score with ties
	// broken by ingestion order. An empty result is a valid outcome.
	Search(ctx context.Context, queryEmbedding []float32, k int, minScore float32) ([]Retrieved, error)

	// Delete removes chunks by their IDs.
	Delete(ctx context.Context, ids []string) error

	// Close releases any resources held by the store.
	Close() error
}

// Retriever is the high-level interface the agent uses to fetch relevant
// knowledge for a query. It combines embedding and similarity search.
// Implementations must be safe to call from multiple goroutines.
type Retriever interface {
	// Retrieve returns at most k chunks scoring at least minScore for the
	// query, descending by score. An empty result means "no relevant
	// knowledge" and is not an error.
	Retrieve(ctx context.Context, query string, k int, minScore float32) ([]Retrieved, error)
}
