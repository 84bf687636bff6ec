package rag

import (
	"context"
	"fmt"
)

// DefaultRetriever implements the Retriever interface by combining an
// Embedder and a ChunkStore. It embeds the query at retrieval time and
// delegates similarity search to the store.
type DefaultRetriever struct {
	// embedder converts query text to a dense vector.
	embedder Embedder

	// store performs the similarity search.
	store ChunkStore

	// defaultTopK is the number of results to return when the caller passes 0.
	defaultTopK int

	// defaultMinScore is the cutoff applied when the caller passes 0.
	defaultMinScore float32
}

// NewRetriever constructs a DefaultRetriever from the given Embedder and
// ChunkStore. defaultTopK and defaultMinScore apply when Retrieve is called
// with zero values.
func NewRetriever(embedder Embedder, store ChunkStore, defaultTopK int, defaultMinScore float32) (*DefaultRetriever, error) {
	if embedder == nil {
		return nil, fmt.Errorf("rag: embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("rag: store must not be nil")
	}
	if defaultTopK <= 0 {
		defaultTopK = 5
	}
	if defaultMinScore == 0 {
		defaultMinScore = 0.2
	}
	return &DefaultRetriever{
		embedder:        embedder,
		store:           store,
		defaultTopK:     defaultTopK,
		defaultMinScore: defaultMinScore,
	}, nil
}

// Retrieve embeds the query and returns at most k chunks scoring at least
// minScore, descending by score. An empty result is returned as-is — "no
// relevant knowledge" is a valid outcome the caller must handle, not an
// error.
func (r *DefaultRetriever) Retrieve(ctx context.Context, query string, k int, minScore float32) ([]Retrieved, error) {
	if k <= 0 {
		k = r.defaultTopK
	}
	if minScore == 0 {
		minScore = r.defaultMinScore
	}

	embeddings, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("rag: embedding query failed: %w", err)
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("rag: embedder returned empty result for query")
	}

	results, err := r.store.Search(ctx, embeddings[0], k, minScore)
	if err != nil {
		return nil, fmt.Errorf("rag: similarity search failed: %w", err)
	}

	return results, nil
}
