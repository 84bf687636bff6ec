// Package budget provides token budget estimation and evidence trimming for
// the answer generator. Because the pipeline supports multiple LLM backends
// with different tokenizers, this package uses a conservative character-based
// heuristic: 1 token ≈ 4 characters (English prose and code). This
// deliberately under-estimates token counts to leave headroom for
// model-specific overhead.
package budget

import (
	"github.com/54b3r/calai-go/internal/rag"
)

const (
	// charsPerToken is the conservative character-to-token ratio used for
	// estimation. 4 chars/token is standard for English and code; using 3
	// would be more aggressive but risks overflowing context windows.
	charsPerToken = 4

	// DefaultMaxContextTokens is the default input context budget in tokens.
	// Conservative enough to fit within 8k-context models (Llama 3 8B,
	// GPT-3.5) while leaving room for the output.
	DefaultMaxContextTokens = 6000
)

// Estimate returns a rough token count for s using the character heuristic.
func Estimate(s string) int {
	n := len(s) / charsPerToken
	if n == 0 && len(s) > 0 {
		return 1
	}
	return n
}

// EstimateRetrieved returns the estimated total token count for a retrieval
// result, summing text and source reference for each entry.
func EstimateRetrieved(docs []rag.Retrieved) int {
	total := 0
	for _, d := range docs {
		// Each entry has a small rendering overhead (tag line, score).
		total += 8
		total += Estimate(d.Text)
		total += Estimate(d.SourceRef)
	}
	return total
}

// TrimRetrieved drops the lowest-ranked retrieval entries until the fixed
// prompt parts plus the remaining evidence fit within maxTokens. The result
// is ordered by descending score, so trimming from the tail always discards
// the least relevant evidence first.
//
// Returns the trimmed slice. If even a single entry exceeds the budget, the
// empty slice is returned (fixed prompt parts are never trimmed here —
// callers should warn separately if those alone exceed the budget).
func TrimRetrieved(fixedTokens int, docs []rag.Retrieved, maxTokens int) []rag.Retrieved {
	for len(docs) > 0 {
		if fixedTokens+EstimateRetrieved(docs) <= maxTokens {
			break
		}
		docs = docs[:len(docs)-1]
	}
	return docs
}
