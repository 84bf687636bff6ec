package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/54b3r/calai-go/internal/budget"
	"github.com/54b3r/calai-go/internal/calendar"
	"github.com/54b3r/calai-go/internal/completion"
	"github.com/54b3r/calai-go/internal/logging"
	"github.com/54b3r/calai-go/internal/rag"
)

// generatorPrompt is the base instruction set for the answer generator. It
// constrains the model to the supplied evidence and demands the citation
// envelope; the evaluator depends on the cited_* fields being present.
const generatorPrompt = `You are a careful assistant that answers questions using ONLY the evidence
provided below. The evidence comes from two sources: knowledge-base chunks
(each tagged [chunk <id>]) and calendar tool call records (each tagged
[tool <index>]).

Rules you must never break:
- Every factual claim in your answer must come from a chunk or a tool record
  listed below. If the evidence does not cover the question, say so and do
  not answer from outside knowledge.
- Failed tool calls are evidence too: if a create_event call returned a
  Conflict, report the conflict and the conflicting events, and state that
  nothing was created. If a tool call failed with Timeout, say the calendar
  is currently unavailable.
- List events in ascending start-time order, exactly as the tool returned
  them.
- All times are in the timezone named below. Do not convert them.

Respond with ONLY a JSON object in this exact shape — no markdown fencing,
no text outside the JSON:

{
  "text": "<your answer, clarification question, or decline>",
  "cited_chunk_ids": ["<id of every chunk you used>"],
  "cited_tool_calls": [<index of every tool record you used>],
  "status": "answered"
}

Set status to "answered" when you produced an evidence-backed answer,
"clarification_requested" when you need more information from the user, or
"invalid_query" when the question cannot be answered from this evidence and
no clarification would help. The cited_chunk_ids and cited_tool_calls fields
are mandatory; cite every piece of evidence you used and nothing else.`

// noEvidenceText is the deterministic decline used when the bundle is empty.
const noEvidenceText = "I do not have sufficient context to answer this question."

// Generator produces an Answer constrained to a context bundle, via the
// injected text-completion capability.
type Generator struct {
	// completer is the text-completion capability.
	completer completion.Completer
}

// NewGenerator constructs a Generator over the given Completer.
func NewGenerator(c completion.Completer) (*Generator, error) {
	if c == nil {
		return nil, fmt.Errorf("agent: completer must not be nil")
	}
	return &Generator{completer: c}, nil
}

// Generate produces an answer for the query from the bundle. An empty bundle
// never reaches the model: with no evidence there is nothing to ground an
// answer in, so the generator declines deterministically.
func (g *Generator) Generate(ctx context.Context, query string, bundle *ContextBundle) (Answer, error) {
	if bundle.Empty() {
		return Answer{Text: noEvidenceText, Status: StatusInvalidQuery}, nil
	}

	// Trim the lowest-ranked chunks when the evidence would overflow the
	// context budget. The bundle itself stays intact for the evaluator; only
	// what the model sees is reduced.
	retrieved := bundle.Retrieved
	fixedTokens := budget.Estimate(generatorPrompt) + budget.Estimate(query) + toolRecordTokens(bundle.ToolRecords)
	trimmed := budget.TrimRetrieved(fixedTokens, retrieved, budget.DefaultMaxContextTokens)
	if dropped := len(retrieved) - len(trimmed); dropped > 0 {
		logging.FromContext(ctx).Warn("dropped retrieved chunks to fit context window",
			slog.Int("dropped", dropped),
			slog.Int("retained", len(trimmed)),
		)
	}

	prompt, err := buildPrompt(query, bundle, trimmed)
	if err != nil {
		return Answer{}, fmt.Errorf("agent: failed to build generation prompt: %w", err)
	}

	raw, err := g.completer.Complete(ctx, prompt)
	if err != nil {
		return Answer{}, fmt.Errorf("agent: completion failed: %w", err)
	}

	answer, err := parseAnswer(raw)
	if err != nil {
		return Answer{}, err
	}
	return *answer, nil
}

// toolRecordTokens estimates the rendered size of the tool call log.
func toolRecordTokens(records []calendar.Record) int {
	total := 0
	for _, rec := range records {
		raw, err := json.Marshal(rec)
		if err != nil {
			continue
		}
		total += 8 + budget.Estimate(string(raw))
	}
	return total
}

// buildPrompt renders the instruction set, the evidence, and the query into
// one completion prompt. Tool records are serialised verbatim, failures
// included.
func buildPrompt(query string, bundle *ContextBundle, retrieved []rag.Retrieved) (string, error) {
	var sb strings.Builder
	sb.WriteString(generatorPrompt)
	sb.WriteString("\n\n## Timezone\n\nAll times are in ")
	sb.WriteString(bundle.TimezoneAssumption)
	sb.WriteString(".\n\n## Evidence\n\n")

	for _, r := range retrieved {
		fmt.Fprintf(&sb, "[chunk %s] (source: %s, score: %.2f)\n%s\n\n", r.ChunkID, r.SourceRef, r.Score, r.Text)
	}
	for i, rec := range bundle.ToolRecords {
		raw, err := json.Marshal(rec)
		if err != nil {
			return "", fmt.Errorf("marshalling tool record %d: %w", i, err)
		}
		fmt.Fprintf(&sb, "[tool %d] %s\n%s\n\n", i, rec.Tool, raw)
	}

	sb.WriteString("## Question\n\n")
	sb.WriteString(query)
	return sb.String(), nil
}
