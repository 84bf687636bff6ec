// Package eval implements the evaluation gate that re-checks every generated
// answer before it is returned. The evaluator is read-only over the context
// bundle and fully deterministic: it re-derives support from the same
// evidence the generator saw, so it cannot be fooled by confident-sounding
// but unsupported text, and it never issues new tool calls or retrievals.
package eval

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/54b3r/calai-go/internal/agent"
	"github.com/54b3r/calai-go/internal/calendar"
)

// SourceType names the origin of a reference.
type SourceType string

const (
	// SourceChunk references a knowledge-base chunk.
	SourceChunk SourceType = "chunk"
	// SourceCalendar references a calendar event or tool call.
	SourceCalendar SourceType = "calendar"
)

// Reference is one citation the answer actually used.
type Reference struct {
	// SourceType is chunk or calendar.
	SourceType SourceType `json:"source_type"`
	// Identifier is the chunk ID, event ID, or tool name.
	Identifier string `json:"identifier"`
}

// Outcome is the verdict result.
type Outcome string

const (
	// Pass means the answer cleared every check.
	Pass Outcome = "pass"
	// Fail means at least one check flagged an issue.
	Fail Outcome = "fail"
)

// Verdict is the evaluator's structured judgment of one answer.
type Verdict struct {
	// Confidence is the aggregate score in [0, 1]. Each flagged issue costs
	// 0.2; a referential integrity violation zeroes it outright.
	Confidence float64 `json:"confidence"`

	// Explanation summarises which checks failed, or states that the answer
	// is properly grounded.
	Explanation string `json:"explanation"`

	// References lists every citation actually used, deduplicated, in
	// citation order.
	References []Reference `json:"references"`

	// Result is pass iff no check flagged an issue.
	Result Outcome `json:"result"`
}

// issueCost is the confidence penalty per flagged issue.
const issueCost = 0.2

// Evaluate re-checks a processed query result: referential integrity of the
// citations, groundedness of each factual claim against the cited evidence,
// and tool usage against the classified need. The answer is judged, never
// modified; an ungrounded answer is still returned to the caller, flagged.
func Evaluate(res *agent.Result) (*Verdict, error) {
	if res == nil {
		return nil, fmt.Errorf("eval: result must not be nil")
	}

	// Referential integrity first: a citation that does not resolve inside
	// the bundle invalidates everything built on it.
	if msg := checkReferential(res); msg != "" {
		return &Verdict{
			Confidence:  0,
			Explanation: msg,
			References:  nil,
			Result:      Fail,
		}, nil
	}

	var issues []string
	issues = append(issues, checkGroundedness(res)...)
	issues = append(issues, checkToolCorrectness(res)...)

	confidence := 1.0 - issueCost*float64(len(issues))
	if confidence < 0 {
		confidence = 0
	}

	explanation := "answer is properly grounded in the cited evidence"
	result := Pass
	if len(issues) > 0 {
		explanation = strings.Join(issues, " | ")
		result = Fail
	}

	return &Verdict{
		Confidence:  confidence,
		Explanation: explanation,
		References:  collectReferences(res),
		Result:      result,
	}, nil
}

// checkReferential verifies every cited chunk ID and tool call index resolves
// to an entry in the bundle. Returns an empty string when integrity holds.
func checkReferential(res *agent.Result) string {
	known := make(map[string]bool, len(res.Bundle.Retrieved))
	for _, r := range res.Bundle.Retrieved {
		known[r.ChunkID] = true
	}
	for _, id := range res.Answer.CitedChunkIDs {
		if !known[id] {
			return fmt.Sprintf("cited chunk %q is not in the context bundle", id)
		}
	}
	for _, idx := range res.Answer.CitedToolCalls {
		if idx < 0 || idx >= len(res.Bundle.ToolRecords) {
			return fmt.Sprintf("cited tool call %d is not in the tool log (%d records)", idx, len(res.Bundle.ToolRecords))
		}
	}
	return ""
}

// checkGroundedness verifies each factual sentence of an answered response is
// lexically supported by the cited evidence. Clarifications and declines
// carry no factual claims and are skipped.
func checkGroundedness(res *agent.Result) []string {
	if res.Answer.Status != agent.StatusAnswered {
		return nil
	}

	if len(res.Answer.CitedChunkIDs) == 0 && len(res.Answer.CitedToolCalls) == 0 {
		return []string{"answer asserts facts but cites no evidence"}
	}

	evidence := strings.ToLower(citedEvidenceText(res))

	var issues []string
	for _, sentence := range splitSentences(res.Answer.Text) {
		tokens := contentTokens(sentence)
		if len(tokens) < 2 {
			continue
		}
		supported := 0
		for _, tok := range tokens {
			if strings.Contains(evidence, tok) {
				supported++
			}
		}
		if float64(supported) < 0.5*float64(len(tokens)) {
			issues = append(issues, fmt.Sprintf("unsupported claim: %q", sentence))
		}
	}
	return issues
}

// checkToolCorrectness compares the tool call log against the classified
// need: under-calling starves the answer of evidence it claimed to need,
// over-calling injects irrelevant data presented as relevant.
func checkToolCorrectness(res *agent.Result) []string {
	var issues []string
	needs := res.Decision.NeedsTools()
	called := len(res.Bundle.ToolRecords) > 0

	if needs && !called {
		issues = append(issues, "query needs calendar data but no tool was called")
	}
	if !needs && called {
		issues = append(issues, "tool calls were issued for a query that needs none")
	}
	if res.Answer.Status == agent.StatusAnswered &&
		res.Decision.NeedsRetrieval() && !needs && len(res.Bundle.Retrieved) == 0 {
		issues = append(issues, "retrieval returned nothing yet the answer did not decline")
	}
	return issues
}

// citedEvidenceText concatenates the text of every cited chunk and the
// serialised payload of every cited tool record.
func citedEvidenceText(res *agent.Result) string {
	var sb strings.Builder

	cited := make(map[string]bool, len(res.Answer.CitedChunkIDs))
	for _, id := range res.Answer.CitedChunkIDs {
		cited[id] = true
	}
	for _, r := range res.Bundle.Retrieved {
		if cited[r.ChunkID] {
			sb.WriteString(r.Text)
			sb.WriteString("\n")
		}
	}

	for _, idx := range res.Answer.CitedToolCalls {
		rec := res.Bundle.ToolRecords[idx]
		if raw, err := json.Marshal(rec); err == nil {
			sb.Write(raw)
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// collectReferences lists the citations actually used, deduplicated, in
// citation order. Cited tool records contribute the IDs of the events they
// returned (conflicting events included); records with no event payload
// contribute the tool name.
func collectReferences(res *agent.Result) []Reference {
	var refs []Reference
	seen := make(map[Reference]bool)
	add := func(r Reference) {
		if !seen[r] {
			seen[r] = true
			refs = append(refs, r)
		}
	}

	for _, id := range res.Answer.CitedChunkIDs {
		add(Reference{SourceType: SourceChunk, Identifier: id})
	}
	for _, idx := range res.Answer.CitedToolCalls {
		rec := res.Bundle.ToolRecords[idx]
		ids := eventIDs(rec)
		if len(ids) == 0 {
			add(Reference{SourceType: SourceCalendar, Identifier: rec.Tool})
			continue
		}
		for _, id := range ids {
			add(Reference{SourceType: SourceCalendar, Identifier: id})
		}
	}
	return refs
}

// eventIDs extracts the event IDs carried by a record, looking into a
// Conflict failure's conflicting events when the call did not succeed.
func eventIDs(rec calendar.Record) []string {
	var ids []string
	for _, e := range rec.Events {
		ids = append(ids, e.ID)
	}
	if rec.Failure != nil {
		for _, e := range rec.Failure.Conflicts {
			ids = append(ids, e.ID)
		}
	}
	return ids
}

var sentenceSplit = regexp.MustCompile(`[.!?;]+\s+|[.!?;]+$`)

// splitSentences breaks answer text into candidate claims.
func splitSentences(text string) []string {
	parts := sentenceSplit.Split(text, -1)
	out := parts[:0]
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

var tokenSplit = regexp.MustCompile(`[^a-z0-9]+`)

// stopwords are common words that carry no factual content on their own.
var stopwords = map[string]bool{
	"the": true, "and": true, "you": true, "your": true, "have": true,
	"has": true, "was": true, "were": true, "are": true, "for": true,
	"with": true, "that": true, "this": true, "not": true, "but": true,
	"from": true, "will": true, "can": true, "per": true, "also": true,
	"any": true, "all": true, "there": true, "nothing": true, "one": true,
}

// contentTokens extracts the lowercase content words and numbers of a
// sentence: alphanumeric runs of at least two characters, stopwords removed.
func contentTokens(sentence string) []string {
	var out []string
	for _, tok := range tokenSplit.Split(strings.ToLower(sentence), -1) {
		if len(tok) < 2 || stopwords[tok] {
			continue
		}
		out = append(out, tok)
	}
	return out
}
