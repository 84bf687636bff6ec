// Package agent implements the query controller at the centre of the answer
// pipeline. For each query it classifies which evidence sources are needed,
// runs the missing-info check before any tool call, gathers retrieval results
// and calendar tool outcomes into a context bundle, and hands the bundle to
// the answer generator. Each query is processed as a linear pipeline over
// state owned exclusively by that query.
package agent

import (
	"github.com/54b3r/calai-go/internal/calendar"
	"github.com/54b3r/calai-go/internal/rag"
)

// Route is the controller's evidence-routing decision, modelled as an
// explicit tagged variant so every branch is independently testable.
type Route int

const (
	// RouteNeedsRetrieval means document knowledge alone answers the query.
	RouteNeedsRetrieval Route = iota
	// RouteNeedsTools means calendar data alone answers the query.
	RouteNeedsTools
	// RouteNeedsBoth means the query needs documents and calendar data.
	RouteNeedsBoth
	// RouteMissingInfo means a mandatory tool argument is absent from the
	// query and cannot be inferred; a follow-up question could resolve it.
	RouteMissingInfo
	// RouteAmbiguousQuery means the query is too vague to act on as stated
	// (for example a scheduling request with no time or date signal).
	RouteAmbiguousQuery
)

// String returns the route name for logs and explanations.
func (r Route) String() string {
	switch r {
	case RouteNeedsRetrieval:
		return "needs_retrieval"
	case RouteNeedsTools:
		return "needs_tools"
	case RouteNeedsBoth:
		return "needs_both"
	case RouteMissingInfo:
		return "missing_info"
	case RouteAmbiguousQuery:
		return "ambiguous_query"
	default:
		return "unknown"
	}
}

// ContextBundle is the complete evidence set assembled for one query. It is
// owned by that query's processing and discarded when the query completes.
type ContextBundle struct {
	// Retrieved holds the retrieval result, descending by score.
	Retrieved []rag.Retrieved

	// ToolRecords is the append-only tool call log, in call order.
	// Failures appear here verbatim; they are evidence too.
	ToolRecords []calendar.Record

	// TimezoneAssumption is the IANA timezone name all tool call times were
	// interpreted in. Threaded from configuration, never implicit.
	TimezoneAssumption string
}

// Empty reports whether the bundle contains no evidence at all.
func (b *ContextBundle) Empty() bool {
	return len(b.Retrieved) == 0 && len(b.ToolRecords) == 0
}

// Status is the terminal state of query processing.
type Status string

const (
	// StatusAnswered means the generator produced an evidence-backed answer.
	StatusAnswered Status = "answered"
	// StatusClarification means the query needs a follow-up question before
	// it can be answered.
	StatusClarification Status = "clarification_requested"
	// StatusInvalidQuery means the query is malformed beyond clarification.
	StatusInvalidQuery Status = "invalid_query"
)

// Answer is the generator's output. The citation sets are mandatory: the
// evaluator's first check resolves every entry against the bundle the answer
// was derived from.
type Answer struct {
	// Text is the natural-language answer, clarification question, or
	// decline.
	Text string `json:"text"`

	// CitedChunkIDs lists the retrieved chunk IDs the answer draws on.
	CitedChunkIDs []string `json:"cited_chunk_ids"`

	// CitedToolCalls lists indices into the bundle's tool record log.
	CitedToolCalls []int `json:"cited_tool_calls"`

	// Status is the terminal state this answer represents.
	Status Status `json:"status"`
}

// Result pairs an answer with the bundle and routing decision it came from,
// so the evaluator can re-derive support independently of the generator.
type Result struct {
	// Answer is the generated answer.
	Answer Answer

	// Bundle is the evidence the answer was generated from.
	Bundle ContextBundle

	// Decision is the controller's classification for the query.
	Decision Decision
}
