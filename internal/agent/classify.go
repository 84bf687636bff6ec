package agent

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/54b3r/calai-go/internal/calendar"
)

// Intent is the calendar operation a query asks for, if any.
type Intent int

const (
	// IntentNone means the query asks for no calendar operation.
	IntentNone Intent = iota
	// IntentCreate maps to create_event.
	IntentCreate
	// IntentList maps to list_events.
	IntentList
	// IntentDetails maps to get_event_details.
	IntentDetails
	// IntentSearch maps to search_events.
	IntentSearch
)

// String returns the intent name for logs and explanations.
func (i Intent) String() string {
	switch i {
	case IntentCreate:
		return "create_event"
	case IntentList:
		return "list_events"
	case IntentDetails:
		return "get_event_details"
	case IntentSearch:
		return "search_events"
	default:
		return "none"
	}
}

// Decision is the outcome of classifying one query: the evidence route, the
// calendar intent, any mandatory pieces that need clarification, and the tool
// inputs extracted from the query text. Classification is pure — same query
// text and reference time, same Decision.
type Decision struct {
	// Route is the evidence-routing variant.
	Route Route

	// Intent is the calendar operation the query maps to, IntentNone if none.
	Intent Intent

	// Missing names the mandatory pieces a follow-up question must supply.
	// Non-empty only when Route is RouteMissingInfo or RouteAmbiguousQuery.
	Missing []string

	// List holds the extracted list_events input when Intent is IntentList.
	List calendar.ListEventsInput

	// Details holds the extracted get_event_details input when Intent is
	// IntentDetails.
	Details calendar.GetEventDetailsInput

	// Search holds the extracted search_events input when Intent is
	// IntentSearch.
	Search calendar.SearchEventsInput

	// Create holds the extracted create_event input when Intent is
	// IntentCreate.
	Create calendar.CreateEventInput
}

// NeedsTools reports whether the route issues calendar tool calls.
func (d *Decision) NeedsTools() bool {
	return d.Route == RouteNeedsTools || d.Route == RouteNeedsBoth
}

// NeedsRetrieval reports whether the route issues a retrieval call.
func (d *Decision) NeedsRetrieval() bool {
	return d.Route == RouteNeedsRetrieval || d.Route == RouteNeedsBoth
}

var (
	reISODate   = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`)
	reTimeRange = regexp.MustCompile(`\b(\d{1,2}:\d{2})\s*(?:-|to|until)\s*(\d{1,2}:\d{2})\b`)
	reClockTime = regexp.MustCompile(`\b\d{1,2}:\d{2}\b`)
	reMeridiem  = regexp.MustCompile(`(?i)\b(\d{1,2})\s*(am|pm)\b`)
	reQuoted    = regexp.MustCompile(`['"]([^'"]+)['"]`)
	reTitledAs  = regexp.MustCompile(`(?i)\b(?:titled|called|named)\s+(\S+)`)
	reEventID   = regexp.MustCompile(`(?i)\bevent\s+([A-Za-z0-9_-]{2,})`)
	reSearchFor = regexp.MustCompile(`(?i)\b(?:search(?:\s+for)?|find)\s+(?:my\s+)?(?:calendar\s+)?(?:events?\s+)?(?:for\s+|about\s+|mentioning\s+)?(.+)$`)
)

// knowledgeHints are words that signal the query also needs document
// knowledge, not just calendar data.
var knowledgeHints = []string{"policy", "policies", "handbook", "guideline", "documentation", "docs", "according to", "allowed", "rule"}

// DefaultListWindowDays is the list_events window applied when the query
// names no dates: today through today plus this many days.
const DefaultListWindowDays = 30

// Classify determines the evidence route and tool inputs for a query.
// Routing is keyword-driven: scheduling verbs map to create_event, then
// details, search, and listing words are checked in that order so the more
// specific operation wins. Queries with no calendar signal route to
// retrieval only. The missing-info check runs here, before any tool call:
// a create request without a title, or a details request without an event
// id, short-circuits to a clarification route with the missing pieces named.
// now anchors relative dates (today, tomorrow) and the default list window.
func Classify(query string, now time.Time) Decision {
	q := strings.ToLower(query)

	switch {
	case strings.Contains(q, "create") || strings.Contains(q, "schedule"):
		return classifyCreate(query, q, now)
	case strings.Contains(q, "details"):
		return classifyDetails(query)
	case strings.Contains(q, "search") || strings.Contains(q, "find"):
		return classifySearch(query)
	case containsAny(q, "list", "upcoming", "calendar", "event", "events", "meeting", "meetings", "agenda"):
		return classifyList(query, q, now)
	default:
		return Decision{Route: RouteNeedsRetrieval}
	}
}

func classifyCreate(query, q string, now time.Time) Decision {
	d := Decision{Intent: IntentCreate, Route: RouteNeedsTools}
	if wantsKnowledge(q) {
		d.Route = RouteNeedsBoth
	}

	d.Create = calendar.CreateEventInput{
		Title:     extractTitle(query),
		Date:      extractDate(query, q, now),
		StartTime: "",
	}
	d.Create.StartTime, d.Create.EndTime = extractTimes(query)

	// The title can never be inferred; without it the request is incomplete
	// but a follow-up question resolves it.
	if d.Create.Title == "" {
		d.Route = RouteMissingInfo
		d.Missing = append(d.Missing, "title")
	}

	// No time or date signal at all makes the request too vague to act on.
	if !hasTimeSignal(q) {
		d.Route = routeVague(d.Route)
		d.Missing = append(d.Missing, "time")
	}
	if !hasDateSignal(q) {
		d.Route = routeVague(d.Route)
		d.Missing = append(d.Missing, "date")
	}
	return d
}

// routeVague downgrades a tool route to ambiguous without overriding an
// earlier missing-info decision.
func routeVague(r Route) Route {
	if r == RouteMissingInfo {
		return r
	}
	return RouteAmbiguousQuery
}

func classifyDetails(query string) Decision {
	d := Decision{Intent: IntentDetails, Route: RouteNeedsTools}
	if wantsKnowledge(strings.ToLower(query)) {
		d.Route = RouteNeedsBoth
	}
	if m := reEventID.FindStringSubmatch(query); m != nil {
		d.Details.EventID = m[1]
	} else if m := reQuoted.FindStringSubmatch(query); m != nil {
		d.Details.EventID = m[1]
	}
	if d.Details.EventID == "" {
		d.Route = RouteMissingInfo
		d.Missing = append(d.Missing, "event_id")
	}
	return d
}

func classifySearch(query string) Decision {
	d := Decision{Intent: IntentSearch, Route: RouteNeedsTools}
	if wantsKnowledge(strings.ToLower(query)) {
		d.Route = RouteNeedsBoth
	}
	if m := reQuoted.FindStringSubmatch(query); m != nil {
		d.Search.Keyword = m[1]
	} else if m := reSearchFor.FindStringSubmatch(query); m != nil {
		d.Search.Keyword = strings.TrimRight(strings.TrimSpace(m[1]), ".?!")
	}
	if d.Search.Keyword == "" {
		d.Route = RouteMissingInfo
		d.Missing = append(d.Missing, "keyword")
	}
	return d
}

func classifyList(query, q string, now time.Time) Decision {
	d := Decision{Intent: IntentList, Route: RouteNeedsTools}
	if wantsKnowledge(q) {
		d.Route = RouteNeedsBoth
	}

	dates := reISODate.FindAllString(query, 2)
	switch len(dates) {
	case 2:
		d.List = calendar.ListEventsInput{StartDate: dates[0], EndDate: dates[1]}
	case 1:
		d.List = calendar.ListEventsInput{StartDate: dates[0], EndDate: dates[0]}
	default:
		// No explicit dates: default to the next DefaultListWindowDays days.
		start := now
		if strings.Contains(q, "tomorrow") {
			start = now.AddDate(0, 0, 1)
		}
		end := start.AddDate(0, 0, DefaultListWindowDays)
		if strings.Contains(q, "today") || strings.Contains(q, "tomorrow") {
			end = start
		}
		d.List = calendar.ListEventsInput{
			StartDate: start.Format("2006-01-02"),
			EndDate:   end.Format("2006-01-02"),
		}
	}
	return d
}

func wantsKnowledge(q string) bool {
	return containsAny(q, knowledgeHints...)
}

func containsAny(q string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(q, w) {
			return true
		}
	}
	return false
}

// hasTimeSignal reports whether the query carries any usable time-of-day
// marker: a HH:MM clock time or an am/pm hour.
func hasTimeSignal(q string) bool {
	return reClockTime.MatchString(q) || reMeridiem.MatchString(q)
}

// hasDateSignal reports whether the query carries any usable date marker:
// an ISO date, today, or tomorrow.
func hasDateSignal(q string) bool {
	return reISODate.MatchString(q) || strings.Contains(q, "today") || strings.Contains(q, "tomorrow")
}

// extractTitle pulls the event title from a quoted span or a titled/called/
// named phrase. Returns empty when the query names no title.
func extractTitle(query string) string {
	if m := reQuoted.FindStringSubmatch(query); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := reTitledAs.FindStringSubmatch(query); m != nil {
		return strings.TrimRight(m[1], ".,?!")
	}
	return ""
}

// extractDate resolves the event date from an ISO date or a today/tomorrow
// marker anchored at now.
func extractDate(query, q string, now time.Time) string {
	if m := reISODate.FindString(query); m != "" {
		return m
	}
	if strings.Contains(q, "tomorrow") {
		return now.AddDate(0, 0, 1).Format("2006-01-02")
	}
	if strings.Contains(q, "today") {
		return now.Format("2006-01-02")
	}
	return ""
}

// extractTimes resolves start and end times from a HH:MM-HH:MM range, a
// single HH:MM, or an am/pm hour. End is empty when only a start is given;
// the gateway defaults it to one hour after start.
func extractTimes(query string) (start, end string) {
	if m := reTimeRange.FindStringSubmatch(query); m != nil {
		return padClock(m[1]), padClock(m[2])
	}
	if m := reClockTime.FindString(query); m != "" {
		return padClock(m), ""
	}
	if m := reMeridiem.FindStringSubmatch(query); m != nil {
		hour, err := strconv.Atoi(m[1])
		if err != nil || hour < 1 || hour > 12 {
			return "", ""
		}
		if strings.EqualFold(m[2], "pm") && hour != 12 {
			hour += 12
		}
		if strings.EqualFold(m[2], "am") && hour == 12 {
			hour = 0
		}
		return padClock(strconv.Itoa(hour) + ":00"), ""
	}
	return "", ""
}

// padClock normalises H:MM to HH:MM.
func padClock(t string) string {
	if i := strings.Index(t, ":"); i == 1 {
		return "0" + t
	}
	return t
}
