// Package tools exposes the four calendar gateway operations as Eino tools
// so a tool-calling chat model sees exactly the same schema the gateway
// enforces. Every tool routes through a calendar.Gateway, so model-initiated
// calls land in the same append-only log as controller-initiated ones.
package tools

import (
	"github.com/cloudwego/eino/components/tool"

	"github.com/54b3r/calai-go/internal/calendar"
)

// CalendarTool is the interface all calendar tools satisfy. It extends the
// basic Eino tool contract with a Name accessor so callers can log and route
// tool calls by name without type assertions.
type CalendarTool interface {
	// Name returns the unique tool name registered with the agent.
	Name() string

	// Description returns a human-readable description of what the tool does.
	// This text is sent to the LLM as part of the tool schema.
	Description() string
}

// All returns the full Eino tool list bound to the given gateway.
func All(g *calendar.Gateway) []tool.BaseTool {
	return []tool.BaseTool{
		&listEventsTool{gateway: g},
		&getEventDetailsTool{gateway: g},
		&searchEventsTool{gateway: g},
		&createEventTool{gateway: g},
	}
}
