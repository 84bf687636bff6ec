package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/flow/agent/react"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/calai-go/internal/budget"
	"github.com/54b3r/calai-go/internal/calendar"
	"github.com/54b3r/calai-go/internal/logging"
	"github.com/54b3r/calai-go/internal/rag"
	"github.com/54b3r/calai-go/internal/tools"
)

// chatSystemPrompt is the persona for the freeform chat mode, where the model
// drives tool selection itself instead of the deterministic controller.
const chatSystemPrompt = `You are a calendar assistant. You answer questions about the user's schedule
and workplace calendar policies.

You have four calendar tools: list_events, get_event_details, search_events,
and create_event. Use them to look up real calendar state before answering —
never guess what is on the calendar.

Rules:
- Dates are YYYY-MM-DD and times are HH:MM in the user's timezone.
- Resolve relative dates ("tomorrow", "next Friday") against today's date
  given below before calling a tool.
- Before creating an event, confirm you have a title, date, and start time.
  If any is missing, ask for it instead of inventing a value.
- If create_event fails with a conflict, report the conflicting event(s) and
  offer the suggested free slots.
- For policy questions, rely on the reference passages provided with the
  question. If no passage covers the question, say you do not know rather
  than inventing policy.
- Keep answers short and concrete. Mention event titles and times, not IDs,
  unless the user asks for IDs.`

// ChatConfig holds the dependencies for constructing a ChatAgent.
type ChatConfig struct {
	// ChatModel is the tool-calling LLM backend.
	ChatModel model.ToolCallingChatModel

	// Gateway is the calendar gateway the model's tool calls route through,
	// so freeform calls are recorded the same way controller calls are.
	Gateway *calendar.Gateway

	// Retriever is the optional knowledge retriever. May be nil.
	Retriever rag.Retriever

	// TopK is the number of knowledge chunks injected per query.
	// Defaults to 5 if zero.
	TopK int

	// MinScore is the similarity floor for injected chunks.
	MinScore float32

	// MaxContextTokens is the estimated input token budget. Knowledge chunks
	// are trimmed lowest-score-first to fit. Defaults to
	// budget.DefaultMaxContextTokens if zero.
	MaxContextTokens int

	// Now supplies the current time for resolving relative dates.
	// Defaults to time.Now.
	Now func() time.Time
}

// ChatAgent is the freeform counterpart to Controller: an Eino ReAct loop
// where the model decides which calendar tools to call. Tool calls still go
// through the gateway, so the call log stays complete either way.
type ChatAgent struct {
	// reactAgent is the underlying Eino ReAct loop.
	reactAgent *react.Agent

	// gateway records every tool call the model makes.
	gateway *calendar.Gateway

	// retriever is the optional knowledge retriever.
	retriever rag.Retriever

	// topK is the number of knowledge chunks injected per query.
	topK int

	// minScore is the similarity floor for injected chunks.
	minScore float32

	// maxContextTokens bounds the estimated input size.
	maxContextTokens int

	// now supplies the current time.
	now func() time.Time
}

// NewChatAgent constructs a ChatAgent from the provided config.
func NewChatAgent(ctx context.Context, cfg *ChatConfig) (*ChatAgent, error) {
	if cfg == nil || cfg.ChatModel == nil {
		return nil, fmt.Errorf("agent: chat ChatModel must not be nil")
	}
	if cfg.Gateway == nil {
		return nil, fmt.Errorf("agent: chat Gateway must not be nil")
	}

	reactAgent, err := react.NewAgent(ctx, &react.AgentConfig{
		ToolCallingModel: cfg.ChatModel,
		ToolsConfig: compose.ToolsNodeConfig{
			Tools: tools.All(cfg.Gateway),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("agent: failed to create ReAct agent: %w", err)
	}

	topK := cfg.TopK
	if topK <= 0 {
		topK = 5
	}
	maxCtx := cfg.MaxContextTokens
	if maxCtx <= 0 {
		maxCtx = budget.DefaultMaxContextTokens
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &ChatAgent{
		reactAgent:       reactAgent,
		gateway:          cfg.Gateway,
		retriever:        cfg.Retriever,
		topK:             topK,
		minScore:         cfg.MinScore,
		maxContextTokens: maxCtx,
		now:              now,
	}, nil
}

// Chat sends a user message through the ReAct loop and streams the model's
// answer to w. Relevant knowledge chunks, when a retriever is configured, are
// appended to the user message as reference passages. Returns the full
// accumulated answer text.
func (a *ChatAgent) Chat(ctx context.Context, userMessage string, w io.Writer) (string, error) {
	if strings.TrimSpace(userMessage) == "" {
		return "", fmt.Errorf("agent: chat message must not be empty")
	}

	messages := []*schema.Message{
		schema.SystemMessage(chatSystemPrompt + "\n\nToday is " + a.now().Format("Monday, 2006-01-02") + "."),
		schema.UserMessage(a.withKnowledge(ctx, userMessage)),
	}

	sr, err := a.reactAgent.Stream(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("agent: chat stream failed: %w", err)
	}
	defer sr.Close()

	var buf strings.Builder
	for {
		msg, err := sr.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return buf.String(), fmt.Errorf("agent: chat stream receive: %w", err)
		}
		if msg == nil || msg.Content == "" {
			continue
		}
		buf.WriteString(msg.Content)
		if _, err := fmt.Fprint(w, msg.Content); err != nil {
			return buf.String(), fmt.Errorf("agent: chat write: %w", err)
		}
	}
	return buf.String(), nil
}

// withKnowledge appends retrieved reference passages to the user message,
// trimmed to the token budget. Retrieval failures degrade to the bare
// message; the chat can still answer from tools.
func (a *ChatAgent) withKnowledge(ctx context.Context, userMessage string) string {
	if a.retriever == nil {
		return userMessage
	}

	docs, err := a.retriever.Retrieve(ctx, userMessage, a.topK, a.minScore)
	if err != nil {
		logging.FromContext(ctx).Warn("chat: retrieval failed, continuing without knowledge",
			slog.Any("error", err),
		)
		return userMessage
	}
	if len(docs) == 0 {
		return userMessage
	}

	fixed := budget.Estimate(chatSystemPrompt) + budget.Estimate(userMessage)
	docs = budget.TrimRetrieved(fixed, docs, a.maxContextTokens)
	if len(docs) == 0 {
		return userMessage
	}

	var sb strings.Builder
	sb.WriteString(userMessage)
	sb.WriteString("\n\nReference passages:\n")
	for _, d := range docs {
		fmt.Fprintf(&sb, "[%s] (%s) %s\n", d.ChunkID, d.SourceRef, d.Text)
	}
	return sb.String()
}
