package completion

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// stubModel fails a configurable number of calls before answering.
type stubModel struct {
	mu       sync.Mutex
	failures int
	calls    int
	reply    string
}

func (s *stubModel) Generate(ctx context.Context, in []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.calls <= s.failures {
		return nil, errors.New("model unavailable")
	}
	return schema.AssistantMessage(s.reply, nil), nil
}

func (s *stubModel) Stream(ctx context.Context, in []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("stream not supported")
}

func Test_NewModelCompleter_NilModelRejected(t *testing.T) {
	t.Parallel()
	if _, err := NewModelCompleter(nil, 0); err == nil {
		t.Fatal("want error for nil model")
	}
}

func Test_ModelCompleter_ReturnsContent(t *testing.T) {
	t.Parallel()
	m := &stubModel{reply: "three events on Friday"}
	c, err := NewModelCompleter(m, 1)
	if err != nil {
		t.Fatalf("NewModelCompleter: %v", err)
	}

	got, err := c.Complete(context.Background(), "what is on Friday?")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "three events on Friday" {
		t.Errorf("want reply content, got %q", got)
	}
	if m.calls != 1 {
		t.Errorf("want 1 call, got %d", m.calls)
	}
}

func Test_ModelCompleter_RetriesTransientFailure(t *testing.T) {
	t.Parallel()
	m := &stubModel{failures: 1, reply: "ok"}
	c, err := NewModelCompleter(m, 2)
	if err != nil {
		t.Fatalf("NewModelCompleter: %v", err)
	}

	got, err := c.Complete(context.Background(), "ping")
	if err != nil {
		t.Fatalf("Complete after retry: %v", err)
	}
	if got != "ok" {
		t.Errorf("want retried reply, got %q", got)
	}
	if m.calls != 2 {
		t.Errorf("want 2 calls (1 failure + 1 success), got %d", m.calls)
	}
}

func Test_ModelCompleter_ExhaustedRetriesSurface(t *testing.T) {
	t.Parallel()
	m := &stubModel{failures: 10}
	c, err := NewModelCompleter(m, 1)
	if err != nil {
		t.Fatalf("NewModelCompleter: %v", err)
	}

	_, err = c.Complete(context.Background(), "ping")
	if err == nil {
		t.Fatal("want error after exhausted retries")
	}
	if !strings.Contains(err.Error(), "after retries") {
		t.Errorf("error should say retries were exhausted: %v", err)
	}
}
