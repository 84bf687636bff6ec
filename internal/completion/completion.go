// Package completion exposes the single text-completion capability consumed
// by the answer generator and the evaluator. The capability is stateless per
// invocation; callers inject stub implementations in tests.
package completion

import (
	"context"
	"fmt"

	"github.com/cenkalti/backoff/v4"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// Completer turns a prompt into generated text. Implementations must be safe
// to call from multiple goroutines.
type Completer interface {
	// Complete sends the prompt and returns the model's text response.
	Complete(ctx context.Context, prompt string) (string, error)
}

// ModelCompleter adapts an Eino chat model to the Completer capability,
// retrying transient failures with exponential backoff.
type ModelCompleter struct {
	// model is the LLM backend constructed by the provider factory.
	model model.BaseChatModel

	// maxRetries bounds the number of retry attempts after the first failure.
	maxRetries uint64
}

// NewModelCompleter constructs a ModelCompleter. maxRetries defaults to 3
// when zero or negative.
func NewModelCompleter(m model.BaseChatModel, maxRetries int) (*ModelCompleter, error) {
	if m == nil {
		return nil, fmt.Errorf("completion: model must not be nil")
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &ModelCompleter{model: m, maxRetries: uint64(maxRetries)}, nil
}

// Complete sends the prompt as a single user message and returns the model's
// reply content. Failed calls are retried up to maxRetries times.
func (c *ModelCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	var out string
	op := func() error {
		msg, err := c.model.Generate(ctx, []*schema.Message{schema.UserMessage(prompt)})
		if err != nil {
			return err
		}
		out = msg.Content
		return nil
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.maxRetries), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		return "", fmt.Errorf("completion: model call failed after retries: %w", err)
	}
	return out, nil
}
