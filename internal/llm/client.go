// Package llm wraps the chat-completion providers used to phrase correction
// suggestions for validation conflicts.
package llm

import (
	"context"
)

type LLMClient interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ClientFunc adapts a plain function to LLMClient.
type ClientFunc func(ctx context.Context, prompt string) (string, error)

func (f ClientFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}
