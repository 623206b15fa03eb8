// Package gateway defines the model gateway boundary: send a conversation
// snapshot plus tool declarations, receive back either a final answer or one
// or more tool call requests. Provider adapters live in sub-packages
// (anthropic, openai); the agent loop only ever sees this contract and the
// error taxonomy below.
package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/agentloop/core"
)

// Reply is the normalized outcome of one model round trip. Exactly one of
// Text (terminal) or ToolCalls (requires another loop iteration) is
// meaningful; IsFinal distinguishes them.
type Reply struct {
	Text      string          // Final natural language answer
	ToolCalls []core.ToolCall // Requested tool invocations, in emission order
	Usage     *Usage          // Optional token accounting
}

// IsFinal reports whether the reply terminates the loop.
func (r *Reply) IsFinal() bool { return len(r.ToolCalls) == 0 }

// Usage captures token usage statistics for a reply.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Info contains metadata about a gateway implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "anthropic", "openai", "scripted", ...
	SupportsTools bool   `json:"supports_tools"`
}

// Gateway is the minimal interface the agent loop requires from a model
// backend. Send must return a Reply with either text or tool calls; errors
// belong to the taxonomy below so the loop can decide between retry,
// compaction and failure.
type Gateway interface {
	Send(ctx context.Context, messages []core.Message, tools []core.ToolSpec) (*Reply, error)

	// Info returns information about the gateway implementation.
	Info() Info
}

// RetryableError marks a transient failure (network blip, rate limit,
// overloaded backend) worth retrying with backoff.
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string { return fmt.Sprintf("retryable gateway error: %v", e.Err) }

func (e *RetryableError) Unwrap() error { return e.Err }

// FatalError marks a failure that no amount of retrying will fix (bad
// credentials, invalid request, exhausted retry budget). Surfaced to the
// caller as a terminal loop failure.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string { return fmt.Sprintf("fatal gateway error: %v", e.Err) }

func (e *FatalError) Unwrap() error { return e.Err }

// ContextExceededError signals that the conversation no longer fits the
// model's context window. The loop compacts history and retries once before
// treating it as fatal.
type ContextExceededError struct {
	Err error
}

func (e *ContextExceededError) Error() string { return fmt.Sprintf("context window exceeded: %v", e.Err) }

func (e *ContextExceededError) Unwrap() error { return e.Err }

// IsRetryable reports whether err is (or wraps) a RetryableError.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

// IsContextExceeded reports whether err is (or wraps) a ContextExceededError.
func IsContextExceeded(err error) bool {
	var ce *ContextExceededError
	return errors.As(err, &ce)
}
