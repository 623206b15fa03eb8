package gateway

import (
	"context"
	"errors"
	"sync"

	"github.com/hupe1980/agentloop/core"
)

// SendRequest records one observed Send invocation for test assertions.
type SendRequest struct {
	Messages []core.Message
	Tools    []core.ToolSpec
}

type scriptStep struct {
	reply *Reply
	err   error
}

// Scripted is an in-memory Gateway that replays a fixed sequence of replies
// and errors. Useful for tests and examples; it also records every request
// it receives. Safe for concurrent use, though the loop drives it serially.
type Scripted struct {
	mu       sync.Mutex
	steps    []scriptStep
	requests []SendRequest
}

// NewScripted constructs an empty scripted gateway. Queue behavior with the
// Add* methods before use.
func NewScripted() *Scripted { return &Scripted{} }

// AddReply queues an arbitrary reply.
func (s *Scripted) AddReply(r *Reply) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps = append(s.steps, scriptStep{reply: r})
	return s
}

// AddText queues a final text answer.
func (s *Scripted) AddText(text string) *Scripted {
	return s.AddReply(&Reply{Text: text})
}

// AddToolCalls queues a reply requesting the given tool invocations.
func (s *Scripted) AddToolCalls(calls ...core.ToolCall) *Scripted {
	return s.AddReply(&Reply{ToolCalls: calls})
}

// AddError queues a Send failure.
func (s *Scripted) AddError(err error) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps = append(s.steps, scriptStep{err: err})
	return s
}

// Send implements Gateway by replaying the next queued step. A drained
// script yields a FatalError so runaway loops fail loudly in tests.
func (s *Scripted) Send(ctx context.Context, messages []core.Message, tools []core.ToolSpec) (*Reply, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	msgCopy := make([]core.Message, len(messages))
	copy(msgCopy, messages)
	toolCopy := make([]core.ToolSpec, len(tools))
	copy(toolCopy, tools)
	s.requests = append(s.requests, SendRequest{Messages: msgCopy, Tools: toolCopy})

	if len(s.steps) == 0 {
		return nil, &FatalError{Err: errors.New("scripted gateway exhausted")}
	}

	step := s.steps[0]
	s.steps = s.steps[1:]
	if step.err != nil {
		return nil, step.err
	}
	return step.reply, nil
}

// Requests returns a copy of all recorded Send invocations.
func (s *Scripted) Requests() []SendRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SendRequest, len(s.requests))
	copy(out, s.requests)
	return out
}

// Calls returns the number of Send invocations observed so far.
func (s *Scripted) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

// Info implements Gateway.
func (s *Scripted) Info() Info {
	return Info{Name: "scripted", Provider: "scripted", SupportsTools: true}
}
