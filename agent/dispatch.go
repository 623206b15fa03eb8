package agent

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/tool"
)

// dispatchToolCalls executes every call from one model turn and returns one
// result message per call, in emission order regardless of completion order.
// Calls run concurrently up to MaxParallelTools; the caller appends results
// afterwards, keeping the log under single-writer discipline.
//
// Tool failures of every kind (unknown name, bad arguments, execution error,
// timeout, panic) land inside the returned messages so the model can
// self-correct. The only error returned is context cancellation, in which
// case completed results are discarded.
func (s *Session) dispatchToolCalls(ctx context.Context, calls []core.ToolCall) ([]core.Message, error) {
	n := len(calls)
	if n == 0 {
		return nil, nil
	}

	// Fast path: single call, execute inline.
	if n == 1 {
		result := s.executeCall(ctx, calls[0])
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return []core.Message{result}, nil
	}

	maxPar := s.opts.MaxParallelTools
	if maxPar > n {
		maxPar = n
	}

	results := make([]core.Message, n)
	sem := make(chan struct{}, maxPar)
	var wg sync.WaitGroup

	batchStart := time.Now()
	for i := range calls {
		if ctx.Err() != nil { // pre-check cancellation
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int, call core.ToolCall) {
			defer wg.Done()
			defer func() { <-sem }()
			results[idx] = s.executeCall(ctx, call)
		}(i, calls[i])
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.logger.Debug(
		"tool.batch.complete",
		"session_id", s.id,
		"count", n,
		"parallelism", maxPar,
		"duration_ms", time.Since(batchStart).Milliseconds(),
	)

	return results, nil
}

// executeCall resolves and runs one tool call, converting every failure into
// an error-carrying result message. Never panics; a panicking tool is
// recovered and reported into the conversation.
func (s *Session) executeCall(ctx context.Context, call core.ToolCall) core.Message {
	s.logger.Debug("tool.call.start", "session_id", s.id, "tool", call.Name, "call_id", call.ID)

	callCtx := ctx
	if s.opts.ToolTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.opts.ToolTimeout)
		defer cancel()
	}

	start := time.Now()
	var (
		result any
		err    error
	)
	func() { // panic safety
		defer func() {
			if r := recover(); r != nil {
				err = tool.NewToolError(call.Name, fmt.Sprintf("panic: %v", r), tool.CodeExecution)
				s.logger.Error("tool.call.panic", "tool", call.Name, "recover", r, "stack", string(debug.Stack()))
			}
		}()

		var bound *tool.BoundCall
		bound, err = s.registry.Resolve(call)
		if err != nil {
			return
		}
		result, err = s.registry.Execute(callCtx, bound)
	}()

	if err == nil && callCtx.Err() != nil && ctx.Err() == nil {
		err = tool.NewToolError(call.Name, fmt.Sprintf("timed out after %s", s.opts.ToolTimeout), tool.CodeExecution)
	}

	s.logger.Info(
		"tool.call.executed",
		"session_id", s.id,
		"tool", call.Name,
		"call_id", call.ID,
		"duration_ms", time.Since(start).Milliseconds(),
		"error", err != nil,
	)

	return core.NewToolResultMessage(call.ID, call.Name, result, err)
}
