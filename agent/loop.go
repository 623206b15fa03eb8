package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/gateway"
)

// state enumerates the loop's phases. Terminal states are reached by
// returning from run; they exist as values for logging clarity.
type state string

const (
	stateAwaitingModel    state = "awaiting_model"
	stateDispatchingTools state = "dispatching_tools"
)

// run drives the state machine: ask the gateway what to do next, execute
// any requested tools, feed results back, repeat until a final answer or a
// terminal failure.
func (s *Session) run(ctx context.Context) (string, error) {
	turns := 0
	st := stateAwaitingModel
	pol := s.policy(time.Now())
	var pending []core.ToolCall

	for {
		select {
		case <-ctx.Done():
			return "", &TerminationError{Reason: ReasonCancelled, Err: ctx.Err()}
		default:
		}

		switch st {
		case stateAwaitingModel:
			if termErr := pol.Check(turns, time.Now()); termErr != nil {
				return "", termErr
			}

			reply, err := s.callGateway(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return "", &TerminationError{Reason: ReasonCancelled, Err: ctx.Err()}
				}
				return "", err
			}
			turns++

			if reply.IsFinal() {
				final := core.NewAssistantMessage(reply.Text)
				if err := s.log.Append(final); err != nil {
					return "", err
				}
				s.logger.Info("loop.final", "session_id", s.id, "turns", turns)
				return reply.Text, nil
			}

			s.logger.Debug("loop.tool_calls", "session_id", s.id, "turn", turns, "count", len(reply.ToolCalls))
			if err := s.log.Append(core.NewToolCallMessage(reply.ToolCalls...)); err != nil {
				return "", err
			}
			pending = reply.ToolCalls
			st = stateDispatchingTools

		case stateDispatchingTools:
			results, err := s.dispatchToolCalls(ctx, pending)
			if err != nil {
				// Cancelled mid-dispatch: discard whatever completed.
				return "", &TerminationError{Reason: ReasonCancelled, Err: err}
			}
			for _, m := range results {
				if err := s.log.Append(m); err != nil {
					return "", err
				}
			}
			pending = nil
			st = stateAwaitingModel
		}
	}
}

// callGateway performs one model round trip over a log snapshot. On a
// context-window failure it compacts history and retries exactly once
// before surfacing the error.
func (s *Session) callGateway(ctx context.Context) (*gateway.Reply, error) {
	specs := s.registry.Specs()

	reply, err := s.gw.Send(ctx, s.log.Snapshot(), specs)
	if err == nil {
		return reply, nil
	}
	if !gateway.IsContextExceeded(err) {
		return nil, err
	}

	if compErr := s.compactHistory(); compErr != nil {
		return nil, fmt.Errorf("context window exceeded and compaction failed (%v): %w", compErr, err)
	}

	return s.gw.Send(ctx, s.log.Snapshot(), specs)
}

// compactHistory replaces the oldest compactable prefix of the log with a
// single summary message. Preferred target is roughly the first half; if no
// pair-safe boundary exists there, the search widens to everything but the
// newest message.
func (s *Session) compactHistory() error {
	n := s.log.Len()
	if n < 2 {
		return fmt.Errorf("history too short to compact (%d messages)", n)
	}

	end := s.log.CompactableEnd(n / 2)
	if end < 0 {
		end = s.log.CompactableEnd(n - 1)
	}
	if end < 0 {
		return fmt.Errorf("no compactable prefix in %d messages", n)
	}

	elided := s.log.Snapshot()[:end+1]
	summary := core.NewAssistantMessage(s.opts.Summarize(elided))

	if err := s.log.Compact(0, end, summary); err != nil {
		return err
	}

	s.logger.Info("loop.compacted", "session_id", s.id, "elided", len(elided), "remaining", s.log.Len())

	return nil
}

// defaultSummarize produces a deterministic elision notice. Applications
// wanting semantic summaries plug in their own function (typically another
// model call) via Options.Summarize.
func defaultSummarize(elided []core.Message) string {
	return fmt.Sprintf("[%d earlier messages were removed to fit the model context window]", len(elided))
}
