package agent

import (
	"context"
	"sync"
	"time"

	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/gateway"
	"github.com/hupe1980/agentloop/logging"
	"github.com/hupe1980/agentloop/tool"
)

// Defaults applied by NewSession when options are left at their zero value.
const (
	DefaultMaxTurns         = 25
	DefaultMaxParallelTools = 4
	DefaultToolTimeout      = 60 * time.Second
)

// Options configures a Session.
//
// Use functional options with NewSession to override defaults.
type Options struct {
	// MaxTurns bounds model calls per Submit. Must stay finite.
	MaxTurns int
	// Deadline optionally bounds each Submit by wall clock.
	Deadline time.Time
	// Timeout optionally bounds each Submit by elapsed time instead,
	// deriving a fresh deadline when the Submit starts. Ignored when
	// Deadline is set.
	Timeout time.Duration
	// MaxParallelTools caps the fan-out when one model turn requests
	// several independent tool calls.
	MaxParallelTools int
	// ToolTimeout bounds each individual tool execution. A timed-out tool
	// produces an error result in the conversation, not a loop failure.
	ToolTimeout time.Duration
	// Summarize renders the compacted message range into summary text when
	// a context-exceeded gateway failure forces history compaction. The
	// default emits a deterministic elision notice without a model call.
	Summarize func(elided []core.Message) string
	// Logger receives structured loop events. Defaults to NoOp.
	Logger logging.Logger
}

// Session owns the message log for one conversation and drives the agent
// loop against a gateway and a tool registry. A session is driven by at most
// one in-flight Submit at a time; concurrent Submits serialize. The registry
// is read-only and may be shared across sessions.
type Session struct {
	id       string
	log      *core.Log
	gw       gateway.Gateway
	registry *tool.Registry
	opts     Options
	logger   logging.Logger

	runMu    sync.Mutex // serializes Submit
	cancelMu sync.Mutex // guards cancel
	cancel   context.CancelFunc
}

// NewSession creates a conversation session. The registry must be fully
// populated before the session starts; duplicate-tool configuration errors
// fail at registry construction, before any message is processed.
func NewSession(gw gateway.Gateway, registry *tool.Registry, optFns ...func(o *Options)) *Session {
	opts := Options{
		MaxTurns:         DefaultMaxTurns,
		MaxParallelTools: DefaultMaxParallelTools,
		ToolTimeout:      DefaultToolTimeout,
		Logger:           logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxTurns <= 0 {
		opts.MaxTurns = DefaultMaxTurns
	}
	if opts.MaxParallelTools <= 0 {
		opts.MaxParallelTools = DefaultMaxParallelTools
	}
	if opts.Summarize == nil {
		opts.Summarize = defaultSummarize
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	return &Session{
		id:       core.NewID(),
		log:      core.NewLog(),
		gw:       gw,
		registry: registry,
		opts:     opts,
		logger:   opts.Logger,
	}
}

// ID returns the session's unique identifier.
func (s *Session) ID() string { return s.id }

// Log exposes the session's message log. Mutating it outside Submit is the
// embedding application's responsibility (e.g. explicit compaction between
// turns); the loop itself is the only writer while a Submit is in flight.
func (s *Session) Log() *core.Log { return s.log }

// Submit appends the user message and drives the loop until a final answer
// or a terminal failure. Synchronous from the caller's perspective.
//
// Error contract: tool failures, unknown tool names and schema violations
// never surface here; they are fed back into the conversation for the model
// to correct. Submit fails only on termination policy violations, exhausted
// gateway retries, cancellation, or a corrupted log.
func (s *Session) Submit(ctx context.Context, text string) (string, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.setCancel(cancel)
	defer s.setCancel(nil)

	if err := s.log.Append(core.NewUserMessage(text)); err != nil {
		return "", err
	}

	s.logger.Info("loop.start", "session_id", s.id, "max_turns", s.opts.MaxTurns)

	answer, err := s.run(runCtx)
	if err != nil {
		s.logger.Error("loop.failed", "session_id", s.id, "error", err.Error())
		return "", err
	}

	s.logger.Info("loop.done", "session_id", s.id)

	return answer, nil
}

// Cancel aborts an in-flight Submit at its next suspension point. Outstanding
// tool executions are cancelled best-effort; results arriving after
// cancellation are discarded rather than appended. Safe to call at any time.
func (s *Session) Cancel() {
	s.cancelMu.Lock()
	defer s.cancelMu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Session) setCancel(fn context.CancelFunc) {
	s.cancelMu.Lock()
	defer s.cancelMu.Unlock()
	s.cancel = fn
}

func (s *Session) policy(start time.Time) Policy {
	deadline := s.opts.Deadline
	if deadline.IsZero() && s.opts.Timeout > 0 {
		deadline = start.Add(s.opts.Timeout)
	}
	return Policy{MaxTurns: s.opts.MaxTurns, Deadline: deadline}
}
