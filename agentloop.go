// Package agentloop provides a high-level façade over the agent loop and its
// supporting packages (message log, tool registry, model gateways). Most
// applications interact with this package by:
//  1. Creating an Agent via New() with a gateway and a set of tools
//  2. Calling Ask() one or more times; each call runs the full
//     model / tool-dispatch loop until the model produces a final answer
//  3. Inspecting the accumulated conversation via Log() when needed
//
// The façade delegates loop orchestration to agent.Session while keeping
// setup concise. FromConfig assembles the same pieces from a YAML config
// file, including provider selection, retry wrapping and MCP tool servers.
package agentloop

import (
	"context"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/hupe1980/agentloop/agent"
	"github.com/hupe1980/agentloop/config"
	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/gateway"
	anthropicgw "github.com/hupe1980/agentloop/gateway/anthropic"
	openaigw "github.com/hupe1980/agentloop/gateway/openai"
	"github.com/hupe1980/agentloop/logging"
	"github.com/hupe1980/agentloop/tool"
	"github.com/hupe1980/agentloop/tool/mcp"
)

// Options configures the Agent façade.
type Options struct {
	// Tools registered into the session's registry.
	Tools []tool.Tool

	// MaxTurns bounds model calls per Ask. Defaults to agent.DefaultMaxTurns.
	MaxTurns int

	// Timeout optionally bounds each Ask by wall clock.
	Timeout time.Duration

	// MaxParallelTools caps concurrent tool executions within one turn.
	MaxParallelTools int

	// ToolTimeout bounds each individual tool execution.
	ToolTimeout time.Duration

	// Summarize overrides how elided history is rendered during compaction.
	Summarize func(elided []core.Message) string

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// Agent is the high-level façade aggregating a session, its registry and any
// MCP clients whose lifetime it owns.
type Agent struct {
	session *agent.Session
	reg     *tool.Registry
	mcp     []*mcp.Client
}

// New creates an Agent around the given gateway. Tool name collisions are
// reported immediately rather than at dispatch time.
func New(gw gateway.Gateway, optFns ...func(o *Options)) (*Agent, error) {
	var opts Options
	for _, fn := range optFns {
		fn(&opts)
	}

	reg, err := tool.NewRegistry(opts.Tools...)
	if err != nil {
		return nil, err
	}

	sess := agent.NewSession(gw, reg, func(o *agent.Options) {
		if opts.MaxTurns > 0 {
			o.MaxTurns = opts.MaxTurns
		}
		if opts.Timeout > 0 {
			o.Timeout = opts.Timeout
		}
		if opts.MaxParallelTools > 0 {
			o.MaxParallelTools = opts.MaxParallelTools
		}
		if opts.ToolTimeout > 0 {
			o.ToolTimeout = opts.ToolTimeout
		}
		if opts.Summarize != nil {
			o.Summarize = opts.Summarize
		}
		if opts.Logger != nil {
			o.Logger = opts.Logger
		}
	})

	return &Agent{session: sess, reg: reg}, nil
}

// FromConfig assembles an Agent from a loaded configuration: provider
// selection, retry wrapping, logging and MCP tool servers. Additional
// in-process tools can still be passed through optFns.
func FromConfig(ctx context.Context, cfg *config.Config, optFns ...func(o *Options)) (*Agent, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := logging.New(&logging.Config{
		Level:  logging.ParseLevel(cfg.Logging.Level),
		Format: cfg.Logging.Format,
	})

	var inner gateway.Gateway
	switch cfg.Gateway.Provider {
	case config.ProviderAnthropic:
		inner = anthropicgw.New(func(o *anthropicgw.Options) {
			if cfg.Gateway.Model != "" {
				o.Model = anthropic.Model(cfg.Gateway.Model)
			}
			if cfg.Gateway.Temperature > 0 {
				o.Temperature = cfg.Gateway.Temperature
			}
			if cfg.Gateway.MaxTokens > 0 {
				o.MaxTokens = cfg.Gateway.MaxTokens
			}
			o.System = cfg.Gateway.SystemPrompt
		})
	case config.ProviderOpenAI:
		inner = openaigw.New(func(o *openaigw.Options) {
			if cfg.Gateway.Model != "" {
				o.Model = cfg.Gateway.Model
			}
			if cfg.Gateway.Temperature > 0 {
				o.Temperature = cfg.Gateway.Temperature
			}
			if cfg.Gateway.MaxTokens > 0 {
				o.MaxCompletionTokens = cfg.Gateway.MaxTokens
			}
			o.System = cfg.Gateway.SystemPrompt
		})
	default:
		return nil, fmt.Errorf("unknown gateway provider %q", cfg.Gateway.Provider)
	}

	gw := gateway.NewRetrying(inner, func(o *gateway.RetryOptions) {
		o.MaxRetries = cfg.Retry.MaxRetries
		o.InitialInterval = cfg.Retry.InitialInterval.Std()
		o.MaxInterval = cfg.Retry.MaxInterval.Std()
		o.Logger = logger
	})

	fromCfg := func(o *Options) {
		if cfg.Loop.MaxTurns > 0 {
			o.MaxTurns = cfg.Loop.MaxTurns
		}
		if cfg.Loop.Timeout.Std() > 0 {
			o.Timeout = cfg.Loop.Timeout.Std()
		}
		if cfg.Loop.MaxParallelTools > 0 {
			o.MaxParallelTools = cfg.Loop.MaxParallelTools
		}
		if cfg.Loop.ToolTimeout.Std() > 0 {
			o.ToolTimeout = cfg.Loop.ToolTimeout.Std()
		}
		o.Logger = logger
	}

	// Config supplies the baseline; explicit options override it.
	a, err := New(gw, append([]func(o *Options){fromCfg}, optFns...)...)
	if err != nil {
		return nil, err
	}

	for _, srv := range cfg.MCPServers {
		client, err := mcp.Connect(ctx, srv.Name, srv.Command, srv.Arguments...)
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("connect mcp server %s: %w", srv.Name, err)
		}
		a.mcp = append(a.mcp, client)
		for _, t := range client.Tools() {
			if err := a.reg.Register(t); err != nil {
				_ = a.Close()
				return nil, err
			}
		}
	}

	return a, nil
}

// Ask submits user text and blocks until the loop produces a final answer or
// fails. Calls serialize on the underlying session.
func (a *Agent) Ask(ctx context.Context, text string) (string, error) {
	return a.session.Submit(ctx, text)
}

// Cancel aborts an in-flight Ask, if any.
func (a *Agent) Cancel() { a.session.Cancel() }

// Log returns a snapshot of the conversation so far.
func (a *Agent) Log() []core.Message { return a.session.Log().Snapshot() }

// Session exposes the underlying session for advanced use.
func (a *Agent) Session() *agent.Session { return a.session }

// RegisterTool adds a tool after construction. Fails on name collision.
func (a *Agent) RegisterTool(t tool.Tool) error { return a.reg.Register(t) }

// Close shuts down any MCP server subprocesses the agent owns.
func (a *Agent) Close() error {
	var firstErr error
	for _, c := range a.mcp {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	a.mcp = nil
	return firstErr
}
