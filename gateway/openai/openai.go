// Package openai adapts the OpenAI Chat Completions API to the gateway
// contract. It converts the normalized message log into the SDK's chat
// message format (attaching tool results to their originating calls) and
// maps completions back into gateway replies.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/gateway"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Options configures the OpenAI gateway adapter. Fields mirror a minimal
// subset of Chat Completion parameters; extend via functional options.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
	APIKey              string
	// System is an optional system prompt prepended to every request.
	System string
}

// Gateway wraps the OpenAI Chat Completions API behind the gateway.Gateway interface.
type Gateway struct {
	client *openai.Client
	opts   Options
}

// New creates a new OpenAI gateway using the official client.
func New(optFns ...func(o *Options)) *Gateway {
	opts := defaultOptions(optFns...)

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	client := openai.NewClient(clientOpts...)

	return &Gateway{client: &client, opts: opts}
}

// NewFromClient creates a new OpenAI gateway from an existing client.
func NewFromClient(client *openai.Client, optFns ...func(o *Options)) *Gateway {
	return &Gateway{client: client, opts: defaultOptions(optFns...)}
}

func defaultOptions(optFns ...func(o *Options)) Options {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return opts
}

// Send implements gateway.Gateway for the OpenAI Chat Completions API.
func (g *Gateway) Send(ctx context.Context, messages []core.Message, tools []core.ToolSpec) (*gateway.Reply, error) {
	params := openai.ChatCompletionNewParams{
		Messages:            g.buildMessages(messages),
		Model:               g.opts.Model,
		Temperature:         openai.Float(g.opts.Temperature),
		MaxCompletionTokens: openai.Int(g.opts.MaxCompletionTokens),
	}
	if len(tools) > 0 {
		params.Tools = buildTools(tools)
	}

	resp, err := g.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, classify(err)
	}
	if len(resp.Choices) == 0 {
		return nil, &gateway.FatalError{Err: fmt.Errorf("no choices returned")}
	}

	choice := resp.Choices[0]
	reply := &gateway.Reply{Text: choice.Message.Content}
	for _, tc := range choice.Message.ToolCalls {
		reply.ToolCalls = append(reply.ToolCalls, core.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}

	reply.Usage = &gateway.Usage{
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
		TotalTokens:      int(resp.Usage.TotalTokens),
	}

	return reply, nil
}

// buildMessages converts the log snapshot into OpenAI chat messages. Tool
// result turns become tool messages referencing their call ids, directly
// after the assistant message that requested them.
func (g *Gateway) buildMessages(messages []core.Message) []openai.ChatCompletionMessageParamUnion {
	var out []openai.ChatCompletionMessageParamUnion

	if g.opts.System != "" {
		out = append(out, openai.SystemMessage(g.opts.System))
	}

	for _, m := range messages {
		switch m.Role {
		case core.RoleUser:
			out = append(out, openai.UserMessage(m.Text()))
		case core.RoleAssistant:
			toolCalls := extractToolCalls(m)
			if len(toolCalls) == 0 {
				out = append(out, openai.AssistantMessage(m.Text()))
				continue
			}
			out = append(out, openai.ChatCompletionMessageParamUnion{
				OfAssistant: &openai.ChatCompletionAssistantMessageParam{
					Role:      "assistant",
					ToolCalls: toolCalls,
				},
			})
		case core.RoleTool:
			for _, r := range m.ToolResults() {
				out = append(out, openai.ToolMessage(r.ResultText(), r.CallID))
			}
		}
	}

	return out
}

// extractToolCalls converts tool call parts into OpenAI formatted tool calls.
func extractToolCalls(m core.Message) []openai.ChatCompletionMessageToolCallParam {
	var toolCalls []openai.ChatCompletionMessageToolCallParam
	for _, c := range m.ToolCalls() {
		toolCalls = append(toolCalls, openai.ChatCompletionMessageToolCallParam{
			ID:   c.ID,
			Type: "function",
			Function: openai.ChatCompletionMessageToolCallFunctionParam{
				Name:      c.Name,
				Arguments: c.Arguments,
			},
		})
	}
	return toolCalls
}

// buildTools converts registry tool specs to OpenAI tool declarations.
func buildTools(tools []core.ToolSpec) []openai.ChatCompletionToolParam {
	out := make([]openai.ChatCompletionToolParam, len(tools))
	for i, spec := range tools {
		out[i] = openai.ChatCompletionToolParam{
			Type: "function",
			Function: openai.FunctionDefinitionParam{
				Name:        spec.Name,
				Description: openai.String(spec.Description),
				Parameters:  spec.InputSchema,
			},
		}
	}
	return out
}

// classify maps SDK failures onto the gateway error taxonomy.
func classify(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusTooManyRequests,
			apiErr.StatusCode == http.StatusRequestTimeout,
			apiErr.StatusCode >= http.StatusInternalServerError:
			return &gateway.RetryableError{Err: err}
		case apiErr.StatusCode == http.StatusBadRequest &&
			strings.Contains(strings.ToLower(err.Error()), "context_length_exceeded"):
			return &gateway.ContextExceededError{Err: err}
		}
		return &gateway.FatalError{Err: fmt.Errorf("openai api error: %w", err)}
	}
	// No HTTP response at all: treat as a transient transport failure.
	return &gateway.RetryableError{Err: err}
}

// Info returns metadata describing this OpenAI gateway implementation.
func (g *Gateway) Info() gateway.Info {
	return gateway.Info{
		Name:          g.opts.Model,
		Provider:      "openai",
		SupportsTools: true,
	}
}
