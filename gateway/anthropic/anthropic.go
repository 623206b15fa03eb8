// Package anthropic adapts the Anthropic Messages API to the gateway
// contract, including tool declarations and tool call / tool result pairing.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"
	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/gateway"
)

// Options configures the Anthropic gateway adapter.
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
	// System is an optional system prompt prepended to every request.
	System string
}

// Gateway wraps the Anthropic Messages API behind the gateway.Gateway interface.
type Gateway struct {
	client *anthropic.Client
	opts   Options
}

// New creates a new Anthropic gateway using the official client.
func New(optFns ...func(o *Options)) *Gateway {
	opts := defaultOptions(optFns...)

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	client := anthropic.NewClient(clientOpts...)

	return &Gateway{client: &client, opts: opts}
}

// NewFromClient creates a new Anthropic gateway from an existing client.
func NewFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Gateway {
	return &Gateway{client: client, opts: defaultOptions(optFns...)}
}

func defaultOptions(optFns ...func(o *Options)) Options {
	opts := Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return opts
}

// Send implements gateway.Gateway for the Anthropic Messages API.
func (g *Gateway) Send(ctx context.Context, messages []core.Message, tools []core.ToolSpec) (*gateway.Reply, error) {
	params := anthropic.MessageNewParams{
		Model:       g.opts.Model,
		Messages:    buildMessages(messages),
		MaxTokens:   g.opts.MaxTokens,
		Temperature: anthropic.Float(g.opts.Temperature),
	}

	if g.opts.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: g.opts.System}}
	}

	if len(tools) > 0 {
		params.Tools = buildTools(tools)
	}

	resp, err := g.client.Messages.New(ctx, params)
	if err != nil {
		return nil, classify(err)
	}

	reply := &gateway.Reply{}
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			reply.Text += block.AsText().Text
		case "tool_use":
			toolBlock := block.AsToolUse()
			args := ""
			if toolBlock.Input != nil {
				if argsBytes, err := json.Marshal(toolBlock.Input); err == nil {
					args = string(argsBytes)
				}
			}
			reply.ToolCalls = append(reply.ToolCalls, core.ToolCall{
				ID:        toolBlock.ID,
				Name:      toolBlock.Name,
				Arguments: args,
			})
		}
	}

	reply.Usage = &gateway.Usage{
		PromptTokens:     int(resp.Usage.InputTokens),
		CompletionTokens: int(resp.Usage.OutputTokens),
		TotalTokens:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
	}

	return reply, nil
}

// buildMessages converts the log snapshot to Anthropic message format. Tool
// result turns become user messages carrying tool_result blocks, which is
// how the Messages API pairs results with earlier tool_use blocks.
func buildMessages(messages []core.Message) []anthropic.MessageParam {
	var out []anthropic.MessageParam

	for _, m := range messages {
		switch m.Role {
		case core.RoleUser:
			if content := textBlocks(m); len(content) > 0 {
				out = append(out, anthropic.NewUserMessage(content...))
			}
		case core.RoleAssistant:
			var content []anthropic.ContentBlockParamUnion
			for _, p := range m.Parts {
				switch part := p.(type) {
				case core.TextPart:
					if part.Text != "" {
						content = append(content, anthropic.NewTextBlock(part.Text))
					}
				case core.ToolCallPart:
					var input any
					if part.Call.Arguments != "" {
						if err := json.Unmarshal([]byte(part.Call.Arguments), &input); err != nil {
							input = part.Call.Arguments // fallback to raw string
						}
					}
					content = append(content, anthropic.NewToolUseBlock(part.Call.ID, input, part.Call.Name))
				}
			}
			if len(content) > 0 {
				out = append(out, anthropic.NewAssistantMessage(content...))
			}
		case core.RoleTool:
			var content []anthropic.ContentBlockParamUnion
			for _, r := range m.ToolResults() {
				content = append(content, anthropic.NewToolResultBlock(r.CallID, r.ResultText(), r.Error != ""))
			}
			if len(content) > 0 {
				out = append(out, anthropic.NewUserMessage(content...))
			}
		}
	}

	return out
}

func textBlocks(m core.Message) []anthropic.ContentBlockParamUnion {
	var content []anthropic.ContentBlockParamUnion
	for _, p := range m.Parts {
		if tp, ok := p.(core.TextPart); ok && tp.Text != "" {
			content = append(content, anthropic.NewTextBlock(tp.Text))
		}
	}
	return content
}

// buildTools converts registry tool specs to Anthropic tool declarations.
func buildTools(tools []core.ToolSpec) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, len(tools))

	for i, spec := range tools {
		inputSchema := anthropic.ToolInputSchemaParam{
			Type: constant.Object("object"),
		}
		if spec.InputSchema != nil {
			if properties, ok := spec.InputSchema["properties"]; ok {
				inputSchema.Properties = properties
			}
			switch required := spec.InputSchema["required"].(type) {
			case []string:
				inputSchema.Required = required
			case []any:
				for _, r := range required {
					if s, ok := r.(string); ok {
						inputSchema.Required = append(inputSchema.Required, s)
					}
				}
			}
		}
		out[i] = anthropic.ToolUnionParamOfTool(inputSchema, spec.Name)
	}

	return out
}

// classify maps SDK failures onto the gateway error taxonomy.
func classify(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusTooManyRequests,
			apiErr.StatusCode == http.StatusRequestTimeout,
			apiErr.StatusCode >= http.StatusInternalServerError:
			return &gateway.RetryableError{Err: err}
		case apiErr.StatusCode == http.StatusBadRequest &&
			strings.Contains(strings.ToLower(err.Error()), "prompt is too long"):
			return &gateway.ContextExceededError{Err: err}
		}
		return &gateway.FatalError{Err: fmt.Errorf("anthropic api error: %w", err)}
	}
	// No HTTP response at all: treat as a transient transport failure.
	return &gateway.RetryableError{Err: err}
}

// Info returns metadata describing this Anthropic gateway implementation.
func (g *Gateway) Info() gateway.Info {
	return gateway.Info{
		Name:          string(g.opts.Model),
		Provider:      "anthropic",
		SupportsTools: true,
	}
}
