package agentloop

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/gateway"
	"github.com/hupe1980/agentloop/tool"
)

func TestAgent_AskWithTool(t *testing.T) {
	echo := tool.NewFunctionTool("echo", "Echo the input back",
		map[string]any{
			"type":       "object",
			"properties": map[string]any{"text": map[string]any{"type": "string"}},
			"required":   []string{"text"},
		},
		func(_ context.Context, args map[string]any) (any, error) {
			return args["text"], nil
		})

	gw := gateway.NewScripted().
		AddToolCalls(core.ToolCall{ID: "c1", Name: "echo", Arguments: `{"text":"hello"}`}).
		AddText("The tool said: hello")

	a, err := New(gw, func(o *Options) {
		o.Tools = []tool.Tool{echo}
	})
	require.NoError(t, err)

	answer, err := a.Ask(context.Background(), "echo hello for me")
	require.NoError(t, err)
	assert.Equal(t, "The tool said: hello", answer)
	assert.Len(t, a.Log(), 4)
}

func TestAgent_DuplicateToolFailsFast(t *testing.T) {
	dup := tool.NewFunctionTool("same", "d", map[string]any{"type": "object"},
		func(_ context.Context, _ map[string]any) (any, error) { return nil, nil })

	_, err := New(gateway.NewScripted(), func(o *Options) {
		o.Tools = []tool.Tool{dup, dup}
	})
	require.Error(t, err)

	var dupErr *tool.DuplicateToolError
	assert.ErrorAs(t, err, &dupErr)
}

func TestAgent_RegisterToolAfterConstruction(t *testing.T) {
	a, err := New(gateway.NewScripted().AddText("ok"))
	require.NoError(t, err)

	extra := tool.NewFunctionTool("extra", "d", map[string]any{"type": "object"},
		func(_ context.Context, _ map[string]any) (any, error) { return "x", nil })

	require.NoError(t, a.RegisterTool(extra))
	assert.Error(t, a.RegisterTool(extra))
}
