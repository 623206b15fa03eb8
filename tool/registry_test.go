package tool

import (
	"context"
	"errors"
	"testing"

	"github.com/hupe1980/agentloop/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func calculatorTool() *FunctionTool {
	return NewFunctionTool(
		"calculator",
		"Evaluate a simple arithmetic expression",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"expr": map[string]any{"type": "string"},
			},
			"required": []string{"expr"},
		},
		func(_ context.Context, args map[string]any) (any, error) {
			if args["expr"] == "2+2" {
				return "4", nil
			}
			return nil, errors.New("unsupported expression")
		},
	)
}

func TestRegistry_Register(t *testing.T) {
	reg, err := NewRegistry(calculatorTool())
	require.NoError(t, err)

	_, ok := reg.Lookup("calculator")
	assert.True(t, ok)

	err = reg.Register(calculatorTool())
	require.Error(t, err)

	var dupErr *DuplicateToolError
	require.True(t, errors.As(err, &dupErr))
	assert.Equal(t, "calculator", dupErr.Name)
}

func TestNewRegistry_DuplicateFailsFast(t *testing.T) {
	_, err := NewRegistry(calculatorTool(), calculatorTool())
	var dupErr *DuplicateToolError
	require.True(t, errors.As(err, &dupErr))
}

func TestRegistry_Specs(t *testing.T) {
	echo := NewFunctionTool("echo", "Echo the input", map[string]any{"type": "object"}, nil)
	reg, err := NewRegistry(calculatorTool(), echo)
	require.NoError(t, err)

	specs := reg.Specs()
	require.Len(t, specs, 2)
	// Sorted by name for deterministic gateway requests.
	assert.Equal(t, "calculator", specs[0].Name)
	assert.Equal(t, "echo", specs[1].Name)
	assert.Equal(t, "Evaluate a simple arithmetic expression", specs[0].Description)
	assert.NotNil(t, specs[0].InputSchema)
}

func TestRegistry_ResolveAndExecute(t *testing.T) {
	reg, err := NewRegistry(calculatorTool())
	require.NoError(t, err)

	bound, err := reg.Resolve(core.ToolCall{ID: "c1", Name: "calculator", Arguments: `{"expr":"2+2"}`})
	require.NoError(t, err)
	assert.Equal(t, "c1", bound.Call().ID)

	result, err := reg.Execute(context.Background(), bound)
	require.NoError(t, err)
	assert.Equal(t, "4", result)
}

func TestRegistry_ResolveFailures(t *testing.T) {
	reg, err := NewRegistry(calculatorTool())
	require.NoError(t, err)

	tests := []struct {
		name     string
		call     core.ToolCall
		wantCode string
	}{
		{
			name:     "unknown tool",
			call:     core.ToolCall{ID: "c1", Name: "lookup_weather", Arguments: `{}`},
			wantCode: CodeUnknown,
		},
		{
			name:     "malformed arguments",
			call:     core.ToolCall{ID: "c2", Name: "calculator", Arguments: `{"expr":`},
			wantCode: CodeBadArgs,
		},
		{
			name:     "schema violation",
			call:     core.ToolCall{ID: "c3", Name: "calculator", Arguments: `{"expr":42}`},
			wantCode: CodeValidation,
		},
		{
			name:     "missing required",
			call:     core.ToolCall{ID: "c4", Name: "calculator", Arguments: `{}`},
			wantCode: CodeValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := reg.Resolve(tt.call)
			require.Error(t, err)

			var toolErr *ToolError
			require.True(t, errors.As(err, &toolErr))
			assert.Equal(t, tt.wantCode, toolErr.Code)
		})
	}
}

func TestRegistry_ExecuteWrapsErrors(t *testing.T) {
	reg, err := NewRegistry(calculatorTool())
	require.NoError(t, err)

	bound, err := reg.Resolve(core.ToolCall{ID: "c1", Name: "calculator", Arguments: `{"expr":"9/0"}`})
	require.NoError(t, err)

	_, err = reg.Execute(context.Background(), bound)
	require.Error(t, err)

	var toolErr *ToolError
	require.True(t, errors.As(err, &toolErr))
	assert.Equal(t, CodeExecution, toolErr.Code)
	assert.Contains(t, toolErr.Message, "unsupported expression")
}

func TestRegistry_EmptyArgumentsAllowed(t *testing.T) {
	ping := NewFunctionTool("ping", "Health check", map[string]any{"type": "object"},
		func(_ context.Context, _ map[string]any) (any, error) { return "pong", nil })

	reg, err := NewRegistry(ping)
	require.NoError(t, err)

	bound, err := reg.Resolve(core.ToolCall{ID: "c1", Name: "ping"})
	require.NoError(t, err)

	result, err := reg.Execute(context.Background(), bound)
	require.NoError(t, err)
	assert.Equal(t, "pong", result)
}
