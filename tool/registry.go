package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/internal/util"
)

// DuplicateToolError reports a second registration under an existing name.
// This is a configuration error: it fails session construction, never the
// running loop.
type DuplicateToolError struct {
	Name string
}

func (e *DuplicateToolError) Error() string {
	return fmt.Sprintf("tool %q is already registered", e.Name)
}

// Registry maps tool names to definitions and performs argument validation.
// It is populated before a session starts and read-only afterwards, which
// makes it safe to share across concurrently executing tool calls and across
// sessions.
type Registry struct {
	tools map[string]Tool
}

// NewRegistry creates a registry pre-populated with the given tools.
// Registration order is irrelevant; names must be unique.
func NewRegistry(tools ...Tool) (*Registry, error) {
	r := &Registry{tools: map[string]Tool{}}
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a tool definition. Fails with *DuplicateToolError if the
// name is already present.
func (r *Registry) Register(t Tool) error {
	if _, exists := r.tools[t.Name()]; exists {
		return &DuplicateToolError{Name: t.Name()}
	}
	r.tools[t.Name()] = t
	return nil
}

// Lookup returns the tool registered under name, if any.
func (r *Registry) Lookup(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Specs returns gateway-facing metadata for every registered tool, sorted by
// name for deterministic requests. The execute capability is deliberately
// absent from the returned values.
func (r *Registry) Specs() []core.ToolSpec {
	specs := make([]core.ToolSpec, 0, len(r.tools))
	for _, t := range r.tools {
		specs = append(specs, core.ToolSpec{
			Name:        t.Name(),
			Description: t.Description(),
			InputSchema: t.InputSchema(),
		})
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })
	return specs
}

// BoundCall is a resolved, ready-to-execute tool call: the tool definition
// plus parsed and schema-validated arguments. Consumed exactly once.
type BoundCall struct {
	tool Tool
	call core.ToolCall
	args map[string]any
}

// Call returns the originating tool call.
func (b *BoundCall) Call() core.ToolCall { return b.call }

// Resolve parses the call's raw JSON arguments, validates them against the
// tool's declared schema and returns a bound call. Failure modes, all
// returned as *ToolError so the loop can feed them back to the model:
//
//	unknown tool name  -> Code CodeUnknown
//	malformed JSON     -> Code CodeBadArgs
//	schema violation   -> Code CodeValidation
func (r *Registry) Resolve(call core.ToolCall) (*BoundCall, error) {
	t, ok := r.tools[call.Name]
	if !ok {
		return nil, &ToolError{
			Tool:    call.Name,
			Message: fmt.Sprintf("unknown tool: %s", call.Name),
			Code:    CodeUnknown,
		}
	}

	args := map[string]any{}
	if call.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			return nil, &ToolError{
				Tool:    call.Name,
				Message: fmt.Sprintf("arguments are not a JSON object: %v", err),
				Code:    CodeBadArgs,
			}
		}
	}

	if err := util.ValidateArgs(args, t.InputSchema()); err != nil {
		return nil, &ToolError{
			Tool:    call.Name,
			Message: fmt.Sprintf("argument validation failed: %v", err),
			Code:    CodeValidation,
			Details: err,
		}
	}

	return &BoundCall{tool: t, call: call, args: args}, nil
}

// Execute invokes the bound call's capability. Errors come back as
// *ToolError (Code CodeExecution unless the tool supplied its own). The
// registry itself performs no result bookkeeping; appending the outcome to
// the conversation is the loop's job, which keeps execution idempotent from
// the registry's point of view.
func (r *Registry) Execute(ctx context.Context, bound *BoundCall) (any, error) {
	result, err := bound.tool.Call(ctx, bound.args)
	if err != nil {
		if toolErr, ok := err.(*ToolError); ok {
			return nil, toolErr
		}
		return nil, &ToolError{Tool: bound.call.Name, Message: err.Error(), Code: CodeExecution}
	}
	return result, nil
}
