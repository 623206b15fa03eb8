// Package tool implements the function calling subsystem that lets the agent
// loop invoke structured capabilities (APIs, computations, side effects) with
// schema validated arguments and uniform error handling. The Registry is the
// only lookup path from a model-issued tool call to executable code.
package tool

import (
	"context"
	"fmt"

	"github.com/hupe1980/agentloop/internal/util"
)

// Tool is a named capability the model may invoke.
//
// Implementations should:
//   - Provide clear, descriptive names (snake_case recommended) and descriptions
//   - Declare a minimal JSON schema for their arguments
//   - Be safe for concurrent use; calls in one model turn may run in parallel
//   - Respect ctx cancellation and deadlines
type Tool interface {
	// Name returns the unique identifier for this tool.
	Name() string

	// Description returns the natural language description given to the
	// model so it can decide when to use the tool. Never validated.
	Description() string

	// InputSchema returns a JSON schema object describing the accepted
	// arguments. Used for validation before execution and advertised to
	// the model through the gateway.
	InputSchema() map[string]any

	// Call executes the tool with already-validated arguments. The returned
	// value must be JSON-serializable.
	Call(ctx context.Context, args map[string]any) (any, error)
}

// ValidationError reports a schema violation in model-supplied arguments.
type ValidationError = util.ValidationError

// Error codes carried by ToolError.
const (
	CodeValidation = "VALIDATION_ERROR"
	CodeExecution  = "EXECUTION_ERROR"
	CodeUnknown    = "UNKNOWN_TOOL"
	CodeBadArgs    = "MALFORMED_ARGUMENTS"
)

// ToolError represents a failure during tool resolution or execution. These
// errors are model-correctable: the loop records them as tool results in the
// conversation instead of surfacing them to the caller.
type ToolError struct {
	Tool    string `json:"tool"`              // Name of the tool that failed
	Message string `json:"message"`           // Error message
	Code    string `json:"code"`              // Error code for categorization
	Details any    `json:"details,omitempty"` // Additional error details
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{Tool: tool, Message: message, Code: code}
}
