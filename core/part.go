package core

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Role identifies the author of a conversation turn.
type Role string

const (
	// RoleUser marks a turn authored by the embedding application's user.
	RoleUser Role = "user"
	// RoleAssistant marks a model-authored turn (text and/or tool calls).
	RoleAssistant Role = "assistant"
	// RoleTool marks a turn carrying tool execution results.
	RoleTool Role = "tool"
)

// Part represents a polymorphic segment of a message. Concrete part types
// implement the unexported isPart marker enabling a closed set.
type Part interface{ isPart() }

// TextPart is a plain text content segment.
type TextPart struct {
	Text string // Plain UTF-8 text
}

// isPart implements the Part interface for TextPart.
func (TextPart) isPart() {}

// ToolCall is a model-issued request to invoke one named tool. Arguments
// travel as the raw JSON string emitted by the provider; they are parsed and
// validated at resolve time, never here.
type ToolCall struct {
	ID        string `json:"id"`                  // Correlates the call with its result
	Name      string `json:"name"`                // Tool name looked up in the registry
	Arguments string `json:"arguments,omitempty"` // Serialized JSON argument object
}

// ToolCallPart wraps a ToolCall as a content part of an assistant message.
type ToolCallPart struct {
	Call ToolCall
}

// isPart implements the Part interface for ToolCallPart.
func (ToolCallPart) isPart() {}

// ToolResult is the outcome of a tool call. Exactly one of Content or Error
// is meaningful; a populated Error means the call failed in a way the model
// is expected to recover from.
type ToolResult struct {
	CallID  string `json:"call_id"`           // Matches the originating ToolCall.ID
	Name    string `json:"name"`              // Tool name, echoed for model context
	Content any    `json:"content,omitempty"` // Successful payload (any JSON-serializable shape)
	Error   string `json:"error,omitempty"`   // Populated on failure
}

// ToolResultPart wraps a ToolResult as a content part of a tool message.
type ToolResultPart struct {
	Result ToolResult
}

// isPart implements the Part interface for ToolResultPart.
func (ToolResultPart) isPart() {}

// ToolSpec is the gateway-facing view of a registered tool: name, natural
// language description and argument schema. The execute capability never
// crosses the gateway boundary.
type ToolSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"` // Minimal JSON Schema object
}

// Message is one turn in the conversation: a role plus ordered parts.
// After being appended to a Log it should be treated as immutable.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Parts     []Part    `json:"parts"`
	Timestamp time.Time `json:"timestamp"`
}

// NewMessage creates an empty message with a fresh ID for the given role.
func NewMessage(role Role) Message {
	return Message{ID: NewID(), Role: role, Timestamp: time.Now().UTC()}
}

// NewUserMessage creates a user turn with a single text part.
func NewUserMessage(text string) Message {
	m := NewMessage(RoleUser)
	m.Parts = []Part{TextPart{Text: text}}
	return m
}

// NewAssistantMessage creates an assistant turn with a single text part.
func NewAssistantMessage(text string) Message {
	m := NewMessage(RoleAssistant)
	m.Parts = []Part{TextPart{Text: text}}
	return m
}

// NewToolCallMessage creates an assistant turn carrying the given tool call
// requests in emission order.
func NewToolCallMessage(calls ...ToolCall) Message {
	m := NewMessage(RoleAssistant)
	for _, c := range calls {
		m.Parts = append(m.Parts, ToolCallPart{Call: c})
	}
	return m
}

// NewToolResultMessage records the completion result (or error) of a
// previously emitted tool call. If err is non-nil its message is copied into
// the result's Error field and Content is dropped.
func NewToolResultMessage(callID, name string, content any, err error) Message {
	m := NewMessage(RoleTool)
	r := ToolResult{CallID: callID, Name: name, Content: content}
	if err != nil {
		r.Content = nil
		r.Error = err.Error()
	}
	m.Parts = []Part{ToolResultPart{Result: r}}
	return m
}

// NewID generates a new unique identifier for messages and tool calls.
func NewID() string { return uuid.NewString() }

// ToolCalls returns any ToolCall parts contained in the message preserving
// their original order.
func (m Message) ToolCalls() []ToolCall {
	var calls []ToolCall
	for _, p := range m.Parts {
		if tc, ok := p.(ToolCallPart); ok {
			calls = append(calls, tc.Call)
		}
	}
	return calls
}

// ToolResults returns any ToolResult parts contained in the message
// preserving their original order.
func (m Message) ToolResults() []ToolResult {
	var results []ToolResult
	for _, p := range m.Parts {
		if tr, ok := p.(ToolResultPart); ok {
			results = append(results, tr.Result)
		}
	}
	return results
}

// Text concatenates the message's text parts.
func (m Message) Text() string {
	var out string
	for _, p := range m.Parts {
		if tp, ok := p.(TextPart); ok {
			out += tp.Text
		}
	}
	return out
}

// ResultText renders a tool result payload as display text. Strings pass
// through; anything else is JSON encoded so provider adapters have a stable
// wire form.
func (r ToolResult) ResultText() string {
	if r.Error != "" {
		return r.Error
	}
	if s, ok := r.Content.(string); ok {
		return s
	}
	b, err := json.Marshal(r.Content)
	if err != nil {
		return ""
	}
	return string(b)
}
