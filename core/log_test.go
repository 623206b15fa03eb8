package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLog_AppendAndSnapshot(t *testing.T) {
	log := NewLog()

	require.NoError(t, log.Append(NewUserMessage("hello")))
	require.NoError(t, log.Append(NewAssistantMessage("hi there")))

	snap := log.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, RoleUser, snap[0].Role)
	assert.Equal(t, "hello", snap[0].Text())
	assert.Equal(t, RoleAssistant, snap[1].Role)

	// Snapshot is a point-in-time copy: later appends must not leak in.
	require.NoError(t, log.Append(NewUserMessage("and more")))
	assert.Len(t, snap, 2)
	assert.Equal(t, 3, log.Len())
}

func TestLog_ToolCallPairing(t *testing.T) {
	log := NewLog()

	call := ToolCall{ID: "call-1", Name: "calculator", Arguments: `{"expr":"2+2"}`}
	require.NoError(t, log.Append(NewUserMessage("what is 2+2?")))
	require.NoError(t, log.Append(NewToolCallMessage(call)))

	assert.False(t, log.Resolved())
	assert.Equal(t, []string{"call-1"}, log.OpenCalls())

	require.NoError(t, log.Append(NewToolResultMessage("call-1", "calculator", "4", nil)))
	assert.True(t, log.Resolved())
	assert.Empty(t, log.OpenCalls())
}

func TestLog_AppendRejectsUnmatchedResult(t *testing.T) {
	log := NewLog()
	require.NoError(t, log.Append(NewUserMessage("hi")))

	err := log.Append(NewToolResultMessage("ghost", "calculator", "4", nil))
	require.Error(t, err)

	var stateErr *InvalidStateError
	require.True(t, errors.As(err, &stateErr))
	assert.Equal(t, "ghost", stateErr.CallID)
	assert.Equal(t, 1, log.Len(), "failed append must leave the log unchanged")
}

func TestLog_AppendRejectsDuplicateCallID(t *testing.T) {
	log := NewLog()
	call := ToolCall{ID: "call-1", Name: "calculator"}

	require.NoError(t, log.Append(NewToolCallMessage(call)))
	err := log.Append(NewToolCallMessage(call))
	require.Error(t, err)

	var stateErr *InvalidStateError
	require.True(t, errors.As(err, &stateErr))
}

func TestLog_AppendRejectsCallWithoutID(t *testing.T) {
	log := NewLog()
	err := log.Append(NewToolCallMessage(ToolCall{Name: "calculator"}))
	require.Error(t, err)

	var stateErr *InvalidStateError
	require.True(t, errors.As(err, &stateErr))
}

func TestLog_ResultForEachCall(t *testing.T) {
	// Pairing round trip: once resolved, every call id in the snapshot has
	// exactly one matching result and vice versa.
	log := NewLog()
	require.NoError(t, log.Append(NewUserMessage("go")))
	require.NoError(t, log.Append(NewToolCallMessage(
		ToolCall{ID: "a", Name: "one"},
		ToolCall{ID: "b", Name: "two"},
	)))
	require.NoError(t, log.Append(NewToolResultMessage("a", "one", "ra", nil)))
	require.NoError(t, log.Append(NewToolResultMessage("b", "two", "rb", nil)))

	calls := map[string]int{}
	results := map[string]int{}
	for _, m := range log.Snapshot() {
		for _, c := range m.ToolCalls() {
			calls[c.ID]++
		}
		for _, r := range m.ToolResults() {
			results[r.CallID]++
		}
	}
	assert.Equal(t, calls, results)
}

func TestLog_Compact(t *testing.T) {
	log := NewLog()
	require.NoError(t, log.Append(NewUserMessage("first question")))
	require.NoError(t, log.Append(NewAssistantMessage("first answer")))
	require.NoError(t, log.Append(NewUserMessage("second question")))

	summary := NewAssistantMessage("[earlier conversation compacted]")
	require.NoError(t, log.Compact(0, 1, summary))

	snap := log.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "[earlier conversation compacted]", snap[0].Text())
	assert.Equal(t, "second question", snap[1].Text())
}

func TestLog_CompactRejectsSplitPair(t *testing.T) {
	log := NewLog()
	require.NoError(t, log.Append(NewUserMessage("q")))
	require.NoError(t, log.Append(NewToolCallMessage(ToolCall{ID: "c1", Name: "calculator"})))
	require.NoError(t, log.Append(NewToolResultMessage("c1", "calculator", "4", nil)))
	require.NoError(t, log.Append(NewAssistantMessage("done")))

	// Range ends between the call (index 1) and its result (index 2).
	err := log.Compact(0, 1, NewAssistantMessage("summary"))
	require.Error(t, err)
	var rangeErr *InvalidRangeError
	require.True(t, errors.As(err, &rangeErr))

	// Range starting at the result with the call outside is equally invalid.
	err = log.Compact(2, 3, NewAssistantMessage("summary"))
	require.Error(t, err)
	require.True(t, errors.As(err, &rangeErr))

	// Covering both sides of the pair is fine.
	require.NoError(t, log.Compact(1, 2, NewAssistantMessage("summary")))
	assert.Equal(t, 3, log.Len())
}

func TestLog_CompactRejectsOutOfBounds(t *testing.T) {
	log := NewLog()
	require.NoError(t, log.Append(NewUserMessage("q")))

	for _, r := range [][2]int{{-1, 0}, {0, 1}, {1, 0}} {
		err := log.Compact(r[0], r[1], NewAssistantMessage("s"))
		var rangeErr *InvalidRangeError
		require.True(t, errors.As(err, &rangeErr), "range [%d,%d]", r[0], r[1])
	}
}

func TestLog_CompactRejectsSwallowedOpenCall(t *testing.T) {
	log := NewLog()
	require.NoError(t, log.Append(NewUserMessage("q")))
	require.NoError(t, log.Append(NewToolCallMessage(ToolCall{ID: "open", Name: "slow"})))

	err := log.Compact(0, 1, NewAssistantMessage("summary"))
	var rangeErr *InvalidRangeError
	require.True(t, errors.As(err, &rangeErr))
}

func TestLog_CompactableEnd(t *testing.T) {
	log := NewLog()
	require.NoError(t, log.Append(NewUserMessage("q")))                                        // 0
	require.NoError(t, log.Append(NewToolCallMessage(ToolCall{ID: "c1", Name: "calculator"}))) // 1
	require.NoError(t, log.Append(NewToolResultMessage("c1", "calculator", "4", nil)))         // 2
	require.NoError(t, log.Append(NewAssistantMessage("4")))                                   // 3

	// A prefix ending on the call would split the pair, so the best
	// boundary at n=2 is the user message alone.
	assert.Equal(t, 0, log.CompactableEnd(2))
	assert.Equal(t, 2, log.CompactableEnd(3))
	assert.Equal(t, 3, log.CompactableEnd(10))

	empty := NewLog()
	assert.Equal(t, -1, empty.CompactableEnd(5))
}

func TestToolResult_ResultText(t *testing.T) {
	assert.Equal(t, "4", ToolResult{Content: "4"}.ResultText())
	assert.Equal(t, `{"sum":4}`, ToolResult{Content: map[string]any{"sum": 4}}.ResultText())
	assert.Equal(t, "boom", ToolResult{Error: "boom"}.ResultText())
}
