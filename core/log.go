package core

import (
	"fmt"
	"sync"
	"time"
)

// InvalidStateError reports an append that would violate the tool call /
// tool result pairing invariant.
type InvalidStateError struct {
	CallID  string // Offending tool_call id, if known
	Message string
}

func (e *InvalidStateError) Error() string {
	if e.CallID != "" {
		return fmt.Sprintf("invalid log state for call %s: %s", e.CallID, e.Message)
	}
	return fmt.Sprintf("invalid log state: %s", e.Message)
}

// InvalidRangeError reports a compaction range that is out of bounds or
// would split a tool call / tool result pair.
type InvalidRangeError struct {
	Start   int
	End     int
	Message string
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("invalid compaction range [%d,%d]: %s", e.Start, e.End, e.Message)
}

// Log is the ordered, append-only record of one conversation. It tracks
// which tool calls are still awaiting a result and rejects appends that
// would break call/result correlation. Truncation happens only through
// Compact. Safe for concurrent access.
//
// Contract:
//   - Every appended tool result must match exactly one open tool call
//   - Snapshot returns a point-in-time copy safe to hand to a gateway
//   - Compact never splits a call from its result
type Log struct {
	mu       sync.RWMutex
	messages []Message
	open     map[string]string // call id -> tool name, awaiting a result
	updated  time.Time
}

// NewLog creates an empty message log.
func NewLog() *Log {
	return &Log{open: map[string]string{}, updated: time.Now().UTC()}
}

// Append adds a message to the end of the log.
//
// Assistant messages containing tool calls open one pending entry per call;
// tool messages close them. Appending a tool result whose call id has no
// matching open call, or a duplicate call id, fails with *InvalidStateError
// and leaves the log unchanged.
func (l *Log) Append(m Message) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	calls := m.ToolCalls()
	results := m.ToolResults()

	for _, c := range calls {
		if c.ID == "" {
			return &InvalidStateError{Message: fmt.Sprintf("tool call %q has no id", c.Name)}
		}
		if _, dup := l.open[c.ID]; dup {
			return &InvalidStateError{CallID: c.ID, Message: "duplicate tool call id"}
		}
	}
	for _, r := range results {
		if _, ok := l.open[r.CallID]; !ok {
			return &InvalidStateError{CallID: r.CallID, Message: "tool result has no matching open tool call"}
		}
	}

	for _, c := range calls {
		l.open[c.ID] = c.Name
	}
	for _, r := range results {
		delete(l.open, r.CallID)
	}

	l.messages = append(l.messages, m)
	l.updated = time.Now().UTC()

	return nil
}

// Snapshot returns a point-in-time copy of the log suitable for a gateway
// round trip. The log remains mutable; the returned slice does not alias
// internal state.
func (l *Log) Snapshot() []Message {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Message, len(l.messages))
	copy(out, l.messages)
	return out
}

// Len returns the number of messages currently in the log.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.messages)
}

// OpenCalls returns the ids of tool calls that have not yet received a
// result, in no particular order.
func (l *Log) OpenCalls() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	ids := make([]string, 0, len(l.open))
	for id := range l.open {
		ids = append(ids, id)
	}
	return ids
}

// Resolved reports whether every tool call in the log has a matching result.
func (l *Log) Resolved() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.open) == 0
}

// Updated returns the time of the last successful mutation.
func (l *Log) Updated() time.Time {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.updated
}

// Compact replaces the contiguous inclusive range [start, end] with the
// single summary message. The range must not separate any tool call from
// its result: for every call/result pair in the log, the range contains
// both messages or neither. Violations fail with *InvalidRangeError and
// leave the log unchanged.
func (l *Log) Compact(start, end int, summary Message) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if start < 0 || end >= len(l.messages) || start > end {
		return &InvalidRangeError{Start: start, End: end, Message: "out of bounds"}
	}

	inside := map[string]bool{} // call ids seen inside the range
	for i := start; i <= end; i++ {
		for _, c := range l.messages[i].ToolCalls() {
			inside[c.ID] = true
		}
	}
	for i := start; i <= end; i++ {
		for _, r := range l.messages[i].ToolResults() {
			if !inside[r.CallID] {
				return &InvalidRangeError{Start: start, End: end, Message: fmt.Sprintf("range splits tool call %s from its result", r.CallID)}
			}
			delete(inside, r.CallID)
		}
	}
	for id := range inside {
		// A call left unresolved before compaction may legally stay open,
		// but its result must not live outside the range.
		if _, stillOpen := l.open[id]; !stillOpen {
			return &InvalidRangeError{Start: start, End: end, Message: fmt.Sprintf("range splits tool call %s from its result", id)}
		}
		return &InvalidRangeError{Start: start, End: end, Message: fmt.Sprintf("range swallows unresolved tool call %s", id)}
	}

	compacted := make([]Message, 0, len(l.messages)-(end-start))
	compacted = append(compacted, l.messages[:start]...)
	compacted = append(compacted, summary)
	compacted = append(compacted, l.messages[end+1:]...)
	l.messages = compacted
	l.updated = time.Now().UTC()

	return nil
}

// CompactableEnd returns the largest index e such that [0, e] is a valid
// compaction range covering at most the first n messages, or -1 if no such
// prefix exists. Used by the loop to shrink history after a context budget
// failure without splitting call/result pairs.
func (l *Log) CompactableEnd(n int) int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if n > len(l.messages) {
		n = len(l.messages)
	}

	pending := 0
	best := -1
	for i := 0; i < n; i++ {
		pending += len(l.messages[i].ToolCalls())
		pending -= len(l.messages[i].ToolResults())
		if pending == 0 {
			best = i
		}
	}
	return best
}
