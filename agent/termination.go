package agent

import (
	"fmt"
	"time"
)

// Reason codes carried by TerminationError.
const (
	ReasonMaxTurns  = "max_turns_exceeded"
	ReasonDeadline  = "deadline_exceeded"
	ReasonCancelled = "cancelled"
)

// TerminationError is the typed failure surfaced to the caller when the
// termination policy stops the loop. The loop never silently truncates an
// answer; it fails with a specific reason instead.
type TerminationError struct {
	Reason string
	Err    error
}

func (e *TerminationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("loop terminated (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("loop terminated (%s)", e.Reason)
}

func (e *TerminationError) Unwrap() error { return e.Err }

// Policy decides when the loop must stop without a final answer. Checked at
// the top of every model turn.
type Policy struct {
	// MaxTurns bounds the number of completed model calls per Submit.
	// Always finite; the zero value falls back to DefaultMaxTurns.
	MaxTurns int
	// Deadline optionally bounds the run by wall clock. Zero means none.
	Deadline time.Time
}

// Check returns a TerminationError when the policy is exceeded, given the
// number of model calls completed so far.
func (p Policy) Check(completedTurns int, now time.Time) *TerminationError {
	if completedTurns >= p.MaxTurns {
		return &TerminationError{
			Reason: ReasonMaxTurns,
			Err:    fmt.Errorf("no final answer after %d model turns", completedTurns),
		}
	}
	if !p.Deadline.IsZero() && now.After(p.Deadline) {
		return &TerminationError{
			Reason: ReasonDeadline,
			Err:    fmt.Errorf("deadline %s exceeded", p.Deadline.Format(time.RFC3339)),
		}
	}
	return nil
}
