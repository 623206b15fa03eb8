// Package agent implements the tool-calling conversation loop at the heart
// of agentloop. A Session owns one conversation's message log and alternates
// between two phases: asking the gateway what to do next and dispatching the
// tool calls it requested. The loop terminates on a final answer, a
// termination policy violation (max turns, deadline), an exhausted gateway
// retry budget, or cancellation.
//
// Error philosophy: tools fail into the conversation, not out of the loop.
// Unknown tool names, schema-invalid arguments, execution errors, timeouts
// and panics all become tool result messages the model can react to; only
// policy and gateway failures reach the Submit caller.
package agent
