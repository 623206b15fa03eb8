// Package core defines the shared conversation domain model for agentloop:
// roles, message parts (text, tool calls, tool results), the gateway-facing
// tool metadata and the append-only message Log with its call/result pairing
// invariant. Higher level packages (tool, gateway, agent) depend on core and
// never the other way around, keeping the dependency graph acyclic.
package core
