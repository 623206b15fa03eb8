// Package mcp exposes the tools of a Model Context Protocol server as
// agentloop tools. A Client spawns the server subprocess, discovers its
// tools over stdio and adapts each one to the tool.Tool interface so it can
// be registered alongside local function tools.
package mcp

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sort"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hupe1980/agentloop/tool"
)

// Client manages the connection to a single MCP server subprocess.
type Client struct {
	name  string
	cmd   *exec.Cmd
	conn  *mcpsdk.ClientSession
	tools map[string]*serverTool
}

// Connect starts the MCP server subprocess, initializes the session and
// discovers the tools it provides.
func Connect(ctx context.Context, name, command string, args ...string) (*Client, error) {
	cmd := exec.Command(command, args...)
	cmd.Stderr = os.Stderr

	mcpClient := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "agentloop", Version: "v1.0.0"}, nil)
	conn, err := mcpClient.Connect(ctx, mcpsdk.NewCommandTransport(cmd))
	if err != nil {
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
		return nil, fmt.Errorf("connect to MCP server %q: %w", name, err)
	}

	c := &Client{name: name, cmd: cmd, conn: conn, tools: map[string]*serverTool{}}

	params := &mcpsdk.ListToolsParams{}
	for {
		list, err := conn.ListTools(ctx, params)
		if err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("list tools from MCP server %q: %w", name, err)
		}
		for _, t := range list.Tools {
			c.tools[t.Name] = &serverTool{
				client:      c,
				name:        t.Name,
				description: t.Description,
			}
		}
		if list.NextCursor == "" {
			break
		}
		params.Cursor = list.NextCursor
	}

	return c, nil
}

// Tools returns the discovered tools sorted by name, ready for registration.
func (c *Client) Tools() []tool.Tool {
	names := make([]string, 0, len(c.tools))
	for name := range c.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]tool.Tool, 0, len(names))
	for _, name := range names {
		out = append(out, c.tools[name])
	}
	return out
}

// Lookup returns a specific discovered tool by its short name.
func (c *Client) Lookup(name string) (tool.Tool, bool) {
	t, ok := c.tools[name]
	return t, ok
}

// Close terminates the session and the server subprocess.
func (c *Client) Close() error {
	if c.conn != nil {
		_ = c.conn.Close()
	}
	if c.cmd != nil && c.cmd.Process != nil {
		return c.cmd.Process.Kill()
	}
	return nil
}

// serverTool adapts one remote MCP tool to the tool.Tool interface.
type serverTool struct {
	client      *Client
	name        string
	description string
}

// Name returns the tool name as advertised by the server.
func (t *serverTool) Name() string { return t.name }

// Description returns the tool description as advertised by the server.
func (t *serverTool) Description() string { return t.description }

// InputSchema returns a permissive object schema. The server validates its
// own arguments; duplicating its schema here would drift, so structural
// validation is delegated to the remote end.
func (t *serverTool) InputSchema() map[string]any {
	return map[string]any{"type": "object"}
}

// Call forwards the invocation to the MCP server and concatenates the text
// content of the result.
func (t *serverTool) Call(ctx context.Context, args map[string]any) (any, error) {
	result, err := t.client.conn.CallTool(ctx, &mcpsdk.CallToolParams{
		Name:      t.name,
		Arguments: args,
	})
	if err != nil {
		return nil, tool.NewToolError(t.name, err.Error(), tool.CodeExecution)
	}

	var out string
	for _, content := range result.Content {
		if text, ok := content.(*mcpsdk.TextContent); ok {
			out += text.Text
		}
	}
	if result.IsError {
		return nil, tool.NewToolError(t.name, out, tool.CodeExecution)
	}
	return out, nil
}
