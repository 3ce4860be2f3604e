// Package server hosts the relay's transport surfaces: the MCP protocol
// bindings (stdio, SSE, streamable HTTP) and the plain HTTP endpoints
// (health, tool listing, executor WebSocket). All bindings drive the same
// dispatcher.
package server

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/loonghao/ppt-kit/internal/tools"
)

// ServerName identifies this server to MCP clients.
const ServerName = "ppt-kit"

// NewMCPServer builds the MCP protocol server from the dispatcher's
// catalogue. Every binding shares this one instance, so the schema an AI
// client sees is exactly what the dispatcher validates against.
func NewMCPServer(d *tools.Dispatcher, version string) *mcpserver.MCPServer {
	s := mcpserver.NewMCPServer(
		ServerName,
		version,
		mcpserver.WithToolCapabilities(false),
		mcpserver.WithRecovery(),
		mcpserver.WithInstructions(
			"Tools for manipulating a live PowerPoint presentation. "+
				"Operations execute inside the connected add-in when one is attached, "+
				"and return clearly-marked mock data otherwise.",
		),
	)

	for _, def := range d.ListTools() {
		name := def.Name
		s.AddTool(def.MCPTool(), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			result, err := d.Call(ctx, name, req.GetArguments())
			if err != nil {
				// Unknown tool or validation failure: reported to the caller
				// as a tool error, never executed.
				return mcp.NewToolResultError(err.Error()), nil
			}
			return &mcp.CallToolResult{
				Content:           []mcp.Content{mcp.NewTextContent(result.Text)},
				StructuredContent: result.Structured,
				IsError:           result.IsError,
			}, nil
		})
	}
	return s
}

// ServeStdio runs the newline-delimited JSON-RPC binding on stdin/stdout.
// Blocks until stdin closes. No executor bridging happens in this mode; the
// dispatcher stays on the mock backend.
func ServeStdio(s *mcpserver.MCPServer) error {
	return mcpserver.ServeStdio(s)
}
