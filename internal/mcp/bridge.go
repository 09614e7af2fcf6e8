package mcp

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	mcpclient "github.com/mark3labs/mcp-go/client"
	mcpgo "github.com/mark3labs/mcp-go/mcp"

	"github.com/nextlevelbuilder/goforge/internal/tools"
)

// BridgeTool adapts one remote MCP tool to the local Tool interface.
type BridgeTool struct {
	server    string
	remote    mcpgo.Tool
	client    *mcpclient.Client
	connected *atomic.Bool
}

func newBridgeTool(server string, remote mcpgo.Tool, client *mcpclient.Client, connected *atomic.Bool) *BridgeTool {
	return &BridgeTool{
		server:    server,
		remote:    remote,
		client:    client,
		connected: connected,
	}
}

// Name is the registry name: mcp_<server>_<tool>.
func (t *BridgeTool) Name() string {
	return fmt.Sprintf("mcp_%s_%s", t.server, t.remote.Name)
}

// OriginalName is the tool's name on the remote server.
func (t *BridgeTool) OriginalName() string { return t.remote.Name }

func (t *BridgeTool) Description() string {
	desc := t.remote.Description
	if desc == "" {
		desc = "MCP tool " + t.remote.Name
	}
	return fmt.Sprintf("[%s] %s", t.server, desc)
}

func (t *BridgeTool) Parameters() map[string]interface{} {
	schema := map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}
	if t.remote.InputSchema.Type != "" {
		schema["type"] = t.remote.InputSchema.Type
	}
	if len(t.remote.InputSchema.Properties) > 0 {
		schema["properties"] = t.remote.InputSchema.Properties
	}
	if len(t.remote.InputSchema.Required) > 0 {
		schema["required"] = t.remote.InputSchema.Required
	}
	return schema
}

func (t *BridgeTool) Execute(ctx context.Context, args map[string]interface{}) *tools.Result {
	if !t.connected.Load() {
		return tools.ErrorResult(fmt.Sprintf("MCP server %s is not connected", t.server))
	}

	req := mcpgo.CallToolRequest{}
	req.Params.Name = t.remote.Name
	req.Params.Arguments = args

	result, err := t.client.CallTool(ctx, req)
	if err != nil {
		return tools.ErrorResult(fmt.Sprintf("MCP call %s failed: %v", t.remote.Name, err))
	}

	text := renderContent(result.Content)
	if result.IsError {
		return tools.ErrorResult(text)
	}
	if text == "" {
		text = "(empty result)"
	}
	return tools.SilentResult(text)
}

// renderContent flattens the MCP content blocks to text; non-text blocks
// become type markers.
func renderContent(blocks []mcpgo.Content) string {
	var parts []string
	for _, block := range blocks {
		if tc, ok := block.(mcpgo.TextContent); ok {
			parts = append(parts, tc.Text)
		} else {
			parts = append(parts, fmt.Sprintf("[non-text content: %T]", block))
		}
	}
	return strings.Join(parts, "\n")
}
