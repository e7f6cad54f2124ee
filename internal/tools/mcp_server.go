package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/vthunder/mneme/internal/logging"
)

// ExposeMCP starts an inbound MCP server exposing every registered tool
// in reg except Blocked ones over stdio, so external MCP clients can drive Mneme's own tool
// catalogue (spec.md §4.9 "the same catalogue is exposable to external
// MCP clients"). Grounded on the real mark3labs/mcp-go server API as used
// by vthunder-bud2/cmd/efficient-notion-mcp/main.go: NewMCPServer,
// mcp.NewTool/WithString/WithBoolean, AddTool, ServeStdio.
func ExposeMCP(reg *Registry, name, version string) error {
	s := server.NewMCPServer(name, version, server.WithToolCapabilities(true))

	for _, t := range reg.Catalogue() {
		if t.Capability == Blocked {
			continue
		}
		s.AddTool(buildMCPTool(t), makeMCPHandler(reg, t.Name))
	}

	logging.Info("mcp_server", "serving %d tools over stdio as %s/%s", len(reg.Catalogue()), name, version)
	return server.ServeStdio(s)
}

func buildMCPTool(t Tool) mcp.Tool {
	opts := []mcp.ToolOption{mcp.WithDescription(t.Description)}
	required := make(map[string]bool, len(t.Schema.Required))
	for _, r := range t.Schema.Required {
		required[r] = true
	}
	for propName, prop := range t.Schema.Properties {
		var propOpts []mcp.PropertyOption
		propOpts = append(propOpts, mcp.Description(prop.Description))
		if required[propName] {
			propOpts = append(propOpts, mcp.Required())
		}
		switch prop.Type {
		case TypeBoolean:
			opts = append(opts, mcp.WithBoolean(propName, propOpts...))
		case TypeNumber:
			// Declared as a number so clients send a JSON number, which
			// Schema.Validate accepts as float64.
			opts = append(opts, mcp.WithNumber(propName, propOpts...))
		default:
			opts = append(opts, mcp.WithString(propName, propOpts...))
		}
	}
	return mcp.NewTool(t.Name, opts...)
}

func makeMCPHandler(reg *Registry, toolName string) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, _ := req.Params.Arguments.(map[string]any)
		result := reg.Execute(ctx, toolName, args)
		if result.IsError {
			return mcp.NewToolResultError(result.Content), nil
		}
		return mcp.NewToolResultText(result.Content), nil
	}
}
