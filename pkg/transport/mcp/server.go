// Package mcp exposes the dispatcher over the Model Context Protocol,
// on stdio or streamable HTTP.
package mcp

import (
	"context"
	"fmt"
	"sort"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rhuss/sandbox-mcp/pkg/api"
	"github.com/rhuss/sandbox-mcp/pkg/debug"
	"github.com/rhuss/sandbox-mcp/pkg/dispatch"
)

// Info identifies the server to MCP clients.
type Info struct {
	Name    string
	Version string
}

// NewServer creates an MCP server advertising every tool known to d.
// Arguments are passed to the dispatcher undecoded; it validates them.
// tools/list answers in registration order.
func NewServer(d *dispatch.Dispatcher, info Info) *mcp.Server {
	srv := mcp.NewServer(&mcp.Implementation{Name: info.Name, Version: info.Version}, nil)
	tools := Tools(d)
	for _, tool := range tools {
		srv.AddTool(tool, toolHandler(d, tool.Name))
	}
	srv.AddReceivingMiddleware(registrationOrder(tools))
	return srv
}

// registrationOrder reorders tools/list results to match tools. The SDK
// keeps its tools sorted by name.
func registrationOrder(tools []*mcp.Tool) mcp.Middleware {
	rank := make(map[string]int, len(tools))
	for i, t := range tools {
		rank[t.Name] = i
	}
	return func(next mcp.MethodHandler) mcp.MethodHandler {
		return func(ctx context.Context, method string, req mcp.Request) (mcp.Result, error) {
			res, err := next(ctx, method, req)
			if err != nil || method != "tools/list" {
				return res, err
			}
			if lr, ok := res.(*mcp.ListToolsResult); ok {
				sort.SliceStable(lr.Tools, func(i, j int) bool {
					return rank[lr.Tools[i].Name] < rank[lr.Tools[j].Name]
				})
			}
			return res, nil
		}
	}
}

// Tools converts the dispatcher's tool listing to MCP tool definitions in
// registration order.
func Tools(d *dispatch.Dispatcher) []*mcp.Tool {
	descs := d.HandleListTools()
	tools := make([]*mcp.Tool, 0, len(descs))
	for _, desc := range descs {
		tools = append(tools, &mcp.Tool{
			Name:        desc.Name,
			Description: desc.Description,
			InputSchema: desc.Schema.JSONSchema(),
		})
	}
	return tools
}

func toolHandler(d *dispatch.Dispatcher, name string) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		debug.Log("mcp", "tools/call", "tool", name, "args_len", len(req.Params.Arguments))
		content, err := d.HandleCallToolJSON(ctx, name, req.Params.Arguments)
		if err != nil {
			// Reported to the client as a protocol error.
			return nil, err
		}

		out := make([]mcp.Content, 0, len(content))
		for _, c := range content {
			mc, err := toMCPContent(c)
			if err != nil {
				return nil, err
			}
			out = append(out, mc)
		}
		return &mcp.CallToolResult{Content: out}, nil
	}
}

// toMCPContent converts a content item to its MCP wire form.
func toMCPContent(c api.Content) (mcp.Content, error) {
	switch v := c.(type) {
	case *api.TextContent:
		return &mcp.TextContent{Text: v.Text}, nil
	case *api.ImageContent:
		return &mcp.ImageContent{Data: v.Data, MIMEType: v.MIMEType}, nil
	case *api.ResourceContent:
		return &mcp.EmbeddedResource{Resource: &mcp.ResourceContents{
			URI:      v.URI,
			MIMEType: v.MIMEType,
			Text:     v.Text,
			Blob:     v.Blob,
		}}, nil
	default:
		return nil, fmt.Errorf("unsupported content type %T", c)
	}
}

