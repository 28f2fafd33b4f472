package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerConnectionTools() {
	if s.connections == nil {
		return
	}

	s.mcp.AddTool(mcp.NewTool("list_connections",
		mcp.WithDescription("List the database connections declared in the config file (passwords are never shown)"),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{ReadOnlyHint: boolPtr(true)}),
	), s.handleListConnections)

	s.mcp.AddTool(mcp.NewTool("test_connection",
		mcp.WithDescription("Open a declared connection and ping it"),
		mcp.WithString("name", mcp.Description("Connection name"), mcp.Required()),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{ReadOnlyHint: boolPtr(true)}),
	), s.handleTestConnection)
}

func (s *Server) handleListConnections(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.connections.ListConnections())
}

func (s *Server) handleTestConnection(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := req.GetString("name", "")
	if name == "" {
		return nil, fmt.Errorf("name is required")
	}
	st := s.connections.TestConnection(ctx, name)
	res, err := jsonResult(st)
	if err != nil {
		return nil, err
	}
	res.IsError = !st.OK
	return res, nil
}
