package mcpserver

import (
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"rowriver/internal/service"
	"rowriver/internal/storage"
)

// Server is the MCP server of the river service.
// It exposes tools and resources so AI agents can inspect, preview and run rivers.
type Server struct {
	mcp *server.MCPServer
	log *zap.Logger

	// Services (injected from main)
	rivers      *service.RiverService
	documents   *storage.DocumentStore
	connections *service.ConnectionService
}

// Deps holds all dependencies passed to the MCP server.
type Deps struct {
	Rivers      *service.RiverService
	Documents   *storage.DocumentStore
	Connections *service.ConnectionService
	Logger      *zap.Logger
}

// New creates and configures a new MCP server with all tools and resources.
func New(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		log:         logger,
		rivers:      deps.Rivers,
		documents:   deps.Documents,
		connections: deps.Connections,
	}

	s.mcp = server.NewMCPServer(
		"rowriver-mcp",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, false),
	)

	s.registerRiverTools()
	s.registerDocumentTools()
	s.registerConnectionTools()
	s.registerResources()

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	s.log.Info("starting MCP stdio server")
	return server.ServeStdio(s.mcp)
}

// ── Helpers ────────────────────────────────────────────────

// textResult creates a simple text tool result.
func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

// jsonResult serializes v to JSON and wraps it in a text tool result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return textResult(string(data)), nil
}

func boolPtr(v bool) *bool { return &v }
