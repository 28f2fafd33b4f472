package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"rowriver/internal/domain"
)

func (s *Server) registerDocumentTools() {
	if s.documents == nil {
		return
	}

	s.mcp.AddTool(mcp.NewTool("list_collections",
		mcp.WithDescription("List the collections of the local document store (rivers with sink type localdb)"),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{ReadOnlyHint: boolPtr(true)}),
	), s.handleListCollections)

	s.mcp.AddTool(mcp.NewTool("list_documents",
		mcp.WithDescription("List documents of a local collection ordered by id"),
		mcp.WithString("collection", mcp.Description("Collection name"), mcp.Required()),
		mcp.WithNumber("limit", mcp.Description("Maximum documents to return (default 50)")),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{ReadOnlyHint: boolPtr(true)}),
	), s.handleListDocuments)

	s.mcp.AddTool(mcp.NewTool("get_document",
		mcp.WithDescription("Get one document of a local collection by id"),
		mcp.WithString("collection", mcp.Description("Collection name"), mcp.Required()),
		mcp.WithString("id", mcp.Description("Document id"), mcp.Required()),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{ReadOnlyHint: boolPtr(true)}),
	), s.handleGetDocument)
}

// documentView renders a stored document with its body inlined as JSON.
type documentView struct {
	ID        string          `json:"id"`
	Body      json.RawMessage `json:"body"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

func viewOf(d domain.Document) documentView {
	return documentView{ID: d.ID, Body: json.RawMessage(d.Body), UpdatedAt: d.UpdatedAt}
}

// ── Handlers ───────────────────────────────────────────────

func (s *Server) handleListCollections(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	names, err := s.documents.ListCollections(ctx)
	if err != nil {
		return nil, err
	}
	if names == nil {
		names = []string{}
	}
	return jsonResult(names)
}

func (s *Server) handleListDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	collection := req.GetString("collection", "")
	if collection == "" {
		return nil, fmt.Errorf("collection is required")
	}
	docs, err := s.documents.ListDocuments(ctx, collection, req.GetInt("limit", 50))
	if err != nil {
		return nil, err
	}
	views := make([]documentView, len(docs))
	for i, d := range docs {
		views[i] = viewOf(d)
	}
	return jsonResult(views)
}

func (s *Server) handleGetDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	collection := req.GetString("collection", "")
	id := req.GetString("id", "")
	if collection == "" || id == "" {
		return nil, fmt.Errorf("collection and id are required")
	}
	doc, err := s.documents.GetDocument(ctx, collection, id)
	if err != nil {
		return nil, err
	}
	return jsonResult(viewOf(*doc))
}
