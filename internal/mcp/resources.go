package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

const (
	riversURI        = "river://rivers"
	collectionPrefix = "river://collection/"
)

func (s *Server) registerResources() {
	// ── river://rivers ─────────────────────────────────
	s.mcp.AddResource(mcp.NewResource(
		riversURI,
		"All Rivers",
		mcp.WithMIMEType("application/json"),
	), s.handleRiversResource)

	if s.documents == nil {
		return
	}

	// ── river://collection/{name} ──────────────────────
	s.mcp.AddResourceTemplate(
		mcp.NewResourceTemplate(
			collectionPrefix+"{name}",
			"Documents of a local collection",
		),
		s.handleCollectionResource,
	)
}

func (s *Server) handleRiversResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	jobs, err := s.rivers.ListJobs()
	if err != nil {
		return nil, err
	}

	type riverSummary struct {
		Name       string `json:"name"`
		SourceType string `json:"sourceType"`
		SinkType   string `json:"sinkType"`
		Target     string `json:"target"`
		LastStatus string `json:"lastStatus"`
	}

	summaries := make([]riverSummary, 0, len(jobs))
	for _, j := range jobs {
		summaries = append(summaries, riverSummary{
			Name:       j.Name,
			SourceType: j.SourceType,
			SinkType:   j.SinkType,
			Target:     j.Target,
			LastStatus: j.LastStatus,
		})
	}

	data, _ := json.MarshalIndent(summaries, "", "  ")
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      riversURI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleCollectionResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uri := req.Params.URI
	name := collectionFromURI(uri)
	if name == "" {
		return nil, fmt.Errorf("could not extract collection from URI: %s", uri)
	}

	docs, err := s.documents.ListDocuments(ctx, name, 100)
	if err != nil {
		return nil, err
	}
	views := make([]documentView, len(docs))
	for i, d := range docs {
		views[i] = viewOf(d)
	}

	data, _ := json.MarshalIndent(views, "", "  ")
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

// collectionFromURI extracts the name from "river://collection/{name}".
func collectionFromURI(uri string) string {
	name, ok := strings.CutPrefix(uri, collectionPrefix)
	if !ok || strings.Contains(name, "/") {
		return ""
	}
	return name
}
