package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"rowriver/internal/etl"
)

func (s *Server) registerRiverTools() {
	s.mcp.AddTool(mcp.NewTool("list_rivers",
		mcp.WithDescription("List the configured rivers with their source, sink, trigger and last run status"),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{ReadOnlyHint: boolPtr(true)}),
	), s.handleListRivers)

	s.mcp.AddTool(mcp.NewTool("list_river_sources",
		mcp.WithDescription("List available row source types with their configuration schemas"),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{ReadOnlyHint: boolPtr(true)}),
	), s.handleListRiverSources)

	s.mcp.AddTool(mcp.NewTool("run_river",
		mcp.WithDescription("Run a river once. Documents built from the source rows are created, indexed or deleted in the river's sink."),
		mcp.WithString("river", mcp.Description("River name"), mcp.Required()),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{DestructiveHint: boolPtr(true)}),
	), s.handleRunRiver)

	s.mcp.AddTool(mcp.NewTool("preview_river",
		mcp.WithDescription(`Build the first documents of a river without writing anything.
Either name a configured river, or pass sourceType and sourceConfigJSON for an ad hoc source.
Column names describe the document shape: "a.b" nests objects, "tags[]" collects distinct values, "courses[name]" builds a list of objects. Rows sharing _id (and _optype) merge into one document.`),
		mcp.WithString("river", mcp.Description("River name (optional when sourceType is given)")),
		mcp.WithString("sourceType", mcp.Description("Source type (use list_river_sources)")),
		mcp.WithString("sourceConfigJSON", mcp.Description("Source configuration as JSON")),
		mcp.WithString("optionsJSON", mcp.Description(`River options as JSON, e.g. {"idColumn":"_id","delimiter":",","singletonArrays":true}`)),
		mcp.WithNumber("maxDocs", mcp.Description("Maximum documents to build (default 10)")),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{ReadOnlyHint: boolPtr(true)}),
	), s.handlePreviewRiver)

	s.mcp.AddTool(mcp.NewTool("list_river_runs",
		mcp.WithDescription("List the most recent runs of a river, newest first, with row and document counts"),
		mcp.WithString("river", mcp.Description("River name"), mcp.Required()),
		mcp.WithNumber("limit", mcp.Description("Maximum runs to return (default 20)")),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{ReadOnlyHint: boolPtr(true)}),
	), s.handleListRiverRuns)

	s.mcp.AddTool(mcp.NewTool("list_active_runs",
		mcp.WithDescription("List the rivers that are running right now, oldest run first"),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{ReadOnlyHint: boolPtr(true)}),
	), s.handleListActiveRuns)
}

// ── Handlers ───────────────────────────────────────────────

func (s *Server) handleListRivers(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobs, err := s.rivers.ListJobs()
	if err != nil {
		return nil, err
	}
	if jobs == nil {
		jobs = []etl.Job{}
	}
	return jsonResult(jobs)
}

func (s *Server) handleListRiverSources(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.rivers.ListSources())
}

func (s *Server) handleRunRiver(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := req.GetString("river", "")
	if name == "" {
		return nil, fmt.Errorf("river is required")
	}

	result, err := s.rivers.RunJobByName(ctx, name)
	if err != nil {
		if result == nil {
			return nil, fmt.Errorf("run river: %w", err)
		}
		// The run started: report its partial statistics alongside the failure.
		res, jerr := jsonResult(result)
		if jerr != nil {
			return nil, jerr
		}
		res.IsError = true
		return res, nil
	}
	return jsonResult(result)
}

func (s *Server) handlePreviewRiver(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	maxDocs := req.GetInt("maxDocs", 10)

	if name := req.GetString("river", ""); name != "" {
		job, err := s.rivers.GetJobByName(name)
		if err != nil {
			return nil, err
		}
		preview, err := s.rivers.PreviewJob(ctx, job.ID, maxDocs)
		if err != nil {
			return nil, fmt.Errorf("preview river: %w", err)
		}
		return jsonResult(preview)
	}

	sourceType := req.GetString("sourceType", "")
	if sourceType == "" {
		return nil, fmt.Errorf("river or sourceType is required")
	}
	var cfg etl.SourceConfig
	if err := parseJSONArg(args, "sourceConfigJSON", &cfg); err != nil {
		return nil, err
	}
	var options etl.RiverOptions
	if err := parseJSONArg(args, "optionsJSON", &options); err != nil {
		return nil, err
	}

	preview, err := s.rivers.Preview(ctx, sourceType, cfg, options, maxDocs)
	if err != nil {
		return nil, fmt.Errorf("preview source: %w", err)
	}
	return jsonResult(preview)
}

func (s *Server) handleListRiverRuns(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := req.GetString("river", "")
	if name == "" {
		return nil, fmt.Errorf("river is required")
	}
	job, err := s.rivers.GetJobByName(name)
	if err != nil {
		return nil, err
	}
	logs, err := s.rivers.ListRunLogs(job.ID, req.GetInt("limit", 20))
	if err != nil {
		return nil, err
	}
	if logs == nil {
		logs = []etl.SyncRunLog{}
	}
	return jsonResult(logs)
}

func (s *Server) handleListActiveRuns(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.rivers.ActiveRuns())
}
