package mcpserver

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/mark3labs/mcp-go/mcp"

	"rowriver/internal/domain"
	"rowriver/internal/etl"
	_ "rowriver/internal/etl/sources"
	"rowriver/internal/river"
	"rowriver/internal/service"
	"rowriver/internal/storage"
)

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	dir := t.TempDir()
	db, err := storage.New(filepath.Join(dir, "river.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	docs := storage.NewDocumentStore(db)
	rivers := service.NewRiverService(storage.NewJobStore(db), service.NewEngine(docs, nil, nil), &service.MockEmitter{}, nil)

	csv := filepath.Join(dir, "people.csv")
	if err := os.WriteFile(csv, []byte("_id,person.name,person.tags[]\n1,Joe,\"a,b\"\n2,Ann,c\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := rivers.SyncConfigJobs([]etl.Job{{
		Name:        "people",
		SourceType:  "csv_file",
		SourceCfg:   etl.SourceConfig{"filePath": csv},
		SinkType:    etl.SinkLocalDB,
		Target:      "people",
		TriggerType: etl.TriggerManual,
		Enabled:     true,
	}}); err != nil {
		t.Fatal(err)
	}
	conns := service.NewConnectionService([]domain.DatabaseConnection{
		{Name: "state", Driver: domain.DatabaseDriverSQLite, Host: filepath.Join(dir, "river.db"), Password: "hidden"},
	})
	return New(Deps{Rivers: rivers, Documents: docs, Connections: conns}), csv
}

func call(t *testing.T, handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]any) *mcp.CallToolResult {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	res, err := handler(context.Background(), req)
	if err != nil {
		t.Fatalf("tool error: %v", err)
	}
	return res
}

func decode(t *testing.T, res *mcp.CallToolResult, target any) {
	t.Helper()
	if len(res.Content) != 1 {
		t.Fatalf("expected one content item, got %d", len(res.Content))
	}
	text, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("unexpected content %T", res.Content[0])
	}
	if err := json.Unmarshal([]byte(text.Text), target); err != nil {
		t.Fatalf("decode %q: %v", text.Text, err)
	}
}

func TestListRiversAndSources(t *testing.T) {
	s, _ := newTestServer(t)

	var jobs []etl.Job
	decode(t, call(t, s.handleListRivers, nil), &jobs)
	if len(jobs) != 1 || jobs[0].Name != "people" {
		t.Fatalf("unexpected rivers %+v", jobs)
	}

	var specs []etl.SourceSpec
	decode(t, call(t, s.handleListRiverSources, nil), &specs)
	var types []string
	for _, sp := range specs {
		types = append(types, sp.Type)
	}
	if diff := cmp.Diff([]string{"csv_file", "database"}, types); diff != "" {
		t.Errorf("sources mismatch (-want +got):\n%s", diff)
	}
}

func TestRunRiverThenInspect(t *testing.T) {
	s, _ := newTestServer(t)

	var result etl.SyncResult
	decode(t, call(t, s.handleRunRiver, map[string]any{"river": "people"}), &result)
	if result.Status != etl.StatusSuccess || result.Stats.Documents != 2 {
		t.Fatalf("unexpected result %+v", result)
	}

	var active []service.ActiveRun
	decode(t, call(t, s.handleListActiveRuns, nil), &active)
	if len(active) != 0 {
		t.Fatalf("finished run still active: %+v", active)
	}

	var runs []etl.SyncRunLog
	decode(t, call(t, s.handleListRiverRuns, map[string]any{"river": "people", "limit": float64(5)}), &runs)
	if len(runs) != 1 || runs[0].Stats.Indexed != 2 {
		t.Fatalf("unexpected runs %+v", runs)
	}

	var collections []string
	decode(t, call(t, s.handleListCollections, nil), &collections)
	if diff := cmp.Diff([]string{"people"}, collections); diff != "" {
		t.Errorf("collections mismatch (-want +got):\n%s", diff)
	}

	var doc struct {
		ID   string          `json:"id"`
		Body json.RawMessage `json:"body"`
	}
	decode(t, call(t, s.handleGetDocument, map[string]any{"collection": "people", "id": "1"}), &doc)
	if string(doc.Body) != `{"person":{"name":"Joe","tags":["a","b"]}}` {
		t.Errorf("unexpected body %s", doc.Body)
	}

	var docs []struct {
		ID string `json:"id"`
	}
	decode(t, call(t, s.handleListDocuments, map[string]any{"collection": "people", "limit": float64(1)}), &docs)
	if len(docs) != 1 || docs[0].ID != "1" {
		t.Errorf("unexpected documents %+v", docs)
	}
}

func TestRunRiver_Errors(t *testing.T) {
	s, _ := newTestServer(t)
	req := mcp.CallToolRequest{}
	if _, err := s.handleRunRiver(context.Background(), req); err == nil {
		t.Error("expected error without river")
	}
	req.Params.Arguments = map[string]any{"river": "nope"}
	if _, err := s.handleRunRiver(context.Background(), req); err == nil {
		t.Error("expected error for unknown river")
	}
}

func TestRunRiver_FailedRunIsToolError(t *testing.T) {
	s, csv := newTestServer(t)
	if err := os.Remove(csv); err != nil {
		t.Fatal(err)
	}
	res := call(t, s.handleRunRiver, map[string]any{"river": "people"})
	if !res.IsError {
		t.Fatal("expected IsError for a failed run")
	}
	var result etl.SyncResult
	decode(t, res, &result)
	if result.Status != etl.StatusError || result.Error == "" {
		t.Errorf("unexpected result %+v", result)
	}
}

func TestPreviewRiver(t *testing.T) {
	s, csv := newTestServer(t)

	var byName etl.PreviewResult
	decode(t, call(t, s.handlePreviewRiver, map[string]any{"river": "people", "maxDocs": float64(1)}), &byName)
	want := []river.SinkCall{{Op: "index", ID: "1", Body: `{"person":{"name":"Joe","tags":["a","b"]}}`}}
	if diff := cmp.Diff(want, byName.Documents); diff != "" {
		t.Errorf("preview mismatch (-want +got):\n%s", diff)
	}

	var adhoc etl.PreviewResult
	decode(t, call(t, s.handlePreviewRiver, map[string]any{
		"sourceType":       "csv_file",
		"sourceConfigJSON": `{"filePath":"` + filepath.ToSlash(csv) + `"}`,
		"optionsJSON":      map[string]any{"idPrefix": "p-", "singletonArrays": true},
	}), &adhoc)
	want = []river.SinkCall{
		{Op: "index", ID: "p-1", Body: `{"person":{"name":"Joe","tags":["a","b"]}}`},
		{Op: "index", ID: "p-2", Body: `{"person":{"name":"Ann","tags":"c"}}`},
	}
	if diff := cmp.Diff(want, adhoc.Documents); diff != "" {
		t.Errorf("ad hoc preview mismatch (-want +got):\n%s", diff)
	}

	if _, err := s.handlePreviewRiver(context.Background(), mcp.CallToolRequest{}); err == nil {
		t.Error("expected error without river or sourceType")
	}
}

func TestCollectionFromURI(t *testing.T) {
	tests := map[string]string{
		"river://collection/people": "people",
		"river://collection/a/b":    "",
		"river://rivers":            "",
		"notes://collection/people": "",
	}
	for uri, want := range tests {
		if got := collectionFromURI(uri); got != want {
			t.Errorf("collectionFromURI(%q) = %q, want %q", uri, got, want)
		}
	}
}

func TestCollectionResource(t *testing.T) {
	s, _ := newTestServer(t)
	call(t, s.handleRunRiver, map[string]any{"river": "people"})

	req := mcp.ReadResourceRequest{}
	req.Params.URI = "river://collection/people"
	contents, err := s.handleCollectionResource(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	text := contents[0].(mcp.TextResourceContents).Text
	var docs []struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal([]byte(text), &docs); err != nil {
		t.Fatal(err)
	}
	if len(docs) != 2 {
		t.Errorf("expected 2 documents, got %d", len(docs))
	}
}

func TestConnectionTools(t *testing.T) {
	s, _ := newTestServer(t)

	res := call(t, s.handleListConnections, nil)
	text := res.Content[0].(mcp.TextContent).Text
	if strings.Contains(text, "hidden") {
		t.Fatalf("password leaked: %s", text)
	}
	var conns []domain.DatabaseConnection
	decode(t, res, &conns)
	if len(conns) != 1 || conns[0].Name != "state" {
		t.Fatalf("unexpected connections %+v", conns)
	}

	res = call(t, s.handleTestConnection, map[string]any{"name": "state"})
	if res.IsError {
		t.Fatalf("expected state connection to be reachable: %+v", res.Content)
	}
	res = call(t, s.handleTestConnection, map[string]any{"name": "nope"})
	if !res.IsError {
		t.Error("expected an undeclared connection to be a tool error")
	}
}
