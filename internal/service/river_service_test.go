package service_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"rowriver/internal/domain"
	"rowriver/internal/etl"
	_ "rowriver/internal/etl/sources"
	"rowriver/internal/river"
	"rowriver/internal/service"
	"rowriver/internal/storage"
)

// ─────────────────────────────────────────────────────────────
// RiverService tests against a temporary SQLite store and CSV files
// ─────────────────────────────────────────────────────────────

type fixture struct {
	svc     *service.RiverService
	docs    *storage.DocumentStore
	emitter *service.MockEmitter
	dir     string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	db, err := storage.New(filepath.Join(dir, "river.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	docs := storage.NewDocumentStore(db)
	emitter := &service.MockEmitter{}
	svc := service.NewRiverService(storage.NewJobStore(db), service.NewEngine(docs, nil, nil), emitter, nil)
	t.Cleanup(svc.Stop)
	return &fixture{svc: svc, docs: docs, emitter: emitter, dir: dir}
}

func (f *fixture) writeCSV(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(f.dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func csvInput(name, path string) service.CreateRiverInput {
	return service.CreateRiverInput{
		Name:         name,
		SourceType:   "csv_file",
		SourceConfig: map[string]any{"filePath": path},
		Target:       "people",
		Enabled:      true,
	}
}

func TestRiverService_NewRiverService(t *testing.T) {
	svc := service.NewRiverService(nil, nil, &service.MockEmitter{}, nil)
	if svc == nil {
		t.Fatal("expected non-nil RiverService")
	}
}

func TestRiverService_WaitRunning_Immediate(t *testing.T) {
	svc := service.NewRiverService(nil, nil, &service.MockEmitter{}, nil)

	done := make(chan struct{})
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()
		svc.WaitRunning(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("WaitRunning hung with no running jobs")
	}
}

func TestRiverService_Stop_Idempotent(t *testing.T) {
	svc := service.NewRiverService(nil, nil, &service.MockEmitter{}, nil)
	svc.Stop()
	svc.Stop()
	// Without Start, restarting watchers must not touch the store.
	svc.RestartWatchers()
}

func TestRiverService_RunJob(t *testing.T) {
	f := newFixture(t)
	path := f.writeCSV(t, "people.csv",
		"_id,person.name,person.coursename[name]\n"+
			"1,Andrew Ng,Machine Learning\n"+
			"1,Andrew Ng,Recommender Systems\n"+
			"2,Doug Cutting,\n")

	job, err := f.svc.CreateJob(csvInput("people", path))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if job.SinkType != etl.SinkLocalDB || job.TriggerType != etl.TriggerManual {
		t.Fatalf("defaults not applied: %+v", job)
	}

	res, err := f.svc.RunJob(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if diff := cmp.Diff(river.Stats{Rows: 3, Documents: 2, Indexed: 2}, res.Stats); diff != "" {
		t.Errorf("stats mismatch (-want +got):\n%s", diff)
	}

	doc, err := f.docs.GetDocument(context.Background(), "people", "1")
	if err != nil {
		t.Fatal(err)
	}
	want := `{"person":{"name":"Andrew Ng","coursename":[{"name":"Machine Learning"},{"name":"Recommender Systems"}]}}`
	if doc.Body != want {
		t.Errorf("body = %s", doc.Body)
	}
	doc, _ = f.docs.GetDocument(context.Background(), "people", "2")
	if doc == nil || doc.Body != `{"person":{"name":"Doug Cutting"}}` {
		t.Errorf("unexpected second document %+v", doc)
	}

	stored, _ := f.svc.GetJob(job.ID)
	if stored.LastStatus != etl.StatusSuccess || stored.LastError != "" {
		t.Errorf("status not recorded: %+v", stored)
	}
	logs, err := f.svc.ListRunLogs(job.ID, 0)
	if err != nil || len(logs) != 1 || logs[0].Stats.Documents != 2 {
		t.Fatalf("run log: %v %+v", err, logs)
	}

	if len(f.emitter.Events) != 1 || f.emitter.Events[0].Event != service.EventRunCompleted {
		t.Fatalf("unexpected events %+v", f.emitter.Events)
	}
	ev := f.emitter.Events[0].Data.(service.RunEvent)
	if ev.Name != "people" || ev.Status != etl.StatusSuccess {
		t.Errorf("unexpected event payload %+v", ev)
	}
}

func TestRiverService_RunJobFailureRecorded(t *testing.T) {
	f := newFixture(t)
	job, err := f.svc.CreateJob(csvInput("broken", filepath.Join(f.dir, "missing.csv")))
	if err != nil {
		t.Fatal(err)
	}

	res, err := f.svc.RunJob(context.Background(), job.ID)
	if err == nil || res.Status != etl.StatusError {
		t.Fatalf("expected failure, got %v %+v", err, res)
	}
	stored, _ := f.svc.GetJob(job.ID)
	if stored.LastStatus != etl.StatusError || stored.LastError == "" {
		t.Errorf("failure not recorded: %+v", stored)
	}
	logs, _ := f.svc.ListRunLogs(job.ID, 10)
	if len(logs) != 1 || logs[0].Error == "" {
		t.Errorf("run log missing error: %+v", logs)
	}
	ev := f.emitter.Events[0].Data.(service.RunEvent)
	if ev.Status != etl.StatusError || ev.Error == "" {
		t.Errorf("unexpected event payload %+v", ev)
	}
}

func TestRiverService_CreateJobValidation(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.CreateJob(service.CreateRiverInput{SourceType: "csv_file"}); err == nil {
		t.Error("expected error without name")
	}
	if _, err := f.svc.CreateJob(service.CreateRiverInput{Name: "x", SourceType: "ftp"}); err == nil {
		t.Error("expected error for unknown source")
	}
	in := csvInput("x", "/tmp/x.csv")
	in.Options = etl.RiverOptions{Digest: true, DigestScope: "body"}
	if _, err := f.svc.CreateJob(in); err == nil {
		t.Error("expected error for bad digest scope")
	}
}

func TestRiverService_UpdateAndDeleteJob(t *testing.T) {
	f := newFixture(t)
	job, err := f.svc.CreateJob(csvInput("people", "/tmp/a.csv"))
	if err != nil {
		t.Fatal(err)
	}
	in := csvInput("people", "/tmp/b.csv")
	in.Target = "persons"
	if err := f.svc.UpdateJob(job.ID, in); err != nil {
		t.Fatal(err)
	}
	got, _ := f.svc.GetJobByName("people")
	if got.Target != "persons" || got.SourceCfg.String("filePath", "") != "/tmp/b.csv" {
		t.Errorf("update not applied: %+v", got)
	}
	if err := f.svc.DeleteJob(job.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.GetJob(job.ID); !errors.Is(err, storage.ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}
}

func TestRiverService_SyncConfigJobs(t *testing.T) {
	f := newFixture(t)
	declare := func(target string, names ...string) []etl.Job {
		var jobs []etl.Job
		for _, n := range names {
			jobs = append(jobs, etl.Job{
				Name:        n,
				SourceType:  "csv_file",
				SourceCfg:   etl.SourceConfig{"filePath": "/tmp/" + n + ".csv"},
				SinkType:    etl.SinkLocalDB,
				Target:      target,
				TriggerType: etl.TriggerManual,
				Enabled:     true,
			})
		}
		return jobs
	}

	if err := f.svc.SyncConfigJobs(declare("a", "one", "two")); err != nil {
		t.Fatal(err)
	}
	first, _ := f.svc.GetJobByName("one")

	if err := f.svc.SyncConfigJobs(declare("b", "one", "three")); err != nil {
		t.Fatal(err)
	}
	jobs, _ := f.svc.ListJobs()
	got := map[string]string{}
	for _, j := range jobs {
		got[j.Name] = j.Target
	}
	if diff := cmp.Diff(map[string]string{"one": "b", "three": "b"}, got); diff != "" {
		t.Errorf("jobs mismatch (-want +got):\n%s", diff)
	}
	again, _ := f.svc.GetJobByName("one")
	if again.ID != first.ID {
		t.Errorf("job id changed across syncs: %s != %s", first.ID, again.ID)
	}
}

func TestRiverService_PreviewJob(t *testing.T) {
	f := newFixture(t)
	path := f.writeCSV(t, "tags.csv", "_id,tags[]\n1,a\n2,b\n3,c\n")
	in := csvInput("tags", path)
	in.Options = etl.RiverOptions{SingletonArrays: true}
	job, err := f.svc.CreateJob(in)
	if err != nil {
		t.Fatal(err)
	}

	res, err := f.svc.PreviewJob(context.Background(), job.ID, 2)
	if err != nil {
		t.Fatal(err)
	}
	want := []river.SinkCall{
		{Op: "index", ID: "1", Body: `{"tags":"a"}`},
		{Op: "index", ID: "2", Body: `{"tags":"b"}`},
	}
	if diff := cmp.Diff(want, res.Documents); diff != "" {
		t.Errorf("preview mismatch (-want +got):\n%s", diff)
	}
	if !res.Truncated {
		t.Error("expected truncated preview")
	}
	if docs, _ := f.docs.ListDocuments(context.Background(), "people", 0); len(docs) != 0 {
		t.Errorf("preview must not write documents, found %d", len(docs))
	}
}

func TestRiverService_FileWatchTrigger(t *testing.T) {
	f := newFixture(t)
	path := f.writeCSV(t, "watched.csv", "_id,v\n1,a\n")
	in := csvInput("watched", path)
	in.TriggerType = etl.TriggerFileWatch
	in.TriggerConfig = path
	if _, err := f.svc.CreateJob(in); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.svc.Start(ctx)

	f.writeCSV(t, "watched.csv", "_id,v\n1,b\n")

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		doc, err := f.docs.GetDocument(context.Background(), "people", "1")
		if err == nil && doc.Body == `{"v":"b"}` {
			f.svc.Stop()
			f.svc.WaitRunning(context.Background())
			return
		}
		if err != nil && !errors.Is(err, domain.ErrDocumentNotFound) {
			t.Fatal(err)
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal("file change did not trigger a run")
}
