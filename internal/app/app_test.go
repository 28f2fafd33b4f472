package app_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"rowriver/internal/app"
	"rowriver/internal/config"
	"rowriver/internal/etl"
)

func TestApp_RunOnce(t *testing.T) {
	dir := t.TempDir()
	csv := filepath.Join(dir, "people.csv")
	if err := os.WriteFile(csv, []byte("_optype,_id,name\nindex,1,Joe\ndelete,2,\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ROWRIVER_TEST_DIR", dir)

	cfg, err := config.Parse([]byte(`
storage:
  path: ${ROWRIVER_TEST_DIR}/state/river.db
rivers:
  - name: people
    source:
      type: csv_file
      config:
        filePath: ${ROWRIVER_TEST_DIR}/people.csv
    sink:
      target: people
`))
	if err != nil {
		t.Fatal(err)
	}

	a := app.New(cfg, zaptest.NewLogger(t))
	ctx := context.Background()
	if err := a.Startup(ctx); err != nil {
		t.Fatalf("startup: %v", err)
	}
	defer a.Shutdown(ctx)

	res, err := a.RunOnce(ctx, "people")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Status != etl.StatusSuccess || res.Stats.Indexed != 1 || res.Stats.Deleted != 1 {
		t.Fatalf("unexpected result %+v", res)
	}

	if _, err := a.RunOnce(ctx, ""); err == nil {
		t.Error("expected error without river name")
	}
	if _, err := a.RunOnce(ctx, "missing"); err == nil {
		t.Error("expected error for unknown river")
	}
}

func TestApp_ServeStopsOnCancel(t *testing.T) {
	cfg, err := config.Parse([]byte("storage:\n  path: " + filepath.Join(t.TempDir(), "river.db") + "\n"))
	if err != nil {
		t.Fatal(err)
	}
	a := app.New(cfg, nil)
	if err := a.Startup(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer a.Shutdown(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Serve(ctx) }()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
