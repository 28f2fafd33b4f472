package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"rowriver/internal/river"
)

func TestObserver_CountsByOp(t *testing.T) {
	obs := Observer{River: "test-counts"}
	obs.Flushed(river.FlushEvent{Op: river.OpIndex})
	obs.Flushed(river.FlushEvent{Op: river.OpIndex})
	obs.Flushed(river.FlushEvent{Op: river.OpDelete})
	obs.Flushed(river.FlushEvent{Op: river.OpIndex, Suppressed: true})
	obs.Anomaly(&river.UnknownOperationError{OpType: "merge", ID: "1"})

	if got := testutil.ToFloat64(flushesTotal.WithLabelValues("test-counts", river.OpIndex)); got != 2 {
		t.Errorf("index flushes = %v, want 2", got)
	}
	if got := testutil.ToFloat64(flushesTotal.WithLabelValues("test-counts", river.OpDelete)); got != 1 {
		t.Errorf("delete flushes = %v, want 1", got)
	}
	if got := testutil.ToFloat64(suppressedTotal.WithLabelValues("test-counts")); got != 1 {
		t.Errorf("suppressed = %v, want 1", got)
	}
	if got := testutil.ToFloat64(unknownOpTotal.WithLabelValues("test-counts")); got != 1 {
		t.Errorf("unknown op = %v, want 1", got)
	}
}

func TestObserveRun(t *testing.T) {
	ObserveRun("test-run", "success", 12, 30*time.Millisecond)
	if got := testutil.ToFloat64(rowsTotal.WithLabelValues("test-run")); got != 12 {
		t.Errorf("rows = %v, want 12", got)
	}
}
