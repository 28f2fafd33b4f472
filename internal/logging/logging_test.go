package logging

import (
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"rowriver/internal/river"
)

func TestNew(t *testing.T) {
	for _, tt := range []struct {
		level, format string
		wantErr       bool
	}{
		{"", "", false},
		{"debug", "json", false},
		{"WARN", "text", false},
		{"loud", "json", true},
		{"info", "xml", true},
	} {
		_, err := New(tt.level, tt.format)
		if (err != nil) != tt.wantErr {
			t.Errorf("New(%q, %q) err = %v, wantErr %v", tt.level, tt.format, err, tt.wantErr)
		}
	}
}

func TestObserver(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	obs := Observer{Log: zap.New(core)}

	obs.Anomaly(&river.UnknownOperationError{OpType: "upsert", ID: "7"})
	obs.Anomaly(errors.New("odd"))
	obs.Flushed(river.FlushEvent{Key: river.Key{ID: "7", OpType: "index"}, Op: "index", Rows: 2})
	obs.Flushed(river.FlushEvent{Key: river.Key{ID: "7", OpType: "index"}, Rows: 1, Suppressed: true})

	entries := logs.All()
	if len(entries) != 4 {
		t.Fatalf("expected 4 log entries, got %d", len(entries))
	}
	if entries[0].Level != zapcore.WarnLevel || entries[0].ContextMap()["op_type"] != "upsert" {
		t.Errorf("unexpected first entry %+v", entries[0])
	}
	if entries[3].Message != "flush suppressed, document unchanged" {
		t.Errorf("unexpected suppressed entry %q", entries[3].Message)
	}
}

type counting struct{ anomalies, flushes int }

func (c *counting) Anomaly(error)            { c.anomalies++ }
func (c *counting) Flushed(river.FlushEvent) { c.flushes++ }

func TestTee(t *testing.T) {
	a, b := &counting{}, &counting{}
	tee := Tee{a, nil, b}
	tee.Anomaly(errors.New("x"))
	tee.Flushed(river.FlushEvent{})
	if a.anomalies != 1 || b.flushes != 1 {
		t.Fatalf("tee did not fan out: %+v %+v", a, b)
	}
}
