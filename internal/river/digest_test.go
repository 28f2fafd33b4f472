package river

import (
	"context"
	"errors"
	"testing"
)

func TestParseDigestScope(t *testing.T) {
	for in, want := range map[string]DigestScope{"": DigestByID, "id": DigestByID, "key": DigestByKey} {
		got, err := ParseDigestScope(in)
		if err != nil || got != want {
			t.Fatalf("ParseDigestScope(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseDigestScope("body"); err == nil {
		t.Fatal("expected error for unknown scope")
	}
}

func TestDigestGate(t *testing.T) {
	doc := NewMap()
	doc.Apply(FieldPath{Column: "a", Segments: []string{"a"}}, str("1"), 1, ",")
	other := NewMap()
	other.Apply(FieldPath{Column: "a", Segments: []string{"a"}}, str("2"), 1, ",")

	g := newDigestGate(DigestByID)
	k := Key{ID: "1", OpType: OpIndex}
	d, suppress, err := g.check(k, doc)
	if err != nil || suppress {
		t.Fatalf("first check: suppress=%v err=%v", suppress, err)
	}
	g.record(k, d)

	if _, suppress, _ := g.check(Key{ID: "1", OpType: OpCreate}, doc); !suppress {
		t.Fatal("same body under another operation type must be suppressed by id")
	}
	if _, suppress, _ := g.check(k, other); suppress {
		t.Fatal("changed body must not be suppressed")
	}
	if _, suppress, _ := g.check(Key{ID: "2", OpType: OpIndex}, doc); suppress {
		t.Fatal("other identifiers must not be suppressed")
	}

	g.forget("1")
	if _, suppress, _ := g.check(k, doc); suppress {
		t.Fatal("forgotten identifier must not be suppressed")
	}
}

func TestDigestGate_ByKey(t *testing.T) {
	doc := NewMap()
	g := newDigestGate(DigestByKey)
	k := Key{ID: "1", OpType: OpCreate}
	d, _, _ := g.check(k, doc)
	g.record(k, d)
	if _, suppress, _ := g.check(Key{ID: "1", OpType: OpIndex}, doc); suppress {
		t.Fatal("operation type change must be forwarded by key")
	}
	if _, suppress, _ := g.check(k, doc); !suppress {
		t.Fatal("repeat under same key must be suppressed")
	}
}

type countingObserver struct{ anomalies []error }

func (o *countingObserver) Anomaly(err error)  { o.anomalies = append(o.anomalies, err) }
func (o *countingObserver) Flushed(FlushEvent) {}

func TestRoute(t *testing.T) {
	ctx := context.Background()
	sink := &RecordingSink{}
	obs := &countingObserver{}
	doc := NewMap()

	for _, tt := range []struct{ in, want string }{
		{OpCreate, OpCreate},
		{OpIndex, OpIndex},
		{OpDelete, OpDelete},
		{"merge", OpIndex},
	} {
		got, err := Route(ctx, sink, obs, tt.in, "x", doc)
		if err != nil {
			t.Fatalf("Route(%q): %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("Route(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
	if len(sink.Calls) != 4 || sink.Calls[2].Body != "" {
		t.Fatalf("unexpected calls %+v", sink.Calls)
	}
	if len(obs.anomalies) != 1 || !errors.Is(obs.anomalies[0], ErrUnknownOperation) {
		t.Fatalf("expected one unknown-operation anomaly, got %v", obs.anomalies)
	}
}
