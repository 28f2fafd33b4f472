package river

import (
	"context"
)

// Operation types recognised in the operation-type column. Matching is exact.
const (
	OpIndex  = "index"
	OpCreate = "create"
	OpDelete = "delete"
)

// Sink receives finalized documents. Implementations may block; the session
// passes its caller's context through unchanged.
type Sink interface {
	Create(ctx context.Context, id string, doc *Node) error
	Index(ctx context.Context, id string, doc *Node) error
	Delete(ctx context.Context, id string) error
}

// Observer is told about flushes and recovered anomalies. It must not call
// back into the session.
type Observer interface {
	// Anomaly receives non-fatal problems such as *UnknownOperationError.
	Anomaly(err error)
	// Flushed is called once per accumulation after routing.
	Flushed(ev FlushEvent)
}

// FlushEvent describes the outcome of one flush.
type FlushEvent struct {
	Key        Key
	Op         string // operation actually sent to the sink
	Rows       int
	Suppressed bool
}

type nopObserver struct{}

func (nopObserver) Anomaly(error)      {}
func (nopObserver) Flushed(FlushEvent) {}

// KnownOp reports whether op is index, create or delete.
func KnownOp(op string) bool {
	switch op {
	case OpIndex, OpCreate, OpDelete:
		return true
	}
	return false
}

// Route sends doc to the sink method matching op and returns the operation it
// used. Deletes never look at doc. Unknown operations are indexed and reported
// to obs.
func Route(ctx context.Context, sink Sink, obs Observer, op, id string, doc *Node) (string, error) {
	switch op {
	case OpCreate:
		return OpCreate, sink.Create(ctx, id, doc)
	case OpDelete:
		return OpDelete, sink.Delete(ctx, id)
	case OpIndex:
		return OpIndex, sink.Index(ctx, id, doc)
	default:
		if obs != nil {
			obs.Anomaly(&UnknownOperationError{OpType: op, ID: id})
		}
		return OpIndex, sink.Index(ctx, id, doc)
	}
}
