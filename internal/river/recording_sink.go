package river

import (
	"context"
	"encoding/json"
)

// RecordingSink is a Sink that keeps every call in memory. It backs document
// previews and is handy in tests.
type RecordingSink struct {
	Calls []SinkCall
	// Err, when set, is returned from every call after it is recorded.
	Err error
}

// SinkCall is one recorded sink invocation. Body is the JSON document for
// create and index calls and empty for deletes.
type SinkCall struct {
	Op   string
	ID   string
	Body string
}

func (s *RecordingSink) Create(_ context.Context, id string, doc *Node) error {
	return s.record(OpCreate, id, doc)
}

func (s *RecordingSink) Index(_ context.Context, id string, doc *Node) error {
	return s.record(OpIndex, id, doc)
}

func (s *RecordingSink) Delete(_ context.Context, id string) error {
	s.Calls = append(s.Calls, SinkCall{Op: OpDelete, ID: id})
	return s.Err
}

func (s *RecordingSink) record(op, id string, doc *Node) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	s.Calls = append(s.Calls, SinkCall{Op: op, ID: id, Body: string(body)})
	return s.Err
}

// Documents returns the calls that carried a body.
func (s *RecordingSink) Documents() []SinkCall {
	var docs []SinkCall
	for _, c := range s.Calls {
		if c.Op != OpDelete {
			docs = append(docs, c)
		}
	}
	return docs
}
