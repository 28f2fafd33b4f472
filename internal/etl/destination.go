package etl

import (
	"context"
	"encoding/json"
	"fmt"

	"rowriver/internal/domain"
	"rowriver/internal/river"
)

// ── Destination ────────────────────────────────────────────
// A Destination opens a river sink on a target system for one run.

// Sink types.
const (
	SinkLocalDB = "localdb"
	SinkMongoDB = "mongodb"
)

// Sink is a river sink holding resources for the length of a run.
type Sink interface {
	river.Sink
	Close(ctx context.Context) error
}

// Destination opens sinks. connection names a declared database connection
// for destinations that need one; target is the collection.
type Destination interface {
	Open(ctx context.Context, connection, target string) (Sink, error)
}

// ── LocalDB Destination ────────────────────────────────────
// Writes documents into the local document store.

// LocalDBDestination implements Destination over a domain.DocumentStore.
type LocalDBDestination struct {
	Store domain.DocumentStore
}

func (d *LocalDBDestination) Open(_ context.Context, _, target string) (Sink, error) {
	if target == "" {
		return nil, fmt.Errorf("localdb sink: target collection is required")
	}
	return &localDBSink{store: d.Store, collection: target}, nil
}

type localDBSink struct {
	store      domain.DocumentStore
	collection string
}

func (s *localDBSink) document(id string, doc *river.Node) (*domain.Document, error) {
	body, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode document %s: %w", id, err)
	}
	return &domain.Document{Collection: s.collection, ID: id, Body: string(body)}, nil
}

func (s *localDBSink) Create(ctx context.Context, id string, doc *river.Node) error {
	d, err := s.document(id, doc)
	if err != nil {
		return err
	}
	return s.store.CreateDocument(ctx, d)
}

func (s *localDBSink) Index(ctx context.Context, id string, doc *river.Node) error {
	d, err := s.document(id, doc)
	if err != nil {
		return err
	}
	return s.store.UpsertDocument(ctx, d)
}

func (s *localDBSink) Delete(ctx context.Context, id string) error {
	return s.store.DeleteDocument(ctx, s.collection, id)
}

func (s *localDBSink) Close(context.Context) error { return nil }
