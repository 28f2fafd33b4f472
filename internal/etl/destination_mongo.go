package etl

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"rowriver/internal/dbclient"
	"rowriver/internal/domain"
	"rowriver/internal/river"
)

// ── MongoDB Destination ────────────────────────────────────
// create → insertOne, index → replaceOne with upsert, delete → deleteOne.
// The river identifier becomes _id.

// MongoDestination implements Destination for MongoDB connections.
type MongoDestination struct {
	Connections domain.ConnectionResolver
}

func (d *MongoDestination) Open(ctx context.Context, connection, target string) (Sink, error) {
	if target == "" {
		return nil, fmt.Errorf("mongodb sink: target collection is required")
	}
	if d.Connections == nil {
		return nil, fmt.Errorf("mongodb sink: no connections configured")
	}
	conn, err := d.Connections.Connection(connection)
	if err != nil {
		return nil, err
	}
	if conn.Driver != domain.DatabaseDriverMongoDB {
		return nil, fmt.Errorf("mongodb sink: connection %q uses driver %s", connection, conn.Driver)
	}
	client, err := dbclient.ConnectMongo(ctx, conn)
	if err != nil {
		return nil, err
	}
	coll := client.Database(dbclient.MongoDatabase(conn)).Collection(target)
	return &mongoSink{client: client, coll: coll}, nil
}

type mongoSink struct {
	client *mongo.Client
	coll   *mongo.Collection
}

func (s *mongoSink) Create(ctx context.Context, id string, doc *river.Node) error {
	_, err := s.coll.InsertOne(ctx, documentBSON(id, doc))
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %s", domain.ErrDocumentExists, id)
	}
	return err
}

func (s *mongoSink) Index(ctx context.Context, id string, doc *river.Node) error {
	_, err := s.coll.ReplaceOne(ctx, bson.D{{Key: "_id", Value: id}}, documentBSON(id, doc),
		options.Replace().SetUpsert(true))
	return err
}

func (s *mongoSink) Delete(ctx context.Context, id string) error {
	_, err := s.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	return err
}

func (s *mongoSink) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// documentBSON renders doc as an ordered BSON document with id as _id. A
// document field named _id is dropped in favour of the river identifier.
func documentBSON(id string, doc *river.Node) bson.D {
	out := bson.D{{Key: "_id", Value: id}}
	doc.Each(func(name string, child *river.Node) {
		if name == "_id" {
			return
		}
		out = append(out, bson.E{Key: name, Value: nodeBSON(child)})
	})
	return out
}

func nodeBSON(n *river.Node) any {
	switch n.Kind() {
	case river.KindScalar:
		return n.Scalar()
	case river.KindList:
		return bson.A(stringsToAny(n.List()))
	case river.KindObjectList:
		arr := make(bson.A, 0, len(n.Objects()))
		for _, obj := range n.Objects() {
			d := bson.D{}
			for p := obj.Oldest(); p != nil; p = p.Next() {
				d = append(d, bson.E{Key: p.Key, Value: p.Value})
			}
			arr = append(arr, d)
		}
		return arr
	default:
		d := bson.D{}
		n.Each(func(name string, child *river.Node) {
			d = append(d, bson.E{Key: name, Value: nodeBSON(child)})
		})
		return d
	}
}

func stringsToAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
