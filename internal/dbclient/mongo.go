package dbclient

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"rowriver/internal/domain"
)

// MongoURI builds the connection URI for a mongodb connection. A host that is
// already a mongodb:// or mongodb+srv:// URI is used as is, with <password>
// placeholders filled in.
func MongoURI(conn *domain.DatabaseConnection) string {
	if strings.HasPrefix(conn.Host, "mongodb+srv://") || strings.HasPrefix(conn.Host, "mongodb://") {
		uri := conn.Host
		if conn.Password != "" {
			uri = strings.ReplaceAll(uri, "<password>", conn.Password)
			uri = strings.ReplaceAll(uri, "<db_password>", conn.Password)
		}
		return uri
	}

	port := conn.Port
	if port == 0 {
		port = 27017
	}
	var uri string
	if conn.Username != "" {
		uri = fmt.Sprintf("mongodb://%s:%s@%s:%d", conn.Username, conn.Password, conn.Host, port)
	} else {
		uri = fmt.Sprintf("mongodb://%s:%d", conn.Host, port)
	}
	if len(conn.Options) > 0 {
		uri += "/?" + uriParams(conn.Options)
	}
	return uri
}

// MongoDatabase returns the database a mongodb connection writes into: the
// configured name, else the path of the URI, else "test".
func MongoDatabase(conn *domain.DatabaseConnection) string {
	if conn.Database != "" {
		return conn.Database
	}
	rest := conn.Host
	for _, prefix := range []string{"mongodb+srv://", "mongodb://"} {
		if strings.HasPrefix(rest, prefix) {
			rest = rest[len(prefix):]
			break
		}
	}
	if at := strings.Index(rest, "@"); at != -1 {
		rest = rest[at+1:]
	}
	if slash := strings.Index(rest, "/"); slash != -1 {
		path := rest[slash+1:]
		if q := strings.Index(path, "?"); q != -1 {
			path = path[:q]
		}
		if path != "" {
			return path
		}
	}
	return "test"
}

// ConnectMongo opens a client for conn and verifies it with a ping.
func ConnectMongo(ctx context.Context, conn *domain.DatabaseConnection) (*mongo.Client, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(MongoURI(conn)))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client, nil
}
