package sources

import (
	"context"
	"fmt"

	"rowriver/internal/dbclient"
	"rowriver/internal/domain"
	"rowriver/internal/etl"
)

// ── Database Source ────────────────────────────────────────
// Reads rows from a declared database connection with a query.
// A fresh connector is opened per read so concurrent runs never share a cursor.

var connections domain.ConnectionResolver

// SetConnections is called at startup with the declared connections.
func SetConnections(r domain.ConnectionResolver) { connections = r }

type databaseSource struct{}

func init() { etl.RegisterSource(&databaseSource{}) }

func (s *databaseSource) Spec() etl.SourceSpec {
	return etl.SourceSpec{
		Type:  "database",
		Label: "Database Query",
		ConfigFields: []etl.ConfigField{
			{Key: "connection", Label: "Connection", Type: "connection", Required: true, Help: "Name of a connection declared in the config file"},
			{Key: "query", Label: "Query", Type: "string", Required: true, Help: "Read query; rows sharing _id and _optype should be adjacent (ORDER BY)"},
			{Key: "fetchSize", Label: "Fetch Size", Type: "number", Default: "500", Help: "Rows fetched per round trip"},
		},
	}
}

func (s *databaseSource) Read(ctx context.Context, cfg etl.SourceConfig) (<-chan etl.Record, <-chan error) {
	out := make(chan etl.Record, 100)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		name := cfg.String("connection", "")
		query := cfg.String("query", "")
		if name == "" || query == "" {
			errCh <- fmt.Errorf("connection and query are required")
			return
		}
		if connections == nil {
			errCh <- fmt.Errorf("no connections configured")
			return
		}
		conn, err := connections.Connection(name)
		if err != nil {
			errCh <- err
			return
		}
		connector, err := dbclient.NewConnector(conn)
		if err != nil {
			errCh <- err
			return
		}
		defer connector.Close()

		fetchSize := cfg.Int("fetchSize", 500)
		page, err := connector.Execute(ctx, query, fetchSize)
		if err != nil {
			errCh <- fmt.Errorf("execute: %w", err)
			return
		}
		if !emitPage(ctx, out, page) {
			return
		}

		for page.HasMore {
			page, err = connector.FetchMore(ctx, fetchSize)
			if err != nil {
				errCh <- fmt.Errorf("fetch more: %w", err)
				return
			}
			if !emitPage(ctx, out, page) {
				return
			}
		}
	}()

	return out, errCh
}

func emitPage(ctx context.Context, out chan<- etl.Record, page *dbclient.QueryPage) bool {
	for _, row := range page.Rows {
		select {
		case out <- etl.Record{Columns: page.Columns, Values: row}:
		case <-ctx.Done():
			return false
		}
	}
	return true
}
