package dbclient

import (
	"context"
	"errors"
	"fmt"

	"rowriver/internal/domain"
)

// ErrWriteQuery is returned when a river source query would modify data.
var ErrWriteQuery = errors.New("only read queries can feed a river")

// QueryPage is a batch of rows fetched from a query cursor. NULL values are
// nil; everything else is rendered as a string.
type QueryPage struct {
	Columns      []string    `json:"columns"`
	Rows         [][]*string `json:"rows"`
	TotalFetched int         `json:"totalFetched"` // total rows fetched so far
	HasMore      bool        `json:"hasMore"`      // cursor has more rows
}

// Connector reads rows from an external database.
type Connector interface {
	// TestConnection verifies connectivity.
	TestConnection(ctx context.Context) error

	// Execute runs a read query, opens a cursor and fetches fetchSize rows.
	Execute(ctx context.Context, query string, fetchSize int) (*QueryPage, error)

	// FetchMore continues reading from the open cursor.
	FetchMore(ctx context.Context, fetchSize int) (*QueryPage, error)

	// Close closes the connection and any open cursors.
	Close() error
}

// NewConnector creates a Connector for the given database connection.
func NewConnector(conn *domain.DatabaseConnection) (Connector, error) {
	switch conn.Driver {
	case domain.DatabaseDriverSQLite:
		return newSQLiteConnector(conn)
	case domain.DatabaseDriverMySQL:
		return newSQLConnector("mysql", buildMySQLDSN(conn))
	case domain.DatabaseDriverPostgres:
		return newSQLConnector("postgres", buildPostgresDSN(conn))
	case domain.DatabaseDriverMongoDB:
		return nil, fmt.Errorf("driver %s can only be used as a sink", conn.Driver)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", conn.Driver)
	}
}
