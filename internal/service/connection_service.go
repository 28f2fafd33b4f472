package service

import (
	"context"
	"fmt"
	"time"

	"rowriver/internal/dbclient"
	"rowriver/internal/domain"
)

// ─────────────────────────────────────────────────────────────
// Connection Service: reachability of declared databases
// ─────────────────────────────────────────────────────────────

// ConnectionService checks the connections declared in the config file.
type ConnectionService struct {
	conns []domain.DatabaseConnection

	// Timeout bounds a single connection test.
	Timeout time.Duration
}

// ConnectionStatus is the outcome of testing one connection.
type ConnectionStatus struct {
	Name    string                `json:"name"`
	Driver  domain.DatabaseDriver `json:"driver"`
	OK      bool                  `json:"ok"`
	Latency time.Duration         `json:"latency"`
	Error   string                `json:"error,omitempty"`
}

// NewConnectionService creates a ConnectionService over conns.
func NewConnectionService(conns []domain.DatabaseConnection) *ConnectionService {
	return &ConnectionService{conns: conns, Timeout: 10 * time.Second}
}

// ListConnections returns the declared connections. Passwords are never
// serialized.
func (s *ConnectionService) ListConnections() []domain.DatabaseConnection {
	out := make([]domain.DatabaseConnection, len(s.conns))
	copy(out, s.conns)
	return out
}

func (s *ConnectionService) find(name string) (*domain.DatabaseConnection, error) {
	for i := range s.conns {
		if s.conns[i].Name == name {
			return &s.conns[i], nil
		}
	}
	return nil, fmt.Errorf("connection %q is not declared", name)
}

// TestConnection opens the named connection and pings it.
func (s *ConnectionService) TestConnection(ctx context.Context, name string) ConnectionStatus {
	conn, err := s.find(name)
	if err != nil {
		return ConnectionStatus{Name: name, Error: err.Error()}
	}
	st := ConnectionStatus{Name: conn.Name, Driver: conn.Driver}

	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	start := time.Now()
	err = ping(ctx, conn)
	st.Latency = time.Since(start)
	if err != nil {
		st.Error = err.Error()
		return st
	}
	st.OK = true
	return st
}

// TestAll tests every declared connection in declaration order.
func (s *ConnectionService) TestAll(ctx context.Context) []ConnectionStatus {
	out := make([]ConnectionStatus, 0, len(s.conns))
	for _, c := range s.conns {
		out = append(out, s.TestConnection(ctx, c.Name))
	}
	return out
}

func ping(ctx context.Context, conn *domain.DatabaseConnection) error {
	if conn.Driver == domain.DatabaseDriverMongoDB {
		client, err := dbclient.ConnectMongo(ctx, conn)
		if err != nil {
			return err
		}
		return client.Disconnect(context.Background())
	}

	connector, err := dbclient.NewConnector(conn)
	if err != nil {
		return err
	}
	defer connector.Close()
	return connector.TestConnection(ctx)
}
