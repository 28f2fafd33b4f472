package dbclient

import (
	"fmt"
	"sort"
	"strings"

	"rowriver/internal/domain"

	_ "github.com/lib/pq"
)

// buildPostgresDSN constructs a Postgres connection string from a DatabaseConnection.
func buildPostgresDSN(conn *domain.DatabaseConnection) string {
	port := conn.Port
	if port == 0 {
		port = 5432
	}
	sslMode := conn.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		conn.Host, port, conn.Username, conn.Password, conn.Database, sslMode,
	)
	for _, k := range sortedKeys(conn.Options) {
		dsn += " " + k + "=" + conn.Options[k]
	}
	return dsn
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// uriParams renders options as a query string, sorted for stable output.
func uriParams(m map[string]string) string {
	params := make([]string, 0, len(m))
	for _, k := range sortedKeys(m) {
		params = append(params, k+"="+m[k])
	}
	return strings.Join(params, "&")
}
