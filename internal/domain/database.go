package domain

// DatabaseDriver represents the type of database engine.
type DatabaseDriver string

const (
	DatabaseDriverMySQL    DatabaseDriver = "mysql"
	DatabaseDriverPostgres DatabaseDriver = "postgres"
	DatabaseDriverMongoDB  DatabaseDriver = "mongodb"
	DatabaseDriverSQLite   DatabaseDriver = "sqlite"
)

// Valid reports whether d is a known driver.
func (d DatabaseDriver) Valid() bool {
	switch d {
	case DatabaseDriverMySQL, DatabaseDriverPostgres, DatabaseDriverMongoDB, DatabaseDriverSQLite:
		return true
	}
	return false
}

// DatabaseConnection holds what is needed to reach an external database.
// Connections are declared in the config file; the password usually arrives
// through environment expansion.
type DatabaseConnection struct {
	Name     string            `json:"name" yaml:"name"`
	Driver   DatabaseDriver    `json:"driver" yaml:"driver"`
	Host     string            `json:"host" yaml:"host"` // hostname, full mongodb URI, or file path (sqlite)
	Port     int               `json:"port" yaml:"port"` // 0 for sqlite
	Database string            `json:"database" yaml:"database"`
	Username string            `json:"username" yaml:"username"`
	Password string            `json:"-" yaml:"password"`
	SSLMode  string            `json:"sslMode" yaml:"sslmode"`
	Options  map[string]string `json:"options,omitempty" yaml:"options"` // driver-specific URI parameters
}

// ConnectionResolver looks up a declared connection by name.
type ConnectionResolver interface {
	Connection(name string) (*DatabaseConnection, error)
}
