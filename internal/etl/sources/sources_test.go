package sources_test

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"rowriver/internal/domain"
	"rowriver/internal/etl"
	"rowriver/internal/etl/sources"

	_ "modernc.org/sqlite"
)

type staticConnections map[string]*domain.DatabaseConnection

func (c staticConnections) Connection(name string) (*domain.DatabaseConnection, error) {
	conn, ok := c[name]
	if !ok {
		return nil, fmt.Errorf("unknown connection %q", name)
	}
	return conn, nil
}

// collect drains a source read into plain string rows; NULL becomes "<nil>".
func collect(t *testing.T, typ string, cfg etl.SourceConfig) ([]string, [][]string, error) {
	t.Helper()
	src, err := etl.GetSource(typ)
	if err != nil {
		t.Fatal(err)
	}
	recCh, errCh := src.Read(context.Background(), cfg)
	var header []string
	var rows [][]string
	for rec := range recCh {
		header = rec.Columns
		row := make([]string, len(rec.Values))
		for i, v := range rec.Values {
			if v == nil {
				row[i] = "<nil>"
			} else {
				row[i] = *v
			}
		}
		rows = append(rows, row)
	}
	return header, rows, <-errCh
}

func TestCSVFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "people.csv")
	content := "_id;person.name[];person.position.since\n1;Joe,John;NULL\n1;Mark;2012-06-13\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	header, rows, err := collect(t, "csv_file", etl.SourceConfig{
		"filePath": path, "delimiter": ";", "nullValue": "NULL",
	})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if diff := cmp.Diff([]string{"_id", "person.name[]", "person.position.since"}, header); diff != "" {
		t.Errorf("header mismatch (-want +got):\n%s", diff)
	}
	want := [][]string{
		{"1", "Joe,John", "<nil>"},
		{"1", "Mark", "2012-06-13"},
	}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestCSVFileSource_EmptyCellIsNullByDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.csv")
	if err := os.WriteFile(path, []byte("_id,v\n1,\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, rows, err := collect(t, "csv_file", etl.SourceConfig{"filePath": path})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([][]string{{"1", "<nil>"}}, rows); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestCSVFileSource_MissingFile(t *testing.T) {
	_, _, err := collect(t, "csv_file", etl.SourceConfig{"filePath": filepath.Join(t.TempDir(), "nope.csv")})
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	_, _, err = collect(t, "csv_file", etl.SourceConfig{})
	if err == nil {
		t.Fatal("expected error without filePath")
	}
}

func TestDatabaseSource_SQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "src.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	for _, stmt := range []string{
		`CREATE TABLE courses (pid TEXT, name TEXT, course TEXT)`,
		`INSERT INTO courses VALUES ('1', 'Andrew Ng', 'Machine Learning'), ('1', 'Andrew Ng', NULL), ('2', 'Doug Cutting', 'Hadoop Internals')`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatal(err)
		}
	}
	db.Close()

	sources.SetConnections(staticConnections{
		"local": {Name: "local", Driver: domain.DatabaseDriverSQLite, Host: path},
	})
	t.Cleanup(func() { sources.SetConnections(nil) })

	header, rows, err := collect(t, "database", etl.SourceConfig{
		"connection": "local",
		"query":      `SELECT pid AS _id, name AS "person.name", course AS "person.coursename[name]" FROM courses ORDER BY rowid`,
		"fetchSize":  float64(2),
	})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if diff := cmp.Diff([]string{"_id", "person.name", "person.coursename[name]"}, header); diff != "" {
		t.Errorf("header mismatch (-want +got):\n%s", diff)
	}
	want := [][]string{
		{"1", "Andrew Ng", "Machine Learning"},
		{"1", "Andrew Ng", "<nil>"},
		{"2", "Doug Cutting", "Hadoop Internals"},
	}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestDatabaseSource_Errors(t *testing.T) {
	sources.SetConnections(staticConnections{})
	t.Cleanup(func() { sources.SetConnections(nil) })

	if _, _, err := collect(t, "database", etl.SourceConfig{"query": "SELECT 1"}); err == nil {
		t.Error("expected error without connection")
	}
	if _, _, err := collect(t, "database", etl.SourceConfig{"connection": "missing", "query": "SELECT 1"}); err == nil {
		t.Error("expected error for unknown connection")
	}
}

func TestRegistry(t *testing.T) {
	var types []string
	for _, spec := range etl.ListSources() {
		types = append(types, spec.Type)
	}
	if diff := cmp.Diff([]string{"csv_file", "database"}, types); diff != "" {
		t.Errorf("registered sources mismatch (-want +got):\n%s", diff)
	}
}
