package testutil

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

// OpenSQLite opens a fresh SQLite database under t.TempDir and runs the
// given statements against it. The database is closed when the test ends.
func OpenSQLite(t testing.TB, statements ...string) *sql.DB {
	t.Helper()
	db := openSeeded(t, filepath.Join(t.TempDir(), "fixture.db"), statements)
	t.Cleanup(func() { db.Close() })
	return db
}

// SQLiteFile creates a seeded SQLite database file under t.TempDir and
// returns its path, for code that opens the database itself.
func SQLiteFile(t testing.TB, statements ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture.db")
	db := openSeeded(t, path, statements)
	if err := db.Close(); err != nil {
		t.Fatalf("close sqlite fixture: %v", err)
	}
	return path
}

func openSeeded(t testing.TB, path string, statements []string) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("open sqlite fixture: %v", err)
	}
	db.SetMaxOpenConns(1)

	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			t.Fatalf("seed sqlite fixture: %q: %v", stmt, err)
		}
	}
	return db
}
