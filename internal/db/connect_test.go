package db

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

func TestEnsureSchema_AddsRoleToOldTeachersTable(t *testing.T) {
	ctx := context.Background()
	conn, err := sql.Open("sqlite", "file:"+filepath.Join(t.TempDir(), "old.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	conn.SetMaxOpenConns(1)

	if _, err := conn.ExecContext(ctx, `CREATE TABLE teachers (
  id INTEGER PRIMARY KEY AUTOINCREMENT, username TEXT UNIQUE NOT NULL, password_hash TEXT NOT NULL,
  name TEXT NOT NULL, email TEXT NOT NULL DEFAULT '', created_at INTEGER NOT NULL)`); err != nil {
		t.Fatal(err)
	}
	if _, err := conn.ExecContext(ctx, `INSERT INTO teachers (username, password_hash, name, created_at) VALUES ('a','h','A',1)`); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 2; i++ {
		if err := EnsureSchema(ctx, conn, DriverSQLite); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}
	var role string
	if err := conn.QueryRowContext(ctx, `SELECT role FROM teachers WHERE username='a'`).Scan(&role); err != nil || role != "teacher" {
		t.Fatalf("expected default role, got %q %v", role, err)
	}
}
