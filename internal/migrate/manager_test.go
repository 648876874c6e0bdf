package migrate

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestListSQLSortsAndFilters(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "0002_second.up.sql", "select 2;")
	writeFile(t, dir, "0001_first.up.sql", "select 1;")
	writeFile(t, dir, "0001_first.down.sql", "select 0;")
	writeFile(t, dir, "notes.txt", "ignore me")

	names, err := listSQL(dir, ".up.sql")
	if err != nil {
		t.Fatalf("listSQL: %v", err)
	}
	if len(names) != 2 || names[0] != "0001_first.up.sql" || names[1] != "0002_second.up.sql" {
		t.Fatalf("names = %v", names)
	}
}

func TestListSQLMissingDir(t *testing.T) {
	names, err := listSQL(filepath.Join(t.TempDir(), "absent"), ".sql")
	if err != nil {
		t.Fatalf("listSQL: %v", err)
	}
	if names != nil {
		t.Fatalf("names = %v, want nil", names)
	}
}

func TestSplitStatements(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"create table a(id int);", 1},
		{"create table a(id int); create table b(id int);", 2},
		{"insert into a values ('x;y'); select 1;", 2},
		{"select 1", 1},
		{"  \n ", 0},
	}
	for _, tc := range tests {
		if got := len(splitStatements(tc.in)); got != tc.want {
			t.Fatalf("splitStatements(%q) = %d statements, want %d", tc.in, got, tc.want)
		}
	}
}

func TestUpAppliesOnlyPending(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "0001_init.up.sql", "create table principals(id text primary key);")
	writeFile(t, dir, "0002_audit.up.sql", "create table audit_entries(id text primary key);")

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("create table if not exists schema_migrations").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("create table if not exists schema_seeds").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("select name from schema_migrations").
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("0001_init.up.sql"))

	// Only the second migration runs, inside one transaction with its record.
	mock.ExpectBegin()
	mock.ExpectExec("create table audit_entries").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("insert into schema_migrations").
		WithArgs("0002_audit.up.sql", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	m := NewManager(db, dir, "")
	if err := m.Up(context.Background()); err != nil {
		t.Fatalf("Up: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestDownRequiresDownFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "0001_init.up.sql", "create table principals(id text primary key);")

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("create table if not exists schema_migrations").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("create table if not exists schema_seeds").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("select name from schema_migrations").
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("0001_init.up.sql"))

	m := NewManager(db, dir, "")
	if err := m.Down(context.Background()); err == nil {
		t.Fatal("Down succeeded without a .down.sql file")
	}
}
