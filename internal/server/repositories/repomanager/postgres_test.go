package repomanager

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/sbetterfy/internal/dbx"
	"github.com/dmitrijs2005/sbetterfy/internal/server/repositories/users"
	"github.com/pressly/goose/v3"
)

func newDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return db, mock
}

func TestNewPostgresRepositoryManager_ReturnsInterface(t *testing.T) {
	m := NewPostgresRepositoryManager()
	if m.Dialect() != dbx.Postgres {
		t.Fatalf("unexpected dialect %q", m.Dialect())
	}
}

func TestFactories_ReturnConcreteRepos(t *testing.T) {
	db, _ := newDB(t)
	defer db.Close()

	for _, m := range []RepositoryManager{&PostgresRepositoryManager{}, &SQLiteRepositoryManager{}} {
		u := m.Users(db)
		if u == nil {
			t.Fatal("Users() nil")
		}
		if _, ok := u.(*users.SQLRepository); !ok {
			t.Fatalf("unexpected repository type %T", u)
		}
	}
}

func TestRunMigrations_Success(t *testing.T) {
	db, _ := newDB(t)
	defer db.Close()

	var gotDialect goose.Dialect
	orig := gooseUp
	gooseUp = func(ctx context.Context, dialect goose.Dialect, db *sql.DB, fsys fs.FS) error {
		gotDialect = dialect
		if _, err := fs.Stat(fsys, "00001_create_users.sql"); err != nil {
			return err
		}
		return nil
	}
	defer func() { gooseUp = orig }()

	m := &PostgresRepositoryManager{}
	if err := m.RunMigrations(context.Background(), db); err != nil {
		t.Fatalf("RunMigrations error: %v", err)
	}
	if gotDialect != goose.DialectPostgres {
		t.Fatalf("unexpected dialect %q", gotDialect)
	}
}

func TestRunMigrations_Error(t *testing.T) {
	db, _ := newDB(t)
	defer db.Close()

	orig := gooseUp
	gooseUp = func(ctx context.Context, dialect goose.Dialect, db *sql.DB, fsys fs.FS) error {
		return errors.New("boom")
	}
	defer func() { gooseUp = orig }()

	m := &PostgresRepositoryManager{}
	if err := m.RunMigrations(context.Background(), db); err == nil || err.Error() != "boom" {
		t.Fatalf("expected boom, got %v", err)
	}
}
