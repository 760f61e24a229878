package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/sbetterfy/internal/dbx"
	"github.com/dmitrijs2005/sbetterfy/internal/server/migrations"
	"github.com/dmitrijs2005/sbetterfy/internal/server/repositories/users"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

// SQLiteRepositoryManager is the single-file backend used for development
// and small deployments.
type SQLiteRepositoryManager struct{}

func (m *SQLiteRepositoryManager) Users(db dbx.DBTX) users.Repository {
	return users.NewRepository(db, dbx.SQLite)
}

func (m *SQLiteRepositoryManager) Dialect() dbx.Dialect { return dbx.SQLite }

func (m *SQLiteRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	return gooseUp(ctx, goose.DialectSQLite3, db, migrations.Migrations)
}

func NewSQLiteRepositoryManager() RepositoryManager {
	return &SQLiteRepositoryManager{}
}
