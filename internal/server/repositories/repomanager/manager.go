package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/sbetterfy/internal/dbx"
	"github.com/dmitrijs2005/sbetterfy/internal/server/repositories/users"
)

// RepositoryManager vends repositories for one database backend and
// migrates its schema.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Dialect() dbx.Dialect
}
