package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/sbetterfy/internal/dbx"
	"github.com/dmitrijs2005/sbetterfy/internal/server/repositories/users"
	"github.com/dmitrijs2005/sbetterfy/internal/vault"
)

// Store adapts the users repository to the vault storage contract and adds
// transactional batches on top of it.
type Store struct {
	users.Repository
	db *sql.DB
	m  RepositoryManager
}

func NewStore(db *sql.DB, m RepositoryManager) *Store {
	return &Store{Repository: m.Users(db), db: db, m: m}
}

// InTx runs fn against a repository bound to a single transaction.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, st vault.Store) error) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(ctx, s.m.Users(tx))
	})
}
