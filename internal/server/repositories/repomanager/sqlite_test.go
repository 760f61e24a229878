package repomanager

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/dmitrijs2005/sbetterfy/internal/common"
	"github.com/dmitrijs2005/sbetterfy/internal/dbx"
	"github.com/dmitrijs2005/sbetterfy/internal/server/models"
	"github.com/dmitrijs2005/sbetterfy/internal/vault"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_SQLiteMigratesSchema(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "vault.db")

	db, m, err := Open(ctx, "sqlite", dsn)
	require.NoError(t, err)
	defer db.Close()
	assert.Equal(t, dbx.SQLite, m.Dialect())

	var n int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n))
	assert.Zero(t, n)

	// migrations are idempotent
	require.NoError(t, m.RunMigrations(ctx, db))
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, _, err := Open(context.Background(), "oracle", "dsn")
	assert.ErrorContains(t, err, "unsupported database driver")
}

func TestStore_InTxRollsBack(t *testing.T) {
	ctx := context.Background()
	db, m, err := Open(ctx, "sqlite", filepath.Join(t.TempDir(), "vault.db"))
	require.NoError(t, err)
	defer db.Close()

	s := NewStore(db, m)
	var _ vault.TxStore = s

	boom := errors.New("boom")
	err = s.InTx(ctx, func(ctx context.Context, st vault.Store) error {
		if err := st.PutCiphertext(ctx, "u1", models.AIAPIKey, []byte("x")); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = s.GetCiphertext(ctx, "u1", models.AIAPIKey)
	assert.ErrorIs(t, err, common.ErrorNotFound)

	err = s.InTx(ctx, func(ctx context.Context, st vault.Store) error {
		return st.PutCiphertext(ctx, "u1", models.AIAPIKey, []byte("x"))
	})
	require.NoError(t, err)

	got, err := s.GetCiphertext(ctx, "u1", models.AIAPIKey)
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), got)
}
