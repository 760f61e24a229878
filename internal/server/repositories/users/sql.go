package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/sbetterfy/internal/common"
	"github.com/dmitrijs2005/sbetterfy/internal/cryptox"
	"github.com/dmitrijs2005/sbetterfy/internal/dbx"
	"github.com/dmitrijs2005/sbetterfy/internal/server/models"
)

// SQLRepository implements Repository on top of SQLite or PostgreSQL.
// Queries are written once with '?' placeholders and rebound per dialect.
// Binary values are stored as standard base64 in TEXT columns.
type SQLRepository struct {
	db      dbx.DBTX
	dialect dbx.Dialect
	now     func() time.Time
}

func NewRepository(db dbx.DBTX, dialect dbx.Dialect) *SQLRepository {
	return &SQLRepository{db: db, dialect: dialect, now: func() time.Time { return time.Now().UTC() }}
}

func (r *SQLRepository) q(query string) string {
	return dbx.Rebind(r.dialect, query)
}

func column(field models.SecretField) (string, error) {
	if !field.Valid() {
		return "", fmt.Errorf("%w: unknown field %q", common.ErrorValidation, field)
	}
	return string(field), nil
}

func encode(b []byte) string {
	return cryptox.EncodeText(b)
}

func decode(s string) ([]byte, error) {
	b, err := cryptox.DecodeText(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorCorrupt, err)
	}
	return b, nil
}

func (r *SQLRepository) GetWrappedKey(ctx context.Context, userID string) (*models.WrappedKey, error) {
	query := `SELECT encryption_key, key_fingerprint FROM users WHERE id = ?`

	var key, fp sql.NullString
	err := r.db.QueryRowContext(ctx, r.q(query), userID).Scan(&key, &fp)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	if !key.Valid || key.String == "" {
		return nil, common.ErrorNotFound
	}

	blob, err := decode(key.String)
	if err != nil {
		return nil, err
	}
	return &models.WrappedKey{UserID: userID, Ciphertext: blob, Fingerprint: fp.String}, nil
}

func (r *SQLRepository) PutWrappedKey(ctx context.Context, key *models.WrappedKey) (bool, error) {
	query :=
		`INSERT INTO users (id, encryption_key, key_fingerprint, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   encryption_key = excluded.encryption_key,
		   key_fingerprint = excluded.key_fingerprint,
		   updated_at = excluded.updated_at
		 WHERE users.encryption_key IS NULL`

	now := r.now()
	res, err := r.db.ExecContext(ctx, r.q(query),
		key.UserID, encode(key.Ciphertext), key.Fingerprint, now, now)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n > 0, nil
}

func (r *SQLRepository) ReplaceWrappedKey(ctx context.Context, key *models.WrappedKey) error {
	query := `UPDATE users SET encryption_key = ?, key_fingerprint = ?, updated_at = ? WHERE id = ?`

	res, err := r.db.ExecContext(ctx, r.q(query),
		encode(key.Ciphertext), key.Fingerprint, r.now(), key.UserID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *SQLRepository) ListWrappedKeys(ctx context.Context) ([]*models.WrappedKey, error) {
	query :=
		`SELECT id, encryption_key, key_fingerprint FROM users
		 WHERE encryption_key IS NOT NULL
		 ORDER BY id`

	rows, err := r.db.QueryContext(ctx, r.q(query))
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var keys []*models.WrappedKey
	for rows.Next() {
		var id, key string
		var fp sql.NullString
		if err := rows.Scan(&id, &key, &fp); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		wk := &models.WrappedKey{UserID: id, Fingerprint: fp.String}
		// One undecodable row must not hide the others.
		if blob, err := decode(key); err != nil {
			wk.Err = err
		} else {
			wk.Ciphertext = blob
		}
		keys = append(keys, wk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return keys, nil
}

func (r *SQLRepository) GetCiphertext(ctx context.Context, userID string, field models.SecretField) ([]byte, error) {
	col, err := column(field)
	if err != nil {
		return nil, err
	}
	query := `SELECT ` + col + ` FROM users WHERE id = ?`

	var value sql.NullString
	err = r.db.QueryRowContext(ctx, r.q(query), userID).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	if !value.Valid || value.String == "" {
		return nil, common.ErrorNotFound
	}
	return decode(value.String)
}

func (r *SQLRepository) PutCiphertext(ctx context.Context, userID string, field models.SecretField, blob []byte) error {
	col, err := column(field)
	if err != nil {
		return err
	}
	query :=
		`INSERT INTO users (id, ` + col + `, created_at, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   ` + col + ` = excluded.` + col + `,
		   updated_at = excluded.updated_at`

	now := r.now()
	if _, err := r.db.ExecContext(ctx, r.q(query), userID, encode(blob), now, now); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *SQLRepository) ClearCiphertext(ctx context.Context, userID string, field models.SecretField) error {
	col, err := column(field)
	if err != nil {
		return err
	}
	query := `UPDATE users SET ` + col + ` = NULL, updated_at = ? WHERE id = ?`

	if _, err := r.db.ExecContext(ctx, r.q(query), r.now(), userID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *SQLRepository) ListRecords(ctx context.Context) ([]*models.UserRecord, error) {
	cols := make([]string, len(models.SecretFields))
	for i, f := range models.SecretFields {
		cols[i] = string(f)
	}
	query :=
		`SELECT id, encryption_key, key_fingerprint, ` + strings.Join(cols, ", ") + `, created_at, updated_at
		 FROM users
		 ORDER BY id`

	rows, err := r.db.QueryContext(ctx, r.q(query))
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var records []*models.UserRecord
	for rows.Next() {
		rec := &models.UserRecord{Fields: make(map[models.SecretField][]byte)}
		var key, fp sql.NullString
		values := make([]sql.NullString, len(models.SecretFields))

		dest := []any{&rec.ID, &key, &fp}
		for i := range values {
			dest = append(dest, &values[i])
		}
		dest = append(dest, &rec.CreatedAt, &rec.UpdatedAt)

		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}

		if key.Valid && key.String != "" {
			if rec.WrappedKey, err = decode(key.String); err != nil {
				rec.WrappedKey = nil
				rec.KeepRaw("encryption_key", key.String)
			}
		}
		rec.KeyFingerprint = fp.String
		for i, f := range models.SecretFields {
			if !values[i].Valid || values[i].String == "" {
				continue
			}
			b, err := decode(values[i].String)
			if err != nil {
				rec.KeepRaw(string(f), values[i].String)
				continue
			}
			rec.Fields[f] = b
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return records, nil
}

func (r *SQLRepository) Delete(ctx context.Context, userID string) error {
	query := `DELETE FROM users WHERE id = ?`

	res, err := r.db.ExecContext(ctx, r.q(query), userID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
