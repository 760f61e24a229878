package users

import (
	"context"

	"github.com/dmitrijs2005/sbetterfy/internal/server/models"
)

// Repository persists wrapped user keys and encrypted field values.
// Lookups of a missing user or an unset value return common.ErrorNotFound.
type Repository interface {
	GetWrappedKey(ctx context.Context, userID string) (*models.WrappedKey, error)
	// PutWrappedKey stores key only if the user has none yet and reports
	// whether it did.
	PutWrappedKey(ctx context.Context, key *models.WrappedKey) (bool, error)
	ReplaceWrappedKey(ctx context.Context, key *models.WrappedKey) error
	// ListWrappedKeys sets WrappedKey.Err on rows whose key text is not
	// valid instead of failing.
	ListWrappedKeys(ctx context.Context) ([]*models.WrappedKey, error)

	GetCiphertext(ctx context.Context, userID string, field models.SecretField) ([]byte, error)
	PutCiphertext(ctx context.Context, userID string, field models.SecretField, blob []byte) error
	ClearCiphertext(ctx context.Context, userID string, field models.SecretField) error

	// ListRecords keeps undecodable column text in UserRecord.Raw.
	ListRecords(ctx context.Context) ([]*models.UserRecord, error)
	Delete(ctx context.Context, userID string) error
}
