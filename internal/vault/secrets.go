package vault

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/sbetterfy/internal/common"
	"github.com/dmitrijs2005/sbetterfy/internal/server/models"
)

// SaveSecret is EncryptField under the name callers use.
func (v *Vault) SaveSecret(ctx context.Context, userID string, field models.SecretField, plaintext string) error {
	return v.EncryptField(ctx, userID, field, plaintext)
}

// LoadSecret returns (value, true, nil) for a readable secret and
// ("", false, nil) when none is stored. A stored but undecryptable secret
// gives an error matching ErrUnreadable.
func (v *Vault) LoadSecret(ctx context.Context, userID string, field models.SecretField) (string, bool, error) {
	value, err := v.DecryptField(ctx, userID, field)
	if errors.Is(err, ErrAbsent) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// HasSecret is HasField for callers that only branch on presence. Store
// failures are logged and reported as false.
func (v *Vault) HasSecret(ctx context.Context, userID string, field models.SecretField) bool {
	ok, err := v.HasField(ctx, userID, field)
	if err != nil {
		v.logger.Error(ctx, "secret presence check failed", "user_id", userID, "field", string(field), "error", err)
		return false
	}
	return ok
}

// ClearSecret removes the value of field. Clearing an unset field is a no-op.
func (v *Vault) ClearSecret(ctx context.Context, userID string, field models.SecretField) (err error) {
	defer v.track("clear")(&err)

	if err := validUser(userID); err != nil {
		return err
	}
	if err := validField(field); err != nil {
		return err
	}
	if err := v.store.ClearCiphertext(ctx, userID, field); err != nil {
		return storeErr("clear "+string(field), err)
	}
	return nil
}

// ForgetUser deletes the user's record including the wrapped key, which
// makes any copy of the old ciphertexts permanently unreadable.
func (v *Vault) ForgetUser(ctx context.Context, userID string) (err error) {
	defer v.track("forget")(&err)

	if err := validUser(userID); err != nil {
		return err
	}
	err = v.store.Delete(ctx, userID)
	switch {
	case errors.Is(err, common.ErrorNotFound):
		return nil
	case err != nil:
		return storeErr("delete user", err)
	}
	v.logger.Info(ctx, "user secrets deleted", "user_id", userID)
	return nil
}

// ProvisionUser creates the user's key ahead of the first write. It is
// optional; EncryptField provisions on demand.
func (v *Vault) ProvisionUser(ctx context.Context, userID string) (err error) {
	defer v.track("provision")(&err)

	c, err := v.userCipher(ctx, userID, true)
	if err != nil {
		return err
	}
	common.WipeByteArray(c.key)
	return nil
}
